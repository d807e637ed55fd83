package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/sync"
)

// SyncHandler exposes sync control to the settings screen.
type SyncHandler struct {
	engine *sync.Engine
	log    zerolog.Logger
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(engine *sync.Engine, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, log: log.With().Str("component", "sync_http").Logger()}
}

// RegisterRoutes registers sync routes.
func (sh *SyncHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sync/run", sh.runAll).Methods("POST")
	r.HandleFunc("/sync/entity/{type}", sh.runEntity).Methods("POST")
	r.HandleFunc("/sync/status", sh.status).Methods("GET")
	r.HandleFunc("/sync/conflicts", sh.listConflicts).Methods("GET")
	r.HandleFunc("/sync/conflicts/resolve", sh.resolveConflicts).Methods("POST")
}

func (sh *SyncHandler) runAll(w http.ResponseWriter, req *http.Request) {
	summary, err := sh.engine.SyncAll(req.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (sh *SyncHandler) runEntity(w http.ResponseWriter, req *http.Request) {
	et := models.EntityType(mux.Vars(req)["type"])
	res, err := sh.engine.SyncEntity(req.Context(), et)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (sh *SyncHandler) status(w http.ResponseWriter, req *http.Request) {
	counts, err := sh.engine.Status(req.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	pending, err := sh.engine.Resolver().Pending(req.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entities":          counts,
		"pending_conflicts": len(pending),
	})
}

func (sh *SyncHandler) listConflicts(w http.ResponseWriter, req *http.Request) {
	pending, err := sh.engine.Resolver().Pending(req.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(pending),
		"conflicts": pending,
	})
}

// ResolveConflictsRequest carries whole-record decisions for one entity
// type. Decisions apply in order and stop at the first failure.
type ResolveConflictsRequest struct {
	EntityType  models.EntityType `json:"entity_type"`
	Resolutions []sync.Resolution `json:"resolutions"`
}

func (sh *SyncHandler) resolveConflicts(w http.ResponseWriter, req *http.Request) {
	var in ResolveConflictsRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if len(in.Resolutions) == 0 {
		respondError(w, http.StatusBadRequest, "no resolutions given")
		return
	}
	actor, _ := ActorFrom(req.Context())

	applied, err := sh.engine.Resolver().ResolveBatch(req.Context(), in.EntityType, in.Resolutions, actor.EmployeeID)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"applied": applied,
			"error":   err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"applied": applied})
}
