package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/store"
)

// EntitiesHandler is the generic record surface behind the catalog and
// customer screens. Orders have their own lifecycle routes; everything else
// is plain create/list/get/delete against the local store.
type EntitiesHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewEntitiesHandler creates an entities handler.
func NewEntitiesHandler(st *store.Store, log zerolog.Logger) *EntitiesHandler {
	return &EntitiesHandler{store: st, log: log.With().Str("component", "entities_http").Logger()}
}

// RegisterRoutes registers entity routes.
func (eh *EntitiesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/entities/{type}", eh.list).Methods("GET")
	r.HandleFunc("/entities/{type}", eh.create).Methods("POST")
	r.HandleFunc("/entities/{type}/{id}", eh.get).Methods("GET")
	r.HandleFunc("/entities/{type}/{id}", eh.update).Methods("PUT")
	r.HandleFunc("/entities/{type}/{id}", eh.remove).Methods("DELETE")
}

func entityType(req *http.Request) (models.EntityType, error) {
	et := models.EntityType(mux.Vars(req)["type"])
	if _, err := models.Describe(et); err != nil {
		return "", err
	}
	return et, nil
}

func (eh *EntitiesHandler) list(w http.ResponseWriter, req *http.Request) {
	et, err := entityType(req)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	records, err := eh.store.List(req.Context(), et)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

func (eh *EntitiesHandler) create(w http.ResponseWriter, req *http.Request) {
	et, err := entityType(req)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	d, _ := models.Describe(et)
	rec := d.New()
	if err := json.NewDecoder(req.Body).Decode(rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := eh.store.Create(req.Context(), rec); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (eh *EntitiesHandler) get(w http.ResponseWriter, req *http.Request) {
	et, err := entityType(req)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	rec, err := eh.store.Get(req.Context(), et, mux.Vars(req)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (eh *EntitiesHandler) update(w http.ResponseWriter, req *http.Request) {
	et, err := entityType(req)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	id := mux.Vars(req)["id"]
	rec, err := eh.store.Get(req.Context(), et, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	base := *rec.Base()
	if err := json.NewDecoder(req.Body).Decode(rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	// The body cannot rewrite identity or sync bookkeeping.
	*rec.Base() = base
	if err := eh.store.Update(req.Context(), rec); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (eh *EntitiesHandler) remove(w http.ResponseWriter, req *http.Request) {
	et, err := entityType(req)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := eh.store.SoftDelete(req.Context(), et, mux.Vars(req)["id"]); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
