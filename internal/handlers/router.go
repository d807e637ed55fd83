// Package handlers exposes the HTTP surface the register UI talks to.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/config"
	"github.com/pressloop/drycleanpos/internal/orders"
	"github.com/pressloop/drycleanpos/internal/store"
	"github.com/pressloop/drycleanpos/internal/sync"
	"github.com/pressloop/drycleanpos/internal/utils"
	"github.com/pressloop/drycleanpos/internal/websocket"
)

type contextKey string

// actorKey carries the authenticated employee through a request.
const actorKey contextKey = "actor"

// Actor identifies the employee behind an authenticated request.
type Actor struct {
	EmployeeID string
	Role       string
}

// ActorFrom extracts the authenticated employee from the request context.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

// Router wraps the mux router with the application dependencies.
type Router struct {
	*mux.Router
	cfg *config.Config
	log zerolog.Logger
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg *config.Config, st *store.Store, engine *sync.Engine, svc *orders.Service, hub *websocket.Hub, log zerolog.Logger) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		cfg:    cfg,
		log:    log.With().Str("component", "http").Logger(),
	}

	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	auth := NewAuthHandler(cfg, st, log)
	auth.RegisterRoutes(r.Router)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(r.requireAuth)

	NewSyncHandler(engine, log).RegisterRoutes(api)
	NewOrdersHandler(svc, log).RegisterRoutes(api)
	NewEntitiesHandler(st, log).RegisterRoutes(api)

	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWS(hub, w, req)
	})

	return r
}

// requireAuth validates the bearer token and stamps the acting employee
// into the request context.
func (r *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token := bearerToken(req)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := utils.ParseToken(r.cfg.JWTSecret, token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(req.Context(), actorKey, Actor{
			EmployeeID: claims.EmployeeID,
			Role:       claims.Role,
		})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func bearerToken(req *http.Request) string {
	const prefix = "Bearer "
	h := req.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps domain sentinels onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrItemsUnscanned),
		errors.Is(err, orders.ErrInvalidRefund):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, orders.ErrRackFull):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sync.ErrSyncInProgress):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
