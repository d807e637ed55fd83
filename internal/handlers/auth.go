package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/config"
	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/store"
	"github.com/pressloop/drycleanpos/internal/utils"
)

const tokenTTL = 12 * time.Hour

// LoginRequest is an employee PIN sign-in.
type LoginRequest struct {
	EmployeeID string `json:"employee_id"`
	PIN        string `json:"pin"`
}

// AuthHandler issues session tokens for employees.
type AuthHandler struct {
	cfg   *config.Config
	store *store.Store
	log   zerolog.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(cfg *config.Config, st *store.Store, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, store: st, log: log.With().Str("component", "auth").Logger()}
}

// RegisterRoutes registers auth routes. Login sits outside the
// authenticated subrouter.
func (ah *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", ah.login).Methods("POST")
}

func (ah *AuthHandler) login(w http.ResponseWriter, req *http.Request) {
	var in LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	rec, err := ah.store.Get(req.Context(), models.EntityTypeEmployee, in.EmployeeID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	emp, ok := rec.(*models.Employee)
	if !ok || emp.IsDeleted || !emp.Active {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !utils.CheckPIN(emp.PINHash, in.PIN) {
		ah.log.Warn().Str("employee", in.EmployeeID).Msg("failed login attempt")
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := utils.GenerateToken(ah.cfg.JWTSecret, emp.ID, string(emp.Role), tokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"employee": emp,
	})
}
