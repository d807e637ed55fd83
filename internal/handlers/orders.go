package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/models"
	"github.com/pressloop/drycleanpos/internal/orders"
)

// OrdersHandler exposes the order lifecycle.
type OrdersHandler struct {
	svc *orders.Service
	log zerolog.Logger
}

// NewOrdersHandler creates an orders handler.
func NewOrdersHandler(svc *orders.Service, log zerolog.Logger) *OrdersHandler {
	return &OrdersHandler{svc: svc, log: log.With().Str("component", "orders_http").Logger()}
}

// RegisterRoutes registers order routes.
func (oh *OrdersHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/orders", oh.create).Methods("POST")
	r.HandleFunc("/orders/{id}", oh.get).Methods("GET")
	r.HandleFunc("/orders/{id}/status", oh.updateStatus).Methods("PUT")
	r.HandleFunc("/orders/{id}/rack", oh.updateRack).Methods("PUT")
	r.HandleFunc("/orders/{id}/items/{index}/scan", oh.scanItem).Methods("POST")
	r.HandleFunc("/orders/{id}/cancel", oh.cancel).Methods("POST")
}

func (oh *OrdersHandler) create(w http.ResponseWriter, req *http.Request) {
	var in orders.CreateOrderInput
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if actor, ok := ActorFrom(req.Context()); ok {
		in.CreatedBy = actor.EmployeeID
	}

	order, err := oh.svc.CreateOrder(req.Context(), in)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (oh *OrdersHandler) get(w http.ResponseWriter, req *http.Request) {
	order, err := oh.svc.Get(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateStatusRequest flips an order's lifecycle status.
type UpdateStatusRequest struct {
	Status models.OrderStatus    `json:"status"`
	Refund *orders.RefundRequest `json:"refund,omitempty"`
}

func (oh *OrdersHandler) updateStatus(w http.ResponseWriter, req *http.Request) {
	var in UpdateStatusRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	actor, _ := ActorFrom(req.Context())

	var (
		order *models.Order
		err   error
	)
	if in.Status == models.OrderStatusCancelled && in.Refund != nil {
		order, err = oh.svc.Cancel(req.Context(), mux.Vars(req)["id"], in.Refund, actor.EmployeeID)
	} else {
		order, err = oh.svc.UpdateStatus(req.Context(), mux.Vars(req)["id"], in.Status, actor.EmployeeID)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateRackRequest completes an order onto a rack slot.
type UpdateRackRequest struct {
	RackCode string `json:"rack_code"`
}

func (oh *OrdersHandler) updateRack(w http.ResponseWriter, req *http.Request) {
	var in UpdateRackRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if in.RackCode == "" {
		respondError(w, http.StatusBadRequest, "rack_code required")
		return
	}
	actor, _ := ActorFrom(req.Context())

	order, err := oh.svc.UpdateRackAndStatus(req.Context(), mux.Vars(req)["id"], models.OrderStatusCompleted, in.RackCode, actor.EmployeeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (oh *OrdersHandler) scanItem(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item index")
		return
	}
	actor, _ := ActorFrom(req.Context())

	order, err := oh.svc.MarkItemScanned(req.Context(), vars["id"], index, actor.EmployeeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// CancelRequest cancels an order, optionally with a refund.
type CancelRequest struct {
	Refund *orders.RefundRequest `json:"refund,omitempty"`
}

func (oh *OrdersHandler) cancel(w http.ResponseWriter, req *http.Request) {
	var in CancelRequest
	if req.ContentLength > 0 {
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
	}
	actor, _ := ActorFrom(req.Context())

	order, err := oh.svc.Cancel(req.Context(), mux.Vars(req)["id"], in.Refund, actor.EmployeeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
