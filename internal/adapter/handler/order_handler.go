package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/bazar-store/bazar/internal/core/domain"
	"github.com/bazar-store/bazar/internal/core/service"
)

// OrderHandler exposes the purchase coordinator and the order read-back.
type OrderHandler struct {
	coordinator *service.PurchaseCoordinator
	log         zerolog.Logger
}

type purchaseRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type purchaseResponse struct {
	Success bool          `json:"success"`
	State   string        `json:"state"`
	Order   *domain.Order `json:"order,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

func NewOrderHandler(coordinator *service.PurchaseCoordinator, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{coordinator: coordinator, log: log}
}

func (h *OrderHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /purchase/{id}", h.Purchase)
	mux.HandleFunc("GET /orders/{order_id}", h.GetOrder)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

func (h *OrderHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item id"})
		return
	}

	var req purchaseRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	result, err := h.coordinator.Purchase(r.Context(), itemID, req.IdempotencyKey)
	if err != nil {
		h.writePurchaseError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		Success: true,
		State:   string(result.State),
		Order:   result.Order,
	})
}

func (h *OrderHandler) writePurchaseError(w http.ResponseWriter, result *service.PurchaseResult, err error) {
	state := ""
	if result != nil {
		state = string(result.State)
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrOutOfStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "out of stock"})
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "duplicate request"})
	case errors.Is(err, domain.ErrCompensationFailed):
		h.log.Error().Err(err).Msg("purchase left unreconciled state")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "purchase failed", State: state})
	default:
		h.log.Error().Err(err).Msg("purchase failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "purchase failed", State: state})
	}
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.coordinator.GetOrder(r.Context(), r.PathValue("order_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
			return
		}
		h.log.Error().Err(err).Msg("order lookup failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
