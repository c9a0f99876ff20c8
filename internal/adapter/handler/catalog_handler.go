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

// CatalogHandler exposes the catalog store over HTTP: item reads, searches,
// and the stock reservation primitives used by the purchase coordinator.
type CatalogHandler struct {
	catalog *service.CatalogService
	log     zerolog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: log}
}

func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /items/{id}", h.GetItem)
	mux.HandleFunc("GET /search/{topic}", h.SearchTopic)
	mux.HandleFunc("GET /search/keyword/{keyword}", h.SearchKeyword)
	mux.HandleFunc("POST /items/{id}/reserve", h.ReserveStock)
	mux.HandleFunc("POST /items/{id}/restore", h.RestoreStock)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

type stockMutationRequest struct {
	Quantity int `json:"quantity"`
}

type stockMutationResponse struct {
	ItemID int `json:"item_id"`
	Stock  int `json:"stock"`
}

func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) SearchTopic(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.SearchByTopic(r.Context(), r.PathValue("topic"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *CatalogHandler) SearchKeyword(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.SearchByKeyword(r.Context(), r.PathValue("keyword"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *CatalogHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	quantity, ok := mutationQuantity(w, r)
	if !ok {
		return
	}

	stock, err := h.catalog.ReserveStock(r.Context(), id, quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockMutationResponse{ItemID: id, Stock: stock})
}

func (h *CatalogHandler) RestoreStock(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	quantity, ok := mutationQuantity(w, r)
	if !ok {
		return
	}

	if _, err := h.catalog.RestoreStock(r.Context(), id, quantity); err != nil {
		h.writeError(w, err)
		return
	}

	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CatalogHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrOutOfStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "out of stock"})
	default:
		h.log.Error().Err(err).Msg("catalog request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func itemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item id"})
		return 0, false
	}
	return id, true
}

// mutationQuantity reads the request body. An empty body means one unit.
func mutationQuantity(w http.ResponseWriter, r *http.Request) (int, bool) {
	req := stockMutationRequest{Quantity: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return 0, false
		}
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be positive"})
		return 0, false
	}
	return req.Quantity, true
}
