package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// GatewayHandler is the stateless external façade. It forwards requests to
// the catalog and order services and copies the downstream status and body
// back verbatim; it holds no state and never retries.
type GatewayHandler struct {
	catalogURL string
	orderURL   string
	client     *http.Client
	log        zerolog.Logger
}

func NewGatewayHandler(catalogURL, orderURL string, log zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		catalogURL: catalogURL,
		orderURL:   orderURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

func (h *GatewayHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, h.catalogURL+"/items/"+r.PathValue("id"))
	})
	mux.HandleFunc("GET /info/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, h.catalogURL+"/items/"+r.PathValue("id"))
	})
	mux.HandleFunc("GET /search/{topic}", func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, h.catalogURL+"/search/"+r.PathValue("topic"))
	})
	mux.HandleFunc("GET /search/keyword/{keyword}", func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, h.catalogURL+"/search/keyword/"+r.PathValue("keyword"))
	})
	mux.HandleFunc("POST /purchase/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, h.orderURL+"/purchase/"+r.PathValue("id"))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// forward relays the request downstream, preserving the method, body, status
// code and body on the way back. A 404 or 409 from a collaborator reaches the
// client unchanged; only transport failures become a 502 here.
func (h *GatewayHandler) forward(w http.ResponseWriter, r *http.Request, target string) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		h.log.Error().Err(err).Str("target", target).Msg("failed to build downstream request")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Str("target", target).Msg("downstream unreachable")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream unavailable"})
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.Warn().Err(err).Str("target", target).Msg("failed to relay downstream body")
	}
}
