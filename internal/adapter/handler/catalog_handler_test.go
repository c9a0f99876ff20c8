package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazar-store/bazar/internal/adapter/storage"
	"github.com/bazar-store/bazar/internal/core/domain"
	"github.com/bazar-store/bazar/internal/core/service"
)

func newCatalogServer(t *testing.T, items ...domain.Item) *httptest.Server {
	t.Helper()

	repo := storage.NewMemoryCatalog()
	for _, it := range items {
		require.NoError(t, repo.PutItem(context.Background(), it))
	}

	mux := http.NewServeMux()
	NewCatalogHandler(service.NewCatalogService(repo, zerolog.Nop()), zerolog.Nop()).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestCatalogHandler_GetItem(t *testing.T) {
	server := newCatalogServer(t, domain.Item{ID: 1, Title: "RPCs for Noobs", Topic: "distributed systems", Cost: 25, Stock: 7})

	resp, err := http.Get(server.URL + "/items/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var item domain.Item
	decodeBody(t, resp, &item)
	assert.Equal(t, domain.Item{ID: 1, Title: "RPCs for Noobs", Topic: "distributed systems", Cost: 25, Stock: 7}, item)
}

func TestCatalogHandler_GetItemNotFound(t *testing.T) {
	server := newCatalogServer(t)

	resp, err := http.Get(server.URL + "/items/999")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "not found", body["error"])
}

func TestCatalogHandler_Search(t *testing.T) {
	server := newCatalogServer(t,
		domain.Item{ID: 1, Title: "RPCs for Noobs", Topic: "distributed systems"},
		domain.Item{ID: 3, Title: "Xen and the Art of Surviving Undergraduate School", Topic: "undergraduate school"},
	)

	resp, err := http.Get(server.URL + "/search/distributed%20systems")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items map[string]int `json:"items"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, map[string]int{"RPCs for Noobs": 1}, body.Items)

	resp, err = http.Get(server.URL + "/search/keyword/xen")
	require.NoError(t, err)
	body.Items = nil
	decodeBody(t, resp, &body)
	assert.Equal(t, map[string]int{"Xen and the Art of Surviving Undergraduate School": 3}, body.Items)
}

func TestCatalogHandler_ReserveAndRestore(t *testing.T) {
	server := newCatalogServer(t, domain.Item{ID: 1, Stock: 2})

	resp, err := http.Post(server.URL+"/items/1/reserve", "application/json", strings.NewReader(`{"quantity":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stock stockMutationResponse
	decodeBody(t, resp, &stock)
	assert.Equal(t, 1, stock.Stock)

	// Reserve beyond stock: 409, stock unchanged.
	resp, err = http.Post(server.URL+"/items/1/reserve", "application/json", strings.NewReader(`{"quantity":5}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Restore returns the updated item.
	resp, err = http.Post(server.URL+"/items/1/restore", "application/json", strings.NewReader(`{"quantity":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var item domain.Item
	decodeBody(t, resp, &item)
	assert.Equal(t, 2, item.Stock)
}

func TestCatalogHandler_ReserveDefaultsToOneUnit(t *testing.T) {
	server := newCatalogServer(t, domain.Item{ID: 1, Stock: 2})

	resp, err := http.Post(server.URL+"/items/1/reserve", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stock stockMutationResponse
	decodeBody(t, resp, &stock)
	assert.Equal(t, 1, stock.Stock)
}

func TestCatalogHandler_InvalidRequests(t *testing.T) {
	server := newCatalogServer(t, domain.Item{ID: 1, Stock: 2})

	resp, err := http.Get(server.URL + "/items/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/items/1/reserve", "application/json", strings.NewReader(`{"quantity":-1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
