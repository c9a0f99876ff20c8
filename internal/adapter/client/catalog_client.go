// Package client holds the HTTP adapters through which one bazar service
// calls another.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bazar-store/bazar/internal/core/domain"
)

// CatalogClient implements port.Catalog against the catalog service's HTTP
// API. Status codes map back onto the domain error taxonomy; anything at the
// transport level or 5xx becomes domain.ErrUpstreamUnavailable.
//
// Only GetItem is retried here: reserve and restore are not idempotent, so a
// lost response is left to the purchase-level idempotency key rather than
// blindly resent.
type CatalogClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

const getItemAttempts = 3

func NewCatalogClient(baseURL string, log zerolog.Logger) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
			Timeout: 5 * time.Second,
		},
		log: log,
	}
}

type itemResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Topic string `json:"topic"`
	Cost  int    `json:"cost"`
	Stock int    `json:"stock"`
}

type stockResponse struct {
	ItemID int `json:"item_id"`
	Stock  int `json:"stock"`
}

func (c *CatalogClient) GetItem(ctx context.Context, id int) (domain.Item, error) {
	var lastErr error
	for attempt := 0; attempt < getItemAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Item{}, ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}

		item, err := c.getItemOnce(ctx, id)
		if err == nil || !errors.Is(err, domain.ErrUpstreamUnavailable) {
			return item, err
		}
		lastErr = err
	}
	return domain.Item{}, lastErr
}

func (c *CatalogClient) getItemOnce(ctx context.Context, id int) (domain.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.itemURL(id), nil)
	if err != nil {
		return domain.Item{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Item{}, transportError("get item", err)
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var item itemResponse
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return domain.Item{}, fmt.Errorf("decode item: %w", err)
		}
		return domain.Item(item), nil
	case http.StatusNotFound:
		return domain.Item{}, domain.ErrNotFound
	default:
		return domain.Item{}, statusError("get item", resp.StatusCode)
	}
}

func (c *CatalogClient) ReserveStock(ctx context.Context, id, quantity int) (int, error) {
	return c.mutateStock(ctx, c.itemURL(id)+"/reserve", "reserve stock", quantity)
}

func (c *CatalogClient) RestoreStock(ctx context.Context, id, quantity int) (int, error) {
	return c.mutateStock(ctx, c.itemURL(id)+"/restore", "restore stock", quantity)
}

func (c *CatalogClient) mutateStock(ctx context.Context, url, op string, quantity int) (int, error) {
	body, err := json.Marshal(map[string]int{"quantity": quantity})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, transportError(op, err)
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var stock stockResponse
		if err := json.NewDecoder(resp.Body).Decode(&stock); err != nil {
			return 0, fmt.Errorf("decode %s response: %w", op, err)
		}
		return stock.Stock, nil
	case http.StatusNotFound:
		return 0, domain.ErrNotFound
	case http.StatusConflict:
		return 0, domain.ErrOutOfStock
	default:
		return 0, statusError(op, resp.StatusCode)
	}
}

func (c *CatalogClient) itemURL(id int) string {
	return c.baseURL + "/items/" + strconv.Itoa(id)
}

func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrUpstreamUnavailable, err))
}

func statusError(op string, code int) error {
	return fmt.Errorf("%s: catalog returned %d: %w", op, code, domain.ErrUpstreamUnavailable)
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
