package port

import (
	"context"

	"github.com/bazar-store/bazar/internal/core/domain"
)

// OrderRepository is the append-only order store. AppendOrder is safe to call
// concurrently; order ids are generated collision-free by the caller.
type OrderRepository interface {
	// AppendOrder durably stores the order. Fails with
	// domain.ErrStoreUnavailable on persistence failure.
	AppendOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns a stored order, or domain.ErrNotFound.
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}
