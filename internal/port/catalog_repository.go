package port

import (
	"context"

	"github.com/bazar-store/bazar/internal/core/domain"
)

// CatalogRepository is the storage contract backing the catalog service.
// Reservation and restore calls on the same item id are linearized by the
// implementation; calls on distinct items must not contend.
type CatalogRepository interface {
	// GetItem returns a snapshot of the item, or domain.ErrNotFound.
	GetItem(ctx context.Context, id int) (domain.Item, error)

	// ListItems returns all items matching pred, in id order.
	ListItems(ctx context.Context, pred func(domain.Item) bool) ([]domain.Item, error)

	// PutItem creates or replaces an item record. Used at catalog load time.
	PutItem(ctx context.Context, item domain.Item) error

	// Count returns the number of items in the store.
	Count(ctx context.Context) (int, error)

	// ReserveStock atomically checks stock >= quantity and decrements,
	// returning the post-decrement stock. Fails with domain.ErrOutOfStock
	// (stock unchanged) or domain.ErrNotFound. May fail with
	// domain.ErrReservationRace on transient contention; the caller retries.
	ReserveStock(ctx context.Context, id, quantity int) (int, error)

	// RestoreStock atomically increments stock by quantity, returning the
	// new stock. Fails only with domain.ErrNotFound.
	RestoreStock(ctx context.Context, id, quantity int) (int, error)
}
