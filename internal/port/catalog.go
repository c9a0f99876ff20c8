package port

import (
	"context"

	"github.com/bazar-store/bazar/internal/core/domain"
)

// Catalog is the purchase coordinator's view of the catalog service, reached
// across a service boundary. Transport failures surface as
// domain.ErrUpstreamUnavailable.
type Catalog interface {
	GetItem(ctx context.Context, id int) (domain.Item, error)
	ReserveStock(ctx context.Context, id, quantity int) (int, error)
	RestoreStock(ctx context.Context, id, quantity int) (int, error)
}
