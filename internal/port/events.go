package port

import (
	"context"

	"github.com/bazar-store/bazar/internal/core/domain"
)

// EventPublisher emits purchase lifecycle events. Publishing is best-effort
// for OrderPlaced; ReconciliationRequired carries a detected invariant
// violation and must not be dropped silently.
type EventPublisher interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
	ReconciliationRequired(ctx context.Context, itemID int, orderID, reason string) error
}
