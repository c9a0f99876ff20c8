package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bazar-store/bazar/internal/core/domain"
	"github.com/bazar-store/bazar/internal/metrics"
	"github.com/bazar-store/bazar/internal/port"
)

// PurchaseResult carries the terminal saga state and, when completed, the
// recorded order.
type PurchaseResult struct {
	State    domain.PurchaseState
	Order    *domain.Order
	Replayed bool
}

// PurchaseCoordinator drives one purchase across the catalog and order
// stores: reserve stock, then append the order. There is no shared
// transaction, so a recording failure after a successful reservation is
// compensated by restoring the reserved stock. Once a reservation succeeds
// the coordinator must reach COMPLETED or compensate; it never abandons a
// reservation.
type PurchaseCoordinator struct {
	catalog port.Catalog
	orders  port.OrderRepository
	idem    port.IdempotencyStore
	events  port.EventPublisher
	log     zerolog.Logger

	now func() time.Time
}

func NewPurchaseCoordinator(
	catalog port.Catalog,
	orders port.OrderRepository,
	idem port.IdempotencyStore,
	events port.EventPublisher,
	log zerolog.Logger,
) *PurchaseCoordinator {
	return &PurchaseCoordinator{
		catalog: catalog,
		orders:  orders,
		idem:    idem,
		events:  events,
		log:     log,
		now:     time.Now,
	}
}

// Purchase runs the saga for one unit of itemID. idemKey is optional; when
// set, a replay after a committed purchase returns the original order with no
// second decrement.
func (c *PurchaseCoordinator) Purchase(ctx context.Context, itemID int, idemKey string) (*PurchaseResult, error) {
	if idemKey != "" {
		result, done, err := c.claimKey(ctx, itemID, idemKey)
		if done || err != nil {
			return result, err
		}
	}

	result, err := c.run(ctx, itemID)

	if idemKey != "" {
		c.settleKey(ctx, idemKey, result)
	}

	metrics.PurchasesTotal.WithLabelValues(string(result.State)).Inc()
	return result, err
}

// claimKey resolves the idempotency key before any catalog call. done=true
// means the request was answered from the key alone.
func (c *PurchaseCoordinator) claimKey(ctx context.Context, itemID int, idemKey string) (*PurchaseResult, bool, error) {
	orderID, claimed, err := c.idem.Claim(ctx, idemKey)
	if err != nil {
		return &PurchaseResult{State: domain.PurchaseIdempotencyFailed}, true,
			fmt.Errorf("idempotency claim: %w", errors.Join(domain.ErrUpstreamUnavailable, err))
	}
	if claimed {
		return nil, false, nil
	}
	if orderID == "" {
		// Another attempt with the same key has not finished yet.
		return &PurchaseResult{State: domain.PurchaseReserving}, true, domain.ErrDuplicateRequest
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		// A settled key pointing at a missing order is store corruption,
		// not an unknown item; never let ErrNotFound leak to the caller.
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("replayed order %s missing from store: %w",
				orderID, domain.ErrStoreUnavailable)
		}
		return &PurchaseResult{State: domain.PurchaseIdempotencyFailed}, true,
			fmt.Errorf("load replayed order: %w", err)
	}
	c.log.Info().Str("order_id", orderID).Str("idempotency_key", idemKey).Msg("purchase replayed from idempotency key")
	return &PurchaseResult{State: domain.PurchaseCompleted, Order: &order, Replayed: true}, true, nil
}

// settleKey binds a completed order to the key, or frees the claim when the
// saga terminated without one.
func (c *PurchaseCoordinator) settleKey(ctx context.Context, idemKey string, result *PurchaseResult) {
	if result.State == domain.PurchaseCompleted && result.Order != nil {
		if err := c.idem.Complete(ctx, idemKey, result.Order.OrderID); err != nil {
			c.log.Error().Err(err).Str("idempotency_key", idemKey).Msg("failed to record idempotency completion")
		}
		return
	}
	if err := c.idem.Release(ctx, idemKey); err != nil {
		c.log.Error().Err(err).Str("idempotency_key", idemKey).Msg("failed to release idempotency claim")
	}
}

func (c *PurchaseCoordinator) run(ctx context.Context, itemID int) (*PurchaseResult, error) {
	// RESERVING: the single atomic check-and-decrement on the catalog.
	_, err := c.catalog.ReserveStock(ctx, itemID, 1)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return &PurchaseResult{State: domain.PurchaseNotFound}, domain.ErrNotFound
		case errors.Is(err, domain.ErrOutOfStock):
			return &PurchaseResult{State: domain.PurchaseOutOfStock}, domain.ErrOutOfStock
		default:
			// No confirmed mutation; nothing to compensate.
			return &PurchaseResult{State: domain.PurchaseReservationFailed},
				fmt.Errorf("reserve stock: %w", err)
		}
	}

	// RECORDING: stock is decremented, an order must now exist or the
	// reservation must be undone.
	order := domain.Order{
		OrderID:   uuid.NewString(),
		ItemID:    itemID,
		Timestamp: c.now().UTC(),
	}
	if err := c.orders.AppendOrder(ctx, order); err != nil {
		return c.compensate(ctx, order, err)
	}

	c.log.Info().Str("order_id", order.OrderID).Int("item_id", itemID).Msg("purchase completed")
	if c.events != nil {
		if err := c.events.OrderPlaced(ctx, order); err != nil {
			c.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("failed to publish order event")
		}
	}
	return &PurchaseResult{State: domain.PurchaseCompleted, Order: &order}, nil
}

// compensate restores the reserved unit after a recording failure. A failed
// restore leaves the cross-store invariant violated and is surfaced as a
// reconciliation task, never swallowed.
func (c *PurchaseCoordinator) compensate(ctx context.Context, order domain.Order, cause error) (*PurchaseResult, error) {
	c.log.Warn().Err(cause).Int("item_id", order.ItemID).Msg("order recording failed, restoring stock")

	if _, restoreErr := c.catalog.RestoreStock(ctx, order.ItemID, 1); restoreErr != nil {
		metrics.CompensationFailures.Inc()
		c.log.Error().
			Err(restoreErr).
			Int("item_id", order.ItemID).
			Str("order_id", order.OrderID).
			Str("reconciliation", "stock_unit_lost").
			Msg("compensation failed: item stock decremented with no order on record")

		if c.events != nil {
			if pubErr := c.events.ReconciliationRequired(ctx, order.ItemID, order.OrderID, restoreErr.Error()); pubErr != nil {
				c.log.Error().Err(pubErr).Str("order_id", order.OrderID).Msg("failed to publish reconciliation event")
			}
		}
		return &PurchaseResult{State: domain.PurchaseRecordingFailed},
			fmt.Errorf("restore stock for item %d after recording failure: %w",
				order.ItemID, errors.Join(domain.ErrCompensationFailed, restoreErr))
	}

	metrics.StockRestored.Inc()
	return &PurchaseResult{State: domain.PurchaseRecordingFailed},
		fmt.Errorf("append order %s: %w", order.OrderID, errors.Join(domain.ErrRecordingFailed, cause))
}

// GetOrder exposes the order read-back used by replayed purchases and by the
// order service's read endpoint.
func (c *PurchaseCoordinator) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return c.orders.GetOrder(ctx, orderID)
}
