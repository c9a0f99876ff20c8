package port

import "context"

// IdempotencyStore tracks idempotency keys across purchase attempts so a
// retried request cannot decrement stock twice once the first attempt has
// committed.
type IdempotencyStore interface {
	// Claim atomically claims the key for a new purchase attempt.
	// Returns claimed=true when this caller now owns the key.
	// When claimed=false, orderID is the committed order bound to the key,
	// or empty if another attempt with the same key is still in flight.
	Claim(ctx context.Context, key string) (orderID string, claimed bool, err error)

	// Complete binds the committed order to the key.
	Complete(ctx context.Context, key, orderID string) error

	// Release frees a claim whose purchase terminated without an order, so
	// a later retry with the same key may run.
	Release(ctx context.Context, key string) error
}
