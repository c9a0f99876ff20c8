package domain

import "errors"

var (
	// ErrNotFound means the referenced item or order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOutOfStock means the reservation could not be satisfied. Stock is
	// left unchanged. This is a normal outcome, not a system failure.
	ErrOutOfStock = errors.New("out of stock")

	// ErrReservationRace is a transient conflict between concurrent
	// reservations on the same item. Retried internally by the catalog
	// service; callers only see it once the retry budget is exhausted.
	ErrReservationRace = errors.New("reservation race")

	// ErrDuplicateRequest means a purchase with the same idempotency key is
	// still in flight.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrUpstreamUnavailable means a cross-service call failed at the
	// transport level or the collaborator returned a 5xx.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStoreUnavailable means the order store could not persist a record.
	ErrStoreUnavailable = errors.New("order store unavailable")

	// ErrRecordingFailed means the order append failed after a successful
	// reservation and the reservation was compensated.
	ErrRecordingFailed = errors.New("order recording failed")

	// ErrCompensationFailed means the stock restore after a recording
	// failure itself failed, leaving a decremented unit with no order on
	// record. Requires out-of-band reconciliation.
	ErrCompensationFailed = errors.New("compensation failed")
)
