package domain

// PurchaseState is the terminal (or in-flight) state of one purchase saga.
type PurchaseState string

const (
	PurchaseStart      PurchaseState = "START"
	PurchaseReserving  PurchaseState = "RESERVING"
	PurchaseRecording  PurchaseState = "RECORDING"
	PurchaseCompleted  PurchaseState = "COMPLETED"
	PurchaseNotFound   PurchaseState = "NOT_FOUND"
	PurchaseOutOfStock PurchaseState = "OUT_OF_STOCK"

	// PurchaseReservationFailed: the reservation call failed before any
	// confirmed mutation.
	PurchaseReservationFailed PurchaseState = "RESERVATION_FAILED"

	// PurchaseIdempotencyFailed: the idempotency store failed before the
	// catalog was touched; no reservation was attempted.
	PurchaseIdempotencyFailed PurchaseState = "IDEMPOTENCY_FAILED"

	// PurchaseRecordingFailed: the order append failed after a successful
	// reservation; the reservation has been compensated.
	PurchaseRecordingFailed PurchaseState = "RECORDING_FAILED"
)
