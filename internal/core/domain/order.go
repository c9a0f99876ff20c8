package domain

import "time"

// Order is an append-only record of a completed purchase. Orders are never
// updated or deleted after creation.
type Order struct {
	OrderID   string    `json:"order_id"`
	ItemID    int       `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}
