package model

import "time"

// Order is the aggregate root persisted in the orders table.
//
// PublishedAt is nil until the order's creation event has been handed to the
// broker; it is set exactly once, inside the same transaction as the emit,
// and never reverts to nil.
type Order struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Address     string     `db:"address" json:"address"`
	Items       []Item     `db:"-" json:"items"`
	PublishedAt *time.Time `db:"published_at" json:"published_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Published reports whether the creation event has been confirmed emitted.
func (o Order) Published() bool {
	return o.PublishedAt != nil
}

// Item is a value object owned by its Order; it has no identity of its own.
type Item struct {
	OrderID   string  `db:"order_id" json:"-"`
	Name      string  `db:"name" json:"name"`
	Quantity  int     `db:"quantity" json:"quantity"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
}
