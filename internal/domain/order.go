package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// Order is immutable after creation except for its status. The unique
// ProviderSessionID is the idempotency anchor: at most one order may ever
// exist per checkout session.
type Order struct {
	ID                int64       `json:"id"`
	BuyerID           int64       `json:"buyerId"`
	OrderNumber       string      `json:"orderNumber"`
	Status            OrderStatus `json:"status"`
	TotalCents        int64       `json:"totalCents"`
	ProviderSessionID string      `json:"-"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	Items             []OrderItem `json:"items,omitempty"`
}

// OrderItem freezes the unit price at purchase time. It is never re-derived
// from the live product, which may change price later.
type OrderItem struct {
	ID         int64      `json:"id"`
	OrderID    int64      `json:"orderId"`
	Ref        ProductRef `json:"ref"`
	Quantity   int        `json:"quantity"`
	PriceCents int64      `json:"priceCents"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// TotalCents is the frozen line total.
func (i OrderItem) TotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}
