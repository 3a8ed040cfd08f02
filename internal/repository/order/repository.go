package order

import (
	"context"

	"marketplace-api/internal/domain"
)

// NewOrderItem is one frozen line going into a new order.
type NewOrderItem struct {
	Ref        domain.ProductRef
	Quantity   int
	PriceCents int64
}

type CreateInput struct {
	BuyerID           int64
	TotalCents        int64
	ProviderSessionID string
	Items             []NewOrderItem
}

type Repository interface {
	// CreateWithItems creates the order and its items in one transaction,
	// generating the order number inside it. If an order already exists
	// for the provider session id, the existing order is returned with
	// created=false; this is the settlement idempotency guard.
	CreateWithItems(ctx context.Context, in CreateInput) (o *domain.Order, created bool, err error)
	// GetBySessionID loads an order and its items by checkout session.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	// ListByBuyer returns the buyer's orders, newest first, with items.
	ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	// SetStatus transitions an order's status. Terminal statuses other
	// than completed are set by refund/cancel flows outside settlement.
	SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
}
