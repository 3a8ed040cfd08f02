package cart

import (
	"context"

	"marketplace-api/internal/domain"
)

type Repository interface {
	// GetOrCreate returns the buyer's cart, creating the row on first use.
	GetOrCreate(ctx context.Context, buyerID int64) (*domain.Cart, error)
	// GetByBuyer returns the cart with its lines, or domain.ErrNotFound.
	GetByBuyer(ctx context.Context, buyerID int64) (*domain.Cart, error)
	// AddLine inserts a line or bumps the quantity of an existing one.
	AddLine(ctx context.Context, cartID int64, ref domain.ProductRef, quantity int) error
	// RemoveLine deletes one line owned by the cart.
	RemoveLine(ctx context.Context, cartID, lineID int64) error
	// Clear deletes every line in the cart.
	Clear(ctx context.Context, cartID int64) error
	// RemoveSettledLines deletes the buyer's lines matching the given
	// product refs, after those items were settled into an order.
	RemoveSettledLines(ctx context.Context, buyerID int64, refs []domain.ProductRef) error
}
