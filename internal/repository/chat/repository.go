package chat

import (
	"context"

	"marketplace-api/internal/domain"
)

type Repository interface {
	// GetOrCreate opens the buyer-seller channel for a service product,
	// idempotently: re-opening an existing channel returns it with
	// created=false.
	GetOrCreate(ctx context.Context, buyerID, sellerID, productID int64) (c *domain.ServiceChat, created bool, err error)
}
