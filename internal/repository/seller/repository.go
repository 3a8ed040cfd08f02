package seller

import (
	"context"

	"marketplace-api/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Seller, error)
	// GetByIDs loads several sellers at once, keyed by id. Missing ids are
	// simply absent from the map.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Seller, error)
	// SetPayee records payout onboarding progress for a seller.
	SetPayee(ctx context.Context, id int64, payeeID string, status domain.PayeeStatus) error
}
