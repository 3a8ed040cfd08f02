package payout

import (
	"context"

	"marketplace-api/internal/domain"
)

type CreateInput struct {
	OrderID         int64
	SellerID        int64
	GrossCents      int64
	CommissionCents int64
	PayoutCents     int64
	Status          domain.PayoutStatus
}

type Repository interface {
	// Create inserts the payout marker for (order, seller). If the marker
	// already exists the stored row is returned with created=false; the
	// unique pair is the at-most-once transfer guard across settlement
	// re-invocations.
	Create(ctx context.Context, in CreateInput) (p *domain.Payout, created bool, err error)
	// MarkTransferred records a completed deferred transfer.
	MarkTransferred(ctx context.Context, id int64, transferID string) error
	// MarkFailed records a failed transfer with its classification.
	MarkFailed(ctx context.Context, id int64, status domain.PayoutStatus, reason string) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Payout, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]domain.Payout, error)
}
