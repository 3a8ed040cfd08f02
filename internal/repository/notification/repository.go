package notification

import (
	"context"

	"marketplace-api/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Notification, error)
}
