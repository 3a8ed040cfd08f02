package settings

import (
	"context"

	"marketplace-api/internal/domain"
)

// Repository loads and updates the commission policy singleton. Callers
// fetch the policy once per request or transaction and pass the value
// around; it is never mutated mid-calculation.
type Repository interface {
	Get(ctx context.Context) (*domain.CommissionPolicy, error)
	Update(ctx context.Context, policy domain.CommissionPolicy) (*domain.CommissionPolicy, error)
}
