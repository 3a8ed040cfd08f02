package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-api/internal/domain"
)

// singletonID pins the settings to one row.
const singletonID = 1

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context) (*domain.CommissionPolicy, error) {
	const q = `
INSERT INTO site_settings (id)
VALUES ($1)
ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
RETURNING platform_name, commission_enabled, commission_percentage, platform_payee_id, updated_at
`
	var p domain.CommissionPolicy
	err := r.pool.QueryRow(ctx, q, singletonID).
		Scan(&p.PlatformName, &p.Enabled, &p.Percentage, &p.PlatformPayeeID, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Update(ctx context.Context, policy domain.CommissionPolicy) (*domain.CommissionPolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	const q = `
UPDATE site_settings
SET platform_name = $1,
	commission_enabled = $2,
	commission_percentage = $3,
	platform_payee_id = $4,
	updated_at = now()
WHERE id = $5
RETURNING platform_name, commission_enabled, commission_percentage, platform_payee_id, updated_at
`
	var p domain.CommissionPolicy
	err := r.pool.QueryRow(ctx, q, policy.PlatformName, policy.Enabled, policy.Percentage, policy.PlatformPayeeID, singletonID).
		Scan(&p.PlatformName, &p.Enabled, &p.Percentage, &p.PlatformPayeeID, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
