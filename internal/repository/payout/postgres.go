package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-api/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const payoutColumns = `id, order_id, seller_id, gross_cents, commission_cents, payout_cents, status, transfer_id, failure_reason, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Payout, bool, error) {
	const q = `
INSERT INTO payouts (order_id, seller_id, gross_cents, commission_cents, payout_cents, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (order_id, seller_id) DO NOTHING
RETURNING ` + payoutColumns

	var p domain.Payout
	err := scanPayout(r.pool.QueryRow(ctx, q, in.OrderID, in.SellerID, in.GrossCents, in.CommissionCents, in.PayoutCents, in.Status), &p)
	if err == nil {
		return &p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Lost the race or resuming: the marker already exists.
	existing, err := r.get(ctx, in.OrderID, in.SellerID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *postgresRepo) get(ctx context.Context, orderID, sellerID int64) (*domain.Payout, error) {
	q := fmt.Sprintf(`SELECT %s FROM payouts WHERE order_id = $1 AND seller_id = $2`, payoutColumns)
	var p domain.Payout
	if err := scanPayout(r.pool.QueryRow(ctx, q, orderID, sellerID), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) MarkTransferred(ctx context.Context, id int64, transferID string) error {
	const q = `
UPDATE payouts
SET status = $1, transfer_id = $2, failure_reason = NULL, updated_at = now()
WHERE id = $3
`
	cmd, err := r.pool.Exec(ctx, q, domain.PayoutStatusTransferred, transferID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) MarkFailed(ctx context.Context, id int64, status domain.PayoutStatus, reason string) error {
	const q = `
UPDATE payouts
SET status = $1, failure_reason = $2, updated_at = now()
WHERE id = $3
`
	cmd, err := r.pool.Exec(ctx, q, status, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.Payout, error) {
	q := fmt.Sprintf(`SELECT %s FROM payouts WHERE order_id = $1 ORDER BY seller_id ASC`, payoutColumns)
	return r.list(ctx, q, orderID)
}

func (r *postgresRepo) ListBySeller(ctx context.Context, sellerID int64) ([]domain.Payout, error) {
	q := fmt.Sprintf(`SELECT %s FROM payouts WHERE seller_id = $1 ORDER BY created_at DESC`, payoutColumns)
	return r.list(ctx, q, sellerID)
}

func (r *postgresRepo) list(ctx context.Context, q string, arg any) ([]domain.Payout, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := scanPayout(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanPayout(row pgx.Row, p *domain.Payout) error {
	return row.Scan(&p.ID, &p.OrderID, &p.SellerID, &p.GrossCents, &p.CommissionCents, &p.PayoutCents, &p.Status, &p.TransferID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
}
