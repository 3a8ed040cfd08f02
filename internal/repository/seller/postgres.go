package seller

import (
	"context"
	"errors"

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

const columns = `id, name, email, payee_id, payee_status, created_at`

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Seller, error) {
	const q = `SELECT ` + columns + ` FROM sellers WHERE id = $1`
	var s domain.Seller
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Name, &s.Email, &s.PayeeID, &s.PayeeStatus, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Seller, error) {
	if len(ids) == 0 {
		return map[int64]domain.Seller{}, nil
	}
	const q = `SELECT ` + columns + ` FROM sellers WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]domain.Seller, len(ids))
	for rows.Next() {
		var s domain.Seller
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.PayeeID, &s.PayeeStatus, &s.CreatedAt); err != nil {
			return nil, err
		}
		result[s.ID] = s
	}
	return result, rows.Err()
}

func (r *postgresRepo) SetPayee(ctx context.Context, id int64, payeeID string, status domain.PayeeStatus) error {
	const q = `
UPDATE sellers
SET payee_id = NULLIF($1, ''), payee_status = $2
WHERE id = $3
`
	cmd, err := r.pool.Exec(ctx, q, payeeID, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
