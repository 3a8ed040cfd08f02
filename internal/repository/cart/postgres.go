package cart

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

func (r *postgresRepo) GetOrCreate(ctx context.Context, buyerID int64) (*domain.Cart, error) {
	const q = `
INSERT INTO carts (buyer_id)
VALUES ($1)
ON CONFLICT (buyer_id) DO UPDATE SET buyer_id = EXCLUDED.buyer_id
RETURNING id, buyer_id, created_at
`
	var cart domain.Cart
	if err := r.pool.QueryRow(ctx, q, buyerID).Scan(&cart.ID, &cart.BuyerID, &cart.CreatedAt); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *postgresRepo) GetByBuyer(ctx context.Context, buyerID int64) (*domain.Cart, error) {
	const cartQuery = `
SELECT id, buyer_id, created_at
FROM carts
WHERE buyer_id = $1
`
	var cart domain.Cart
	err := r.pool.QueryRow(ctx, cartQuery, buyerID).Scan(&cart.ID, &cart.BuyerID, &cart.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT id, cart_id, product_kind, product_id, quantity, created_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.CartID, &line.Ref.Kind, &line.Ref.ID, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *postgresRepo) AddLine(ctx context.Context, cartID int64, ref domain.ProductRef, quantity int) error {
	const q = `
INSERT INTO cart_lines (cart_id, product_kind, product_id, quantity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, product_kind, product_id)
DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
`
	_, err := r.pool.Exec(ctx, q, cartID, ref.Kind, ref.ID, quantity)
	return err
}

func (r *postgresRepo) RemoveLine(ctx context.Context, cartID, lineID int64) error {
	const q = `
DELETE FROM cart_lines
WHERE id = $1 AND cart_id = $2
`
	cmd, err := r.pool.Exec(ctx, q, lineID, cartID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Clear(ctx context.Context, cartID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	return err
}

func (r *postgresRepo) RemoveSettledLines(ctx context.Context, buyerID int64, refs []domain.ProductRef) error {
	if len(refs) == 0 {
		return nil
	}
	kinds := make([]string, len(refs))
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		kinds[i] = string(ref.Kind)
		ids[i] = ref.ID
	}
	const q = `
DELETE FROM cart_lines
WHERE cart_id = (SELECT id FROM carts WHERE buyer_id = $1)
  AND (product_kind, product_id) IN (
	SELECT * FROM unnest($2::text[], $3::bigint[])
  )
`
	_, err := r.pool.Exec(ctx, q, buyerID, kinds, ids)
	return err
}
