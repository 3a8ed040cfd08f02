package chat

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

func (r *postgresRepo) GetOrCreate(ctx context.Context, buyerID, sellerID, productID int64) (*domain.ServiceChat, bool, error) {
	const insert = `
INSERT INTO service_chats (buyer_id, seller_id, product_id)
VALUES ($1, $2, $3)
ON CONFLICT (buyer_id, seller_id, product_id) DO NOTHING
RETURNING id, buyer_id, seller_id, product_id, created_at
`
	var c domain.ServiceChat
	err := r.pool.QueryRow(ctx, insert, buyerID, sellerID, productID).
		Scan(&c.ID, &c.BuyerID, &c.SellerID, &c.ProductID, &c.CreatedAt)
	if err == nil {
		return &c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	const get = `
SELECT id, buyer_id, seller_id, product_id, created_at
FROM service_chats
WHERE buyer_id = $1 AND seller_id = $2 AND product_id = $3
`
	err = r.pool.QueryRow(ctx, get, buyerID, sellerID, productID).
		Scan(&c.ID, &c.BuyerID, &c.SellerID, &c.ProductID, &c.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return &c, false, nil
}
