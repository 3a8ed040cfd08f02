package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/ordernum"
)

const uniqueViolation = "23505"

type postgresRepo struct {
	pool   *pgxpool.Pool
	gen    *ordernum.Generator
	logger *log.Logger
	now    func() time.Time
}

func NewPostgres(pool *pgxpool.Pool, gen *ordernum.Generator, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, gen: gen, logger: logger, now: time.Now}
}

// createAttempts bounds retries when a concurrent transaction wins an
// order-number race. The session-id conflict is never retried: it means
// settlement already happened.
const createAttempts = 3

func (r *postgresRepo) CreateWithItems(ctx context.Context, in CreateInput) (*domain.Order, bool, error) {
	if len(in.Items) == 0 {
		return nil, false, domain.Validationf("order must have at least one item")
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		o, created, retry, err := r.tryCreate(ctx, in)
		if err != nil {
			return nil, false, err
		}
		if retry {
			r.logger.Printf("order repo: order number race, retrying (attempt %d)", attempt+1)
			continue
		}
		return o, created, nil
	}
	return nil, false, fmt.Errorf("create order: exhausted order number retries")
}

func (r *postgresRepo) tryCreate(ctx context.Context, in CreateInput) (o *domain.Order, created, retry bool, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, false, err
	}
	defer tx.Rollback(ctx)

	number, err := r.gen.Next(ctx, tx, r.now())
	if err != nil {
		return nil, false, false, err
	}

	const insertOrder = `
INSERT INTO orders (buyer_id, order_number, status, total_cents, provider_session_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at
`
	var ord domain.Order
	ord.BuyerID = in.BuyerID
	ord.OrderNumber = number
	ord.Status = domain.OrderStatusCompleted
	ord.TotalCents = in.TotalCents
	ord.ProviderSessionID = in.ProviderSessionID

	err = tx.QueryRow(ctx, insertOrder, in.BuyerID, number, domain.OrderStatusCompleted, in.TotalCents, in.ProviderSessionID).
		Scan(&ord.ID, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "orders_provider_session_id_key":
				// Settlement already created this order; hand it back.
				existing, gerr := r.GetBySessionID(ctx, in.ProviderSessionID)
				if gerr != nil {
					return nil, false, false, gerr
				}
				return existing, false, false, nil
			case "orders_order_number_key":
				return nil, false, true, nil
			}
		}
		return nil, false, false, err
	}

	const insertItem = `
INSERT INTO order_items (order_id, product_kind, product_id, quantity, price_cents)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at
`
	for _, it := range in.Items {
		item := domain.OrderItem{
			OrderID:    ord.ID,
			Ref:        it.Ref,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		}
		err = tx.QueryRow(ctx, insertItem, ord.ID, it.Ref.Kind, it.Ref.ID, it.Quantity, it.PriceCents).
			Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, false, false, err
		}
		ord.Items = append(ord.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, false, err
	}
	r.logger.Printf("order repo: created order %s (session=%s items=%d total=%d)", ord.OrderNumber, in.ProviderSessionID, len(ord.Items), in.TotalCents)
	return &ord, true, false, nil
}

const orderColumns = `id, buyer_id, order_number, status, total_cents, provider_session_id, created_at, updated_at`

func (r *postgresRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	q := fmt.Sprintf(`SELECT %s FROM orders WHERE provider_session_id = $1`, orderColumns)
	ord, err := r.fetchOne(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

func (r *postgresRepo) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	q := fmt.Sprintf(`SELECT %s FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, orderColumns)
	rows, err := r.pool.Query(ctx, q, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var ord domain.Order
		if err := scanOrder(rows, &ord); err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *postgresRepo) SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	const q = `
UPDATE orders
SET status = $1, updated_at = now()
WHERE id = $2
`
	cmd, err := r.pool.Exec(ctx, q, status, orderID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) fetchOne(ctx context.Context, q string, args ...any) (*domain.Order, error) {
	var ord domain.Order
	row := r.pool.QueryRow(ctx, q, args...)
	if err := scanOrder(row, &ord); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &ord, nil
}

func scanOrder(row pgx.Row, ord *domain.Order) error {
	return row.Scan(&ord.ID, &ord.BuyerID, &ord.OrderNumber, &ord.Status, &ord.TotalCents, &ord.ProviderSessionID, &ord.CreatedAt, &ord.UpdatedAt)
}

func (r *postgresRepo) loadItems(ctx context.Context, ord *domain.Order) error {
	const q = `
SELECT id, order_id, product_kind, product_id, quantity, price_cents, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := r.pool.Query(ctx, q, ord.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Ref.Kind, &item.Ref.ID, &item.Quantity, &item.PriceCents, &item.CreatedAt); err != nil {
			return err
		}
		ord.Items = append(ord.Items, item)
	}
	return rows.Err()
}
