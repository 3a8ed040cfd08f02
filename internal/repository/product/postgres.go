package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-api/internal/domain"
)

// Each product kind lives in its own table sharing a common column shape.
var tableForKind = map[domain.Kind]string{
	domain.KindBook:    "books",
	domain.KindCourse:  "courses",
	domain.KindWebinar: "webinars",
	domain.KindService: "services",
}

type postgresStore struct {
	pool   *pgxpool.Pool
	kind   domain.Kind
	table  string
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, kind domain.Kind, logger *log.Logger) (Store, error) {
	table, ok := tableForKind[kind]
	if !ok {
		return nil, fmt.Errorf("unknown product kind %q", kind)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresStore{pool: pool, kind: kind, table: table, logger: logger}, nil
}

// NewPostgresRegistry builds a registry covering every product kind.
func NewPostgresRegistry(pool *pgxpool.Pool, logger *log.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, kind := range domain.Kinds {
		store, err := NewPostgres(pool, kind, logger)
		if err != nil {
			return nil, err
		}
		reg.Register(kind, store)
	}
	return reg, nil
}

func (s *postgresStore) Get(ctx context.Context, id int64) (*domain.Product, error) {
	q := fmt.Sprintf(`
SELECT id, COALESCE(seller_id, 0), title, COALESCE(description, ''), price_cents, active, created_at
FROM %s
WHERE id = $1
`, s.table)

	var p domain.Product
	p.Ref.Kind = s.kind
	err := s.pool.QueryRow(ctx, q, id).Scan(&p.Ref.ID, &p.SellerID, &p.Title, &p.Description, &p.PriceCents, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		s.logger.Printf("product repo: get %s/%d error=%v", s.kind, id, err)
		return nil, err
	}
	return &p, nil
}

func (s *postgresStore) List(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	q := fmt.Sprintf(`
SELECT id, COALESCE(seller_id, 0), title, COALESCE(description, ''), price_cents, active, created_at
FROM %s
WHERE ($1 = false OR active)
ORDER BY created_at DESC
`, s.table)

	rows, err := s.pool.Query(ctx, q, activeOnly)
	if err != nil {
		s.logger.Printf("product repo: list %s error=%v", s.kind, err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		p.Ref.Kind = s.kind
		if err := rows.Scan(&p.Ref.ID, &p.SellerID, &p.Title, &p.Description, &p.PriceCents, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
