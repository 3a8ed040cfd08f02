package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-api/internal/domain"
)

type sellerSeed struct {
	Name        string
	Email       string
	PayeeID     string
	PayeeStatus domain.PayeeStatus
}

type productSeed struct {
	Kind        domain.Kind
	SellerEmail string
	Title       string
	Description string
	PriceCents  int64
}

// Apply inserts demo data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	sellers := []sellerSeed{
		{Name: "Ада Стужина", Email: "ada@example.test", PayeeID: "acct_demo_ada", PayeeStatus: domain.PayeeStatusActive},
		{Name: "Boris Keller", Email: "boris@example.test", PayeeID: "acct_demo_boris", PayeeStatus: domain.PayeeStatusPending},
		{Name: "Clara Voss", Email: "clara@example.test"},
	}
	ids := make(map[string]int64, len(sellers))
	for _, s := range sellers {
		id, err := upsertSeller(ctx, pool, s)
		if err != nil {
			return fmt.Errorf("upsert seller %s: %w", s.Email, err)
		}
		ids[s.Email] = id
	}

	products := []productSeed{
		{Kind: domain.KindBook, SellerEmail: "ada@example.test", Title: "Practical Distributed Systems", Description: "Case studies from real outages", PriceCents: 3499},
		{Kind: domain.KindBook, SellerEmail: "boris@example.test", Title: "Pricing for Indie Makers", Description: "How to stop undercharging", PriceCents: 1999},
		{Kind: domain.KindCourse, SellerEmail: "ada@example.test", Title: "PostgreSQL Deep Dive", Description: "Eight weeks, query planner included", PriceCents: 14900},
		{Kind: domain.KindWebinar, SellerEmail: "clara@example.test", Title: "Tax Basics for Sellers", Description: "Live session with Q&A", PriceCents: 2500},
		{Kind: domain.KindWebinar, Title: "Welcome to the Marketplace", Description: "Platform-run onboarding webinar", PriceCents: 0},
		{Kind: domain.KindService, SellerEmail: "ada@example.test", Title: "Architecture Review", Description: "Two-hour consultation over chat", PriceCents: 25000},
	}
	for _, p := range products {
		var sellerID int64
		if p.SellerEmail != "" {
			sellerID = ids[p.SellerEmail]
		}
		if err := upsertProduct(ctx, pool, sellerID, p); err != nil {
			return fmt.Errorf("upsert %s %q: %w", p.Kind, p.Title, err)
		}
	}

	if err := ensureSettings(ctx, pool); err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

func upsertSeller(ctx context.Context, pool *pgxpool.Pool, s sellerSeed) (int64, error) {
	const q = `
INSERT INTO sellers (name, email, payee_id, payee_status)
VALUES ($1, $2, NULLIF($3, ''), $4)
ON CONFLICT (email) DO UPDATE
SET name = EXCLUDED.name,
    payee_id = EXCLUDED.payee_id,
    payee_status = EXCLUDED.payee_status
RETURNING id
`
	status := s.PayeeStatus
	if status == "" {
		status = domain.PayeeStatusNone
	}
	var id int64
	if err := pool.QueryRow(ctx, q, s.Name, s.Email, s.PayeeID, status).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

var tables = map[domain.Kind]string{
	domain.KindBook:    "books",
	domain.KindCourse:  "courses",
	domain.KindWebinar: "webinars",
	domain.KindService: "services",
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, sellerID int64, p productSeed) error {
	// Product tables have no natural key, so the seed dedupes on title.
	q := fmt.Sprintf(`
INSERT INTO %[1]s (seller_id, title, description, price_cents, active)
SELECT NULLIF($1, 0), $2, $3, $4, TRUE
WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE title = $2)
`, tables[p.Kind])
	_, err := pool.Exec(ctx, q, sellerID, p.Title, p.Description, p.PriceCents)
	return err
}

func ensureSettings(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
INSERT INTO site_settings (id, platform_name, commission_enabled, commission_percentage, platform_payee_id)
VALUES (1, 'Demo Marketplace', TRUE, 10.00, 'acct_demo_platform')
ON CONFLICT (id) DO NOTHING
`
	_, err := pool.Exec(ctx, q)
	return err
}
