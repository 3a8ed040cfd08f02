// Package ordernum generates human-readable order identifiers in the form
// ORD-YYYY-MM-NNNNNN with a sequence that resets every calendar month.
//
// Concurrency control: the sequence lives in a dedicated counter table
// (order_number_counters) bumped with a single atomic
// INSERT .. ON CONFLICT .. DO UPDATE .. RETURNING, so two transactions can
// never observe the same value regardless of isolation level. The unique
// constraint on orders.order_number stays as a backstop; on a collision
// with pre-existing rows the generator keeps bumping, then falls back to
// random suffixes, and finally fails with ErrSequenceExhausted rather than
// loop forever.
package ordernum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"

	"marketplace-api/internal/domain"
)

const (
	prefix = "ORD"
	maxSeq = 999999
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool. Generation normally
// runs inside the order-creation transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Generator struct {
	maxSequentialAttempts int
	maxRandomAttempts     int
	randSeq               func() int64
}

func New() *Generator {
	return &Generator{
		maxSequentialAttempts: 100,
		maxRandomAttempts:     1000,
		randSeq:               func() int64 { return rand.Int64N(maxSeq) + 1 },
	}
}

const bumpSQL = `
INSERT INTO order_number_counters (period, last_seq)
VALUES ($1, 1)
ON CONFLICT (period) DO UPDATE SET last_seq = order_number_counters.last_seq + 1
RETURNING last_seq
`

const existsSQL = `
SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)
`

// Next returns a free order number for the month containing now.
func (g *Generator) Next(ctx context.Context, q Querier, now time.Time) (string, error) {
	period := now.UTC().Format("2006-01")

	for i := 0; i < g.maxSequentialAttempts; i++ {
		var seq int64
		if err := q.QueryRow(ctx, bumpSQL, period).Scan(&seq); err != nil {
			return "", fmt.Errorf("bump order counter: %w", err)
		}
		if seq > maxSeq {
			break
		}
		candidate := format(period, seq)
		taken, err := g.taken(ctx, q, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	// Counter space exhausted or densely colliding with legacy rows; try
	// random suffixes within the period a bounded number of times.
	for i := 0; i < g.maxRandomAttempts; i++ {
		candidate := format(period, g.randSeq())
		taken, err := g.taken(ctx, q, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", domain.ErrSequenceExhausted
}

func (g *Generator) taken(ctx context.Context, q Querier, candidate string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, existsSQL, candidate).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order number: %w", err)
	}
	return exists, nil
}

func format(period string, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, period, seq)
}
