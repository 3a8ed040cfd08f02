package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marketplace-api/internal/domain"
)

type stubRepo struct {
	created []domain.Notification
	err     error
}

func (s *stubRepo) Create(_ context.Context, n domain.Notification) (*domain.Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, n)
	return &n, nil
}

func (s *stubRepo) last(t *testing.T) domain.Notification {
	t.Helper()
	if len(s.created) == 0 {
		t.Fatal("no notification was created")
	}
	return s.created[len(s.created)-1]
}

func TestPayoutOutcomesReadDifferently(t *testing.T) {
	repo := &stubRepo{}
	sink := New(repo, nil)
	ctx := context.Background()

	sink.PayoutDelayed(ctx, 5, "ORD-2026-08-000001")
	delayed := repo.last(t)
	if delayed.Type != domain.NotificationPayoutDelayed {
		t.Fatalf("expected payout_delayed, got %s", delayed.Type)
	}
	if !strings.Contains(delayed.Body, "retry automatically") {
		t.Fatalf("delayed body should promise an automatic retry, got %q", delayed.Body)
	}

	sink.PayoutFailed(ctx, 5, "ORD-2026-08-000001", true)
	actionable := repo.last(t)
	if actionable.Type != domain.NotificationPayoutFailed {
		t.Fatalf("expected payout_failed, got %s", actionable.Type)
	}
	if !strings.Contains(actionable.Body, "payout account setup") {
		t.Fatalf("actionable body should ask for payee setup, got %q", actionable.Body)
	}

	sink.PayoutFailed(ctx, 5, "ORD-2026-08-000001", false)
	manual := repo.last(t)
	if !strings.Contains(manual.Body, "follow up") {
		t.Fatalf("manual body should promise a follow-up, got %q", manual.Body)
	}

	bodies := map[string]bool{}
	for _, n := range repo.created {
		bodies[n.Body] = true
	}
	if len(bodies) != 3 {
		t.Fatalf("expected three distinct payout messages, got %d", len(bodies))
	}
}

func TestSendSwallowsRepositoryErrors(t *testing.T) {
	repo := &stubRepo{err: errors.New("insert failed")}
	sink := New(repo, nil)

	// must not panic or propagate; delivery is best effort
	sink.OrderCreated(context.Background(), 9, "ORD-2026-08-000002", 1000)
	sink.PayoutDelayed(context.Background(), 5, "ORD-2026-08-000002")
}
