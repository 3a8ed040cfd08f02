package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*EventStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewEventStore(rdb, time.Hour), mr
}

func TestMarkProcessedFirstDeliveryWins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Fatal("first delivery should win")
	}

	second, err := store.MarkProcessed(ctx, "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second {
		t.Fatal("second delivery should be deduplicated")
	}
}

func TestForgetReleasesClaim(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.MarkProcessed(ctx, "evt_3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Forget(ctx, "evt_3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := store.MarkProcessed(ctx, "evt_3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again {
		t.Fatal("forgotten event id should be claimable again")
	}
}

func TestMarkProcessedExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.MarkProcessed(ctx, "evt_2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	again, err := store.MarkProcessed(ctx, "evt_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again {
		t.Fatal("expired event id should be accepted again")
	}
}
