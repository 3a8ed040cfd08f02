// Package cache holds the redis-backed processed-event store. The payment
// provider re-delivers webhook events; this is the cheap first gate before
// the database's provider_session_id uniqueness, which remains the real
// idempotency guard.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type EventStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEventStore(rdb *redis.Client, ttl time.Duration) *EventStore {
	return &EventStore{rdb: rdb, ttl: ttl}
}

// MarkProcessed records the event id and reports whether this caller was
// first. A second delivery of the same event gets false.
func (s *EventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.rdb.SetNX(ctx, "webhook:event:"+eventID, "1", s.ttl).Result()
}

// Forget releases a claimed event id so the provider's next re-delivery is
// processed again. Called when handling the event failed after the claim.
func (s *EventStore) Forget(ctx context.Context, eventID string) error {
	return s.rdb.Del(ctx, "webhook:event:"+eventID).Err()
}
