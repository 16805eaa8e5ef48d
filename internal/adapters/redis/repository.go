package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// EventKeyPrefix is the prefix for processed webhook event keys in Redis
	EventKeyPrefix = "inbox:event:"
	// DefaultEventTTL covers Meta's redelivery window with margin (3 days)
	DefaultEventTTL = 72 * time.Hour
)

// Repository implements core.EventCache using Redis
type Repository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(client *redis.Client, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &Repository{client: client, ttl: ttl}
}

// Seen reports whether the event id was marked as persisted
func (r *Repository) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, EventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return n > 0, nil
}

// Mark records the event id as persisted; an existing key keeps its TTL
func (r *Repository) Mark(ctx context.Context, eventID string) error {
	if err := r.client.SetNX(ctx, EventKeyPrefix+eventID, time.Now().Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event: %w", err)
	}
	return nil
}
