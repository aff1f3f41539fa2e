package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	appliedKeyPrefix = "inventory:applied:"
	appliedKeyTTL    = 24 * time.Hour
)

// Deduplicator is a short-retention command dedup cache in front of the
// ledger store. Keys expire after a day; the record-embedded applied set
// remains the authority, so an expired or lost key only costs one extra
// store round-trip on redelivery.
type Deduplicator struct {
	client *redis.Client
}

func NewDeduplicator(client *redis.Client) *Deduplicator {
	return &Deduplicator{client: client}
}

func (d *Deduplicator) AlreadyApplied(ctx context.Context, commandID string) (bool, error) {
	err := d.client.Get(ctx, appliedKeyPrefix+commandID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Deduplicator) MarkApplied(ctx context.Context, commandID string) error {
	return d.client.Set(ctx, appliedKeyPrefix+commandID, 1, appliedKeyTTL).Err()
}
