package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookable/internal/interval"

	"github.com/redis/go-redis/v9"
)

// SlotKey identifies one slot enumeration. At is truncated to the minute so a cached answer
// never outlives the instant it was computed for by more than a minute.
type SlotKey struct {
	Resource string
	Revision string
	Day      interval.Day
	Duration time.Duration
	At       time.Time
}

func (k SlotKey) String() string {
	return fmt.Sprintf("slots:%s:%s:%s:%d:%d",
		k.Resource, k.Revision, k.Day, int64(k.Duration/time.Minute), k.At.Truncate(time.Minute).Unix())
}

// SlotCache caches slot enumerations in Redis.
type SlotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSlotCache returns a cache over rdb. A nil client or non-positive ttl disables caching.
func NewSlotCache(rdb *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{redis: rdb, ttl: ttl}
}

// Enabled reports whether lookups can hit.
func (c *SlotCache) Enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get returns the cached slots for key in loc. A miss is (nil, false, nil).
func (c *SlotCache) Get(ctx context.Context, key SlotKey, loc *time.Location) ([]time.Time, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	val, err := c.redis.Get(ctx, key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read slot cache: %w", err)
	}

	var slots []time.Time
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false, fmt.Errorf("decode slot cache: %w", err)
	}
	// JSON keeps only the offset.
	for i := range slots {
		slots[i] = slots[i].In(loc)
	}
	return slots, true, nil
}

// Set stores slots under key for the cache TTL.
func (c *SlotCache) Set(ctx context.Context, key SlotKey, slots []time.Time) error {
	if !c.Enabled() {
		return nil
	}
	if slots == nil {
		slots = []time.Time{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slot cache: %w", err)
	}
	if err := c.redis.Set(ctx, key.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write slot cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *SlotCache) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
