package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const slotCacheKeyPrefix = "slots:"

// SlotCache memoizes computed slot sequences per date in redis. The grid is
// deterministic for a template+date, so cached entries only need a short TTL
// to pick up template changes. A nil cache is a no-op.
type SlotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSlotCache creates a cache over the given client. Returns nil when the
// client is nil so callers can wire it unconditionally.
func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SlotCache{redis: client, ttl: ttl}
}

// Get returns the cached slots for a date, if present.
func (c *SlotCache) Get(ctx context.Context, date time.Time) ([]Slot, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, slotCacheKeyPrefix+FormatDate(date)).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Put stores the slots for a date.
func (c *SlotCache) Put(ctx context.Context, date time.Time, slots []Slot) error {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("schedule: marshal slots: %w", err)
	}
	if err := c.redis.Set(ctx, slotCacheKeyPrefix+FormatDate(date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("schedule: cache slots: %w", err)
	}
	return nil
}
