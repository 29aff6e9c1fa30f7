package tenancy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const flagCacheTTL = 5 * time.Minute

// FlagCache is a cache-aside read-through cache of tenant suspension
// status, consulted on the FSM hot path without a DB round trip per turn
// (spec.md §5 "tenant-flag cache").
type FlagCache struct {
	rdb *redis.Client
}

func NewFlagCache(rdb *redis.Client) *FlagCache {
	return &FlagCache{rdb: rdb}
}

func key(tenantID int64) string {
	return fmt.Sprintf("concierge:tenant-flags:%d", tenantID)
}

// IsSuspended answers from cache when present; callers fall back to the
// resolver/billing store on a cache miss and should call Set to populate it.
func (c *FlagCache) IsSuspended(ctx context.Context, tenantID int64) (suspended bool, hit bool) {
	if c == nil || c.rdb == nil {
		return false, false
	}
	val, err := c.rdb.Get(ctx, key(tenantID)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Set records a tenant's suspension status; fsm.Engine.HandleTurn calls it
// after each resolver fetch. The billing worker does not call Set: it
// invalidates the entry of each tenant it suspends.
func (c *FlagCache) Set(ctx context.Context, tenantID int64, suspended bool) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	val := "0"
	if suspended {
		val = "1"
	}
	return c.rdb.Set(ctx, key(tenantID), val, flagCacheTTL).Err()
}

// Invalidate drops a cached flag, forcing the next read to miss.
func (c *FlagCache) Invalidate(ctx context.Context, tenantID int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, key(tenantID)).Err()
}
