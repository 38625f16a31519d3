package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// StatusCache caches per-account reward status listings in Redis. Entries
// are invalidated whenever a grant is recorded for the account.
type StatusCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewStatusCache creates a new reward status cache
func NewStatusCache(cache *RedisCache, ttl time.Duration) *StatusCache {
	return &StatusCache{cache: cache, ttl: ttl}
}

func statusKey(accountID types.AccountID) string {
	return fmt.Sprintf("rewards:status:%s", accountID)
}

// Get returns the cached listing for an account; found is false on a miss
func (c *StatusCache) Get(ctx context.Context, accountID types.AccountID) (statuses []*models.RewardStatus, found bool, err error) {
	data, err := c.cache.Get(ctx, statusKey(accountID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read status cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &statuses); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached statuses: %w", err)
	}

	return statuses, true, nil
}

// Set stores the listing for an account with the configured TTL
func (c *StatusCache) Set(ctx context.Context, accountID types.AccountID, statuses []*models.RewardStatus) error {
	data, err := json.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("failed to marshal statuses: %w", err)
	}

	if err := c.cache.Set(ctx, statusKey(accountID), data, c.ttl); err != nil {
		return fmt.Errorf("failed to write status cache: %w", err)
	}

	return nil
}

// Invalidate drops the cached listing for an account
func (c *StatusCache) Invalidate(ctx context.Context, accountID types.AccountID) error {
	if err := c.cache.Del(ctx, statusKey(accountID)); err != nil {
		return fmt.Errorf("failed to invalidate status cache: %w", err)
	}
	return nil
}
