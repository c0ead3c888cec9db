package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/pagination"
)

// CachedStore is a read-through cache over a Store: an in-process LRU (L1)
// in front of an optional Redis (L2). Writes go to the underlying store
// first and then evict both layers. GetFold and List always hit the store
// because they back the duplicate-name guard and pagination.
type CachedStore struct {
	store   Store
	l1      *lru.LRU[string, *PermissionInfo]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedStore wraps store. redisClient may be nil to run with L1 only.
func NewCachedStore(store Store, redisClient *redis.Client, size int, ttl time.Duration, metrics *observability.Metrics) *CachedStore {
	if size <= 0 {
		size = 1000
	}
	return &CachedStore{
		store:   store,
		l1:      lru.NewLRU[string, *PermissionInfo](size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}
}

func cacheKey(permissionID string) string {
	return fmt.Sprintf("permission:%s", permissionID)
}

// copies keep callers from mutating cached entries
func clonePermission(info *PermissionInfo) *PermissionInfo {
	out := *info
	out.ManagedPolicyNames = append([]string(nil), info.ManagedPolicyNames...)
	out.CustomPolicyNames = append([]string(nil), info.CustomPolicyNames...)
	return &out
}

// Get returns the record from L1, then L2, then the store
func (c *CachedStore) Get(ctx context.Context, permissionID string) (*PermissionInfo, error) {
	key := cacheKey(permissionID)

	if info, ok := c.l1.Get(key); ok {
		c.metrics.RecordCacheHit("l1")
		return clonePermission(info), nil
	}
	c.metrics.RecordCacheMiss("l1")

	if info := c.getRedis(ctx, key); info != nil {
		c.metrics.RecordCacheHit("redis")
		c.l1.Add(key, info)
		return clonePermission(info), nil
	}

	info, err := c.store.Get(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	c.l1.Add(key, clonePermission(info))
	c.setRedis(ctx, key, info)
	return info, nil
}

func (c *CachedStore) getRedis(ctx context.Context, key string) *PermissionInfo {
	if c.redis == nil {
		return nil
	}

	data, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		c.metrics.RecordCacheMiss("redis")
		return nil
	}
	if err != nil {
		// a cache outage degrades to store reads
		return nil
	}

	var info PermissionInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		c.redis.Del(ctx, key)
		return nil
	}
	return &info
}

func (c *CachedStore) setRedis(ctx context.Context, key string, info *PermissionInfo) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, c.ttl)
}

func (c *CachedStore) invalidate(ctx context.Context, permissionID string) {
	key := cacheKey(permissionID)
	c.l1.Remove(key)
	if c.redis != nil {
		c.redis.Del(ctx, key)
	}
}

// GetFold always reads the store
func (c *CachedStore) GetFold(ctx context.Context, permissionID string) (*PermissionInfo, error) {
	return c.store.GetFold(ctx, permissionID)
}

// Create writes through and clears any stale entry for the id
func (c *CachedStore) Create(ctx context.Context, info *PermissionInfo) error {
	if err := c.store.Create(ctx, info); err != nil {
		return err
	}
	c.invalidate(ctx, info.PermissionID)
	return nil
}

// Update writes through and evicts the entry
func (c *CachedStore) Update(ctx context.Context, info *PermissionInfo) error {
	if err := c.store.Update(ctx, info); err != nil {
		return err
	}
	c.invalidate(ctx, info.PermissionID)
	return nil
}

// Delete removes the record and evicts the entry
func (c *CachedStore) Delete(ctx context.Context, permissionID string) error {
	if err := c.store.Delete(ctx, permissionID); err != nil {
		return err
	}
	c.invalidate(ctx, permissionID)
	return nil
}

// List always reads the store
func (c *CachedStore) List(ctx context.Context, filter ListFilter) (pagination.Page[*PermissionInfo], error) {
	return c.store.List(ctx, filter)
}
