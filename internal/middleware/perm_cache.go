package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPermCacheTTL = 5 * time.Minute

// PermissionCache stores role permission sets between requests
type PermissionCache interface {
	Get(ctx context.Context, role string) ([]string, bool)
	Set(ctx context.Context, role string, codes []string)
	// Invalidate forgets one role, or every role when role is empty
	Invalidate(ctx context.Context, role string)
}

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

// MemoryCache is a per-process cache, suitable for a single API replica
type MemoryCache struct {
	entries sync.Map // roleName -> permCacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultPermCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, role string) ([]string, bool) {
	entry, ok := m.entries.Load(role)
	if !ok {
		return nil, false
	}
	cached := entry.(permCacheEntry)
	if !m.now().Before(cached.expiresAt) {
		m.entries.Delete(role)
		return nil, false
	}
	return cached.codes, true
}

func (m *MemoryCache) Set(_ context.Context, role string, codes []string) {
	m.entries.Store(role, permCacheEntry{codes: codes, expiresAt: m.now().Add(m.ttl)})
}

func (m *MemoryCache) Invalidate(_ context.Context, role string) {
	if role != "" {
		m.entries.Delete(role)
		return
	}
	m.entries.Range(func(key, _ interface{}) bool {
		m.entries.Delete(key)
		return true
	})
}

// RedisCache shares permission sets across API replicas. Redis failures degrade to cache
// misses so the database stays authoritative.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

const permKeyPrefix = "perm:role:"

func NewRedisCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultPermCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (r *RedisCache) Get(ctx context.Context, role string) ([]string, bool) {
	raw, err := r.client.Get(ctx, permKeyPrefix+role).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("permission cache read failed", zap.String("role", role), zap.Error(err))
		}
		return nil, false
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, false
	}
	return codes, true
}

func (r *RedisCache) Set(ctx context.Context, role string, codes []string) {
	raw, err := json.Marshal(codes)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, permKeyPrefix+role, raw, r.ttl).Err(); err != nil {
		r.log.Warn("permission cache write failed", zap.String("role", role), zap.Error(err))
	}
}

func (r *RedisCache) Invalidate(ctx context.Context, role string) {
	if role != "" {
		_ = r.client.Del(ctx, permKeyPrefix+role).Err()
		return
	}
	iter := r.client.Scan(ctx, 0, permKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		_ = r.client.Del(ctx, iter.Val()).Err()
	}
	if err := iter.Err(); err != nil {
		r.log.Warn("permission cache flush failed", zap.Error(err))
	}
}
