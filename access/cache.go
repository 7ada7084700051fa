package access

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// MEMORY CACHE - TTL map, single process
// =============================================================================

// MemoryCache keeps snapshots in process for ttl. Each user carries an
// invalidation epoch; Set drops a snapshot loaded before the last Invalidate.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[generic.UserID]cacheEntry
	epochs     map[generic.UserID]int64
	generation int64 // bumped by InvalidateAll
	ttl        time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[generic.UserID]cacheEntry),
		epochs:  make(map[generic.UserID]int64),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, userID generic.UserID) (Snapshot, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return Snapshot{}, false, nil
	}
	return entry.snap, true, nil
}

func (c *MemoryCache) Epoch(_ context.Context, userID generic.UserID) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epochs[userID] + c.generation, nil
}

func (c *MemoryCache) Set(_ context.Context, snap Snapshot, epoch int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[snap.Profile.ID]+c.generation != epoch {
		return nil
	}
	c.entries[snap.Profile.ID] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID generic.UserID) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.epochs[userID]++
	c.mu.Unlock()
	return nil
}

// InvalidateAll clears every entry.
func (c *MemoryCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[generic.UserID]cacheEntry)
	c.generation++
	c.mu.Unlock()
}

// =============================================================================
// REDIS CACHE - Shared between server instances
// =============================================================================

const (
	redisKeyPrefix   = "dashboard:permissions:"
	redisEpochPrefix = "dashboard:permissions:epoch:"
)

// RedisCache stores snapshots as JSON with a TTL, so a save on one instance
// invalidates the snapshot for all of them. The epoch counter has no TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func RedisKey(userID generic.UserID) string { return redisKeyPrefix + string(userID) }

func RedisEpochKey(userID generic.UserID) string { return redisEpochPrefix + string(userID) }

func (c *RedisCache) Get(ctx context.Context, userID generic.UserID) (Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, RedisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (c *RedisCache) Epoch(ctx context.Context, userID generic.UserID) (int64, error) {
	return readEpoch(ctx, c.client, userID)
}

type epochReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readEpoch(ctx context.Context, r epochReader, userID generic.UserID) (int64, error) {
	n, err := r.Get(ctx, RedisEpochKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Set writes snap only while the epoch still equals epoch. The epoch key is
// watched, so an Invalidate racing the write aborts it.
func (c *RedisCache) Set(ctx context.Context, snap Snapshot, epoch int64) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readEpoch(ctx, tx, snap.Profile.ID)
		if err != nil || current != epoch {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, RedisKey(snap.Profile.ID), raw, c.ttl)
			return nil
		})
		return err
	}, RedisEpochKey(snap.Profile.ID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, userID generic.UserID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, RedisKey(userID))
		pipe.Incr(ctx, RedisEpochKey(userID))
		return nil
	})
	return err
}
