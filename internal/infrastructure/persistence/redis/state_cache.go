package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ByteCache is the part of Cache the state cache uses.
type ByteCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// StateCache wraps a progress.Store with a Redis snapshot cache.
// Loads read through the cache; saves write to the backend first,
// then refresh the snapshot. The backend stays the source of truth:
// cache failures are logged and never fail an operation.
type StateCache struct {
	backend progress.Store
	cache   ByteCache
	ttl     time.Duration
	retrier *retry.Retrier
	logger  *logger.Logger
}

// NewStateCache creates the decorator. Non-positive ttl uses DefaultSnapshotTTL.
func NewStateCache(backend progress.Store, cache ByteCache, ttl time.Duration, log *logger.Logger) *StateCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StateCache{
		backend: backend,
		cache:   cache,
		ttl:     ttl,
		retrier: retry.CacheRetrier(),
		logger:  log.With(logger.Component("state_cache")),
	}
}

// Load implements progress.Store.
func (c *StateCache) Load(ctx context.Context, userID string) (*progress.State, error) {
	key := StateKey(userID)

	data, err := c.cache.GetBytes(ctx, key)
	switch {
	case err == nil:
		var st progress.State
		if err := json.Unmarshal(data, &st); err == nil {
			st.Normalize()
			return &st, nil
		}
		c.logger.Warn("dropping unreadable snapshot", logger.UserID(userID))
		_ = c.cache.Delete(ctx, key)
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("snapshot cache read failed", logger.UserID(userID), logger.Err(err))
	}

	st, err := c.backend.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, st)
	return st, nil
}

// Save implements progress.Store.
func (c *StateCache) Save(ctx context.Context, userID string, st *progress.State) error {
	if err := c.backend.Save(ctx, userID, st); err != nil {
		return err
	}
	c.store(ctx, userID, st)
	return nil
}

// Invalidate drops a learner's snapshot.
func (c *StateCache) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, StateKey(userID))
}

// store writes the snapshot. If that fails the old snapshot is removed
// so a later Load cannot return stale state.
func (c *StateCache) store(ctx context.Context, userID string, st *progress.State) {
	data, err := json.Marshal(st)
	if err != nil {
		c.logger.Error("encode snapshot", logger.UserID(userID), logger.Err(err))
		return
	}

	key := StateKey(userID)
	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.cache.SetBytes(ctx, key, data, c.ttl); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err == nil {
		return
	}

	c.logger.Warn("snapshot cache write failed", logger.UserID(userID), logger.Err(err))
	if delErr := c.cache.Delete(ctx, key); delErr != nil {
		c.logger.Error("stale snapshot left in cache", logger.UserID(userID), logger.Err(delErr))
	}
}
