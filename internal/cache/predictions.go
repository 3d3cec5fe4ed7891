// Package cache keeps recent pipeline results so repeated requests for the
// same city and shift skip the warehouse round trips.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

// DefaultTTL bounds how stale a served prediction can be.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "shiftcast:predictions"

// Store is a byte-oriented key/value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// PredictionCache stores prediction rows keyed on (city, shift).
type PredictionCache struct {
	store Store
	ttl   time.Duration
}

// NewPredictionCache wraps a store. A non-positive ttl means DefaultTTL.
func NewPredictionCache(store Store, ttl time.Duration) *PredictionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PredictionCache{store: store, ttl: ttl}
}

// Key returns the storage key for a city and shift. The city is used as
// given: sources match it exactly, so the cache must too.
func Key(city string, shift forecast.Shift) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, city, shift)
}

// Get implements forecast.ResultCache.
func (c *PredictionCache) Get(ctx context.Context, city string, shift forecast.Shift) ([]forecast.PredictionRow, bool, error) {
	data, ok, err := c.store.Get(ctx, Key(city, shift))
	if err != nil || !ok {
		return nil, false, err
	}

	var rows []forecast.PredictionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeResultParsing, "Corrupt cached predictions").
			WithContext("city", city).
			WithContext("shift", string(shift))
	}
	return rows, true, nil
}

// Set implements forecast.ResultCache.
func (c *PredictionCache) Set(ctx context.Context, city string, shift forecast.Shift, rows []forecast.PredictionRow) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, Key(city, shift), data, c.ttl)
}

// Invalidate drops the cached result for a city and shift.
func (c *PredictionCache) Invalidate(ctx context.Context, city string, shift forecast.Shift) error {
	return c.store.Delete(ctx, Key(city, shift))
}

// Stats reports the store's counters. Only the memory backend keeps them.
func (c *PredictionCache) Stats() (Stats, bool) {
	if m, ok := c.store.(*MemoryStore); ok {
		return m.GetStats(), true
	}
	return Stats{}, false
}

// Close releases the underlying store.
func (c *PredictionCache) Close() error {
	return c.store.Close()
}

// New builds the prediction cache described by cfg. It returns nil when
// caching is disabled.
func New(ctx context.Context, cfg models.Cache) (*PredictionCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var store Store
	switch cfg.Backend {
	case "", models.CacheMemory:
		mc := DefaultMemoryConfig()
		if cfg.MaxItems > 0 {
			mc.MaxItems = cfg.MaxItems
		}
		store = NewMemoryStore(mc)
	case models.CacheRedis:
		rs, err := NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		return nil, errors.ConfigError(fmt.Sprintf("Unknown cache backend %q", cfg.Backend), "cache.backend")
	}

	return NewPredictionCache(store, cfg.TTL), nil
}
