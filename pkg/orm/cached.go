package orm

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/cache"
)

// CacheKey returns the cache store key of the record
func (m *Model) CacheKey() string {
	return cache.ModelKey(m.typ.name, m.IDString())
}

// fetch fills the stored layer of a persisted record. Cached types probe the
// cache store first; concurrent misses for the same key share one driver load.
func (m *Model) fetch(ctx context.Context) error {
	if !m.typ.cached {
		values, err := m.load(ctx)
		if err != nil {
			return err
		}
		m.refresh(values)
		return nil
	}

	key := m.CacheKey()
	if values, ok := m.readCache(ctx, key); ok {
		m.refresh(values)
		return nil
	}

	shared, err, _ := m.typ.flight.Do(key, func() (any, error) {
		values, err := m.load(ctx)
		if err != nil {
			return nil, err
		}
		m.storeCache(ctx, key, values)
		return values, nil
	})
	if err != nil {
		return err
	}

	m.refresh(copyMap(shared.(map[string]any)))
	return nil
}

func (m *Model) readCache(ctx context.Context, key string) (map[string]any, bool) {
	store := m.typ.mgr.cache

	data, hit, err := store.Get(ctx, key)
	if err != nil {
		m.typ.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}

	entry, err := cache.Decode(data)
	if err == nil {
		var values map[string]any
		if values, err = m.typ.fromMap(entry); err == nil {
			m.typ.logger.Debug("cache hit", zap.String("key", key))
			return values, true
		}
	}

	m.typ.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
	if err := store.Delete(ctx, key); err != nil {
		m.typ.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

func (m *Model) storeCache(ctx context.Context, key string, values map[string]any) error {
	data, err := cache.Encode(values)
	if err != nil {
		m.typ.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return err
	}
	if err := m.typ.mgr.cache.Set(ctx, key, data, m.typ.cacheTTL); err != nil {
		m.typ.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// writeCache stores the current stored layer for cached types
func (m *Model) writeCache(ctx context.Context) error {
	if !m.typ.cached || !m.persisted {
		return nil
	}
	return m.storeCache(ctx, m.CacheKey(), m.stored)
}

// ClearCache evicts the record from the cache store and drops every local
// value except the ids
func (m *Model) ClearCache(ctx context.Context) error {
	var err error
	if m.typ.cached && m.persisted {
		if err = m.typ.mgr.cache.Delete(ctx, m.CacheKey()); err != nil {
			m.typ.logger.Warn("cache evict failed", zap.String("key", m.CacheKey()), zap.Error(err))
		}
	}
	m.clearLocal()
	return err
}
