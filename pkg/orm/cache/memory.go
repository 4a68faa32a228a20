package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements an in-process store with TTL support
type MemoryStore struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
	now    func() time.Time
}

type item struct {
	value      []byte
	expiration time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore creates a memory store and starts its janitor goroutine
func NewMemoryStore(config Config) *MemoryStore {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	ms := &MemoryStore{
		config: config,
		cancel: cancel,
		now:    time.Now,
	}

	go ms.cleanupExpired(ctx)

	return ms
}

// Get retrieves a value
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	fullKey := m.config.Prefix + key
	raw, ok := m.data.Load(fullKey)
	if !ok {
		return nil, false, nil
	}

	it := raw.(item)
	if it.expired(m.now()) {
		m.data.Delete(fullKey)
		return nil, false, nil
	}

	return it.value, true, nil
}

// Set stores a value
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiration = m.now().Add(ttl)
	}

	m.data.Store(m.config.Prefix+key, it)
	return nil
}

// Delete removes a value
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Len returns the number of live entries
func (m *MemoryStore) Len() int {
	now := m.now()
	n := 0
	m.data.Range(func(_, raw any) bool {
		if !raw.(item).expired(now) {
			n++
		}
		return true
	})
	return n
}

// Close stops the janitor goroutine
func (m *MemoryStore) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *MemoryStore) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	now := m.now()
	m.data.Range(func(key, raw any) bool {
		if raw.(item).expired(now) {
			m.data.Delete(key)
		}
		return true
	})
}
