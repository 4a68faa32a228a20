package orm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/activerecord/pkg/orm/cache"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

func defineCachedWidget(t *testing.T, driver Driver) (*ModelType, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(cache.DefaultConfig())
	t.Cleanup(func() { _ = store.Close() })

	mgr := NewManager(driver, WithCache(store))
	widgets := mgr.MustDefine(TypeConfig{
		Definition: schema.Definition{
			Name: "Widget",
			Properties: map[string]schema.Property{
				"name":  {Required: true},
				"price": {Type: schema.TypeNumber},
			},
		},
		Cache: &CacheConfig{TTL: time.Minute},
	})
	require.True(t, widgets.Cached())
	return widgets, store
}

func loadingDriver() *mockDriver {
	return &mockDriver{
		LoadModelFunc: func(_ context.Context, m *Model) (value.Row, bool, error) {
			row := m.Key()
			row["name"] = value.String("Bolt")
			row["price"] = value.Int(3)
			return row, true, nil
		},
	}
}

func TestFindIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	driver := loadingDriver()
	widgets, store := defineCachedWidget(t, driver)

	first, err := widgets.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, driver.Calls("LoadModel"))
	assert.Equal(t, 1, store.Len())

	second, err := widgets.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, driver.Calls("LoadModel"))

	price, err := second.Value(ctx, "price")
	require.NoError(t, err)
	assert.Equal(t, int64(3), price)
	assert.Equal(t, first.StoredValues(), second.StoredValues())
}

func TestUpdateEvictsCacheEntry(t *testing.T) {
	ctx := context.Background()
	driver := loadingDriver()
	widgets, store := defineCachedWidget(t, driver)

	w, err := widgets.Find(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	ok, err := w.Set(ctx, map[string]any{"price": 4})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, store.Len())
	assert.False(t, w.Loaded())

	_, err = widgets.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, driver.Calls("LoadModel"))
}

func TestUnreadableCacheEntryIsDiscarded(t *testing.T) {
	ctx := context.Background()
	driver := loadingDriver()
	widgets, store := defineCachedWidget(t, driver)

	require.NoError(t, store.Set(ctx, cache.ModelKey("Widget", "1"), []byte("not msgpack"), 0))

	w, err := widgets.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, driver.Calls("LoadModel"))

	name, err := w.Value(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Bolt", name)
}

func TestRefreshWithWritesCache(t *testing.T) {
	ctx := context.Background()
	driver := loadingDriver()
	widgets, store := defineCachedWidget(t, driver)

	w := widgets.New()
	require.NoError(t, w.RefreshWith(ctx, map[string]any{"id": 9, "name": "Nut", "price": "2"}))
	assert.True(t, w.Persisted())
	assert.Equal(t, int64(2), w.StoredValues()["price"])
	assert.Equal(t, 1, store.Len())

	again, err := widgets.Find(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, driver.Calls("LoadModel"))
	name, err := again.Value(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Nut", name)
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	driver := &mockDriver{
		LoadModelFunc: func(_ context.Context, m *Model) (value.Row, bool, error) {
			<-release
			row := m.Key()
			row["name"] = value.String("Bolt")
			return row, true, nil
		},
	}
	widgets, _ := defineCachedWidget(t, driver)

	const readers = 8
	var started, done sync.WaitGroup
	started.Add(readers)
	done.Add(readers)
	for range readers {
		go func() {
			defer done.Done()
			started.Done()
			_, err := widgets.Find(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.LessOrEqual(t, driver.Calls("LoadModel"), readers)
	assert.GreaterOrEqual(t, driver.Calls("LoadModel"), 1)
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	widgets, store := defineCachedWidget(t, loadingDriver())

	w, err := widgets.Find(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	require.NoError(t, w.ClearCache(ctx))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, map[string]any{"id": int64(1)}, w.StoredValues())
	assert.False(t, w.Loaded())
}
