package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Dialect)
	assert.Equal(t, "file:activerecord.db", cfg.Database.URL)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "models.yaml", cfg.Models)
	assert.Equal(t, "en", cfg.Locale)
	assert.False(t, cfg.InMemory())
}

func TestLoadWithConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	content := `
database:
  dialect: postgres
  url: postgres://localhost/shop
  max_open_conns: 8
cache:
  backend: redis
  ttl: 10m
  redis:
    addr: cache:6379
    db: 2
models: schema/models.yaml
locale: fr
`
	require.NoError(t, os.WriteFile("activerecord.yaml", []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, 8, cfg.SQL().MaxOpenConns)
	assert.Equal(t, "postgres://localhost/shop", cfg.SQL().DSN)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "schema/models.yaml", cfg.Models)
	assert.Equal(t, "fr", cfg.Locale)

	redis := cfg.Redis()
	assert.Equal(t, "cache:6379", redis.Addr)
	assert.Equal(t, 2, redis.DB)
	assert.Equal(t, 10*time.Minute, redis.Config.DefaultTTL)
	assert.Equal(t, "activerecord:", redis.Config.Prefix)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dialect: memory\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.InMemory())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACTIVERECORD_DATABASE_DIALECT", "memory")
	t.Setenv("ACTIVERECORD_LOCALE", "fr-CA")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.InMemory())
	assert.Equal(t, "fr-CA", cfg.Locale)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Dialect: "sqlite3", URL: "file:test.db"},
			Cache:    CacheConfig{Backend: CacheNone},
			Models:   "models.yaml",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory needs no url", mutate: func(c *Config) { c.Database = DatabaseConfig{Dialect: "memory"} }},
		{name: "unknown dialect", mutate: func(c *Config) { c.Database.Dialect = "oracle" }, wantErr: true},
		{name: "missing url", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: true},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Cache.Backend = CacheRedis }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTL = -time.Second }, wantErr: true},
		{name: "no models file", mutate: func(c *Config) { c.Models = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
