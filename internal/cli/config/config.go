package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/activerecord/pkg/orm/cache"
	"github.com/conduit-lang/activerecord/pkg/orm/driver/sqldb"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the activerecord CLI configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Models   string         `mapstructure:"models"`
	Locale   string         `mapstructure:"locale"`
}

// DatabaseConfig represents database configuration. The memory dialect keeps
// records in process.
type DatabaseConfig struct {
	Dialect         string        `mapstructure:"dialect"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads activerecord.yaml from the working directory, or the given file
// when path is not empty. Environment variables prefixed with ACTIVERECORD_
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.dialect", "sqlite3")
	v.SetDefault("database.url", "file:activerecord.db")
	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.prefix", "activerecord:")
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("models", "models.yaml")
	v.SetDefault("locale", "en")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("activerecord")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("activerecord")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InMemory reports whether records are kept in process
func (c *Config) InMemory() bool {
	return strings.EqualFold(c.Database.Dialect, "memory")
}

// SQL returns the settings used to open the SQL driver
func (c *Config) SQL() sqldb.Config {
	return sqldb.Config{
		Dialect:         c.Database.Dialect,
		DSN:             c.Database.URL,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// Store returns the common cache store settings
func (c *Config) Store() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Prefix = c.Cache.Prefix
	if c.Cache.TTL > 0 {
		cfg.DefaultTTL = c.Cache.TTL
	}
	return cfg
}

// Redis returns the redis store settings
func (c *Config) Redis() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Cache.Redis.Addr,
		Password: c.Cache.Redis.Password,
		DB:       c.Cache.Redis.DB,
		Config:   c.Store(),
	}
}

func validateConfig(cfg *Config) error {
	if !cfg.InMemory() {
		if _, err := sqldb.DialectFor(cfg.Database.Dialect); err != nil {
			return fmt.Errorf("database.dialect: %w", err)
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for dialect %s", cfg.Database.Dialect)
		}
	}

	switch cfg.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis, got: %s", cfg.Cache.Backend)
	}

	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", cfg.Cache.TTL)
	}
	if cfg.Models == "" {
		return fmt.Errorf("models must name a model definitions file")
	}
	return nil
}
