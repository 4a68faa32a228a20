package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/internal/cli/config"
	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/cache"
	"github.com/conduit-lang/activerecord/pkg/orm/driver/memory"
	"github.com/conduit-lang/activerecord/pkg/orm/driver/sqldb"
	"github.com/conduit-lang/activerecord/pkg/orm/locale"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
)

// Environment is everything a command needs to work with records
type Environment struct {
	Config  *config.Config
	Logger  *zap.Logger
	Manager *orm.Manager

	closers []func() error
}

// Close releases the database and cache connections
func (e *Environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = e.Logger.Sync()
	return errors.Join(errs...)
}

// Options are the global flags shared by every command
type Options struct {
	ConfigPath string
	Verbose    bool
	NoColor    bool
}

// Opener builds the environment for a command invocation
type Opener func(ctx context.Context, opts *Options) (*Environment, error)

// NewLogger builds a development logger when verbose, otherwise a production
// logger that only reports warnings and errors
func NewLogger(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Open loads the configuration, connects the driver and cache store, and
// defines the model types from the configured definitions file
func Open(ctx context.Context, opts *Options) (*Environment, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	env := &Environment{Config: cfg, Logger: NewLogger(opts.Verbose)}

	driver, err := env.openDriver(ctx)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	store, err := env.openCache(ctx)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	defs, err := schema.LoadFile(cfg.Models)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	env.Manager = NewManager(cfg, env.Logger, driver, store)
	if err := DefineAll(env.Manager, defs, store != nil); err != nil {
		_ = env.Close()
		return nil, err
	}

	env.Logger.Debug("environment ready",
		zap.String("dialect", cfg.Database.Dialect),
		zap.String("cache", cfg.Cache.Backend),
		zap.Int("types", len(defs)),
	)
	return env, nil
}

func (e *Environment) openDriver(ctx context.Context) (orm.Driver, error) {
	if e.Config.InMemory() {
		return memory.New(memory.WithLogger(e.Logger)), nil
	}

	db, err := sqldb.Open(ctx, e.Config.SQL(), sqldb.WithLogger(e.Logger))
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, db.Close)
	return db, nil
}

func (e *Environment) openCache(ctx context.Context) (cache.Store, error) {
	switch e.Config.Cache.Backend {
	case config.CacheMemory:
		store := cache.NewMemoryStore(e.Config.Store())
		e.closers = append(e.closers, store.Close)
		return store, nil
	case config.CacheRedis:
		store, err := cache.DialRedis(ctx, e.Config.Redis())
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, store.Close)
		return store, nil
	}
	return nil, nil
}

// NewManager creates a manager wired with the logger, the cache store when
// there is one, and the message catalog for the configured locale
func NewManager(cfg *config.Config, logger *zap.Logger, driver orm.Driver, store cache.Store) *orm.Manager {
	opts := []orm.Option{
		orm.WithLogger(logger),
		orm.WithTranslator(locale.NewCatalog().Translator(), cfg.Locale),
	}
	if store != nil {
		opts = append(opts, orm.WithCache(store))
	}
	return orm.NewManager(driver, opts...)
}

// DefineAll defines every model type. With cached set, each type gets the
// caching overlay.
func DefineAll(mgr *orm.Manager, defs []schema.Definition, cached bool) error {
	for _, def := range defs {
		tc := orm.TypeConfig{Definition: def}
		if cached {
			tc.Cache = &orm.CacheConfig{}
		}
		if _, err := mgr.Define(tc); err != nil {
			return fmt.Errorf("define %s: %w", def.Name, err)
		}
	}
	return nil
}
