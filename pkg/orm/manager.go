// Package orm implements active-record models on top of a pluggable storage
// driver.
//
// A Manager owns every model type of an application: their resolved
// schemas, event dispatchers, accessor and mutator tables, and the shared
// driver, cache store, validator and logger. Model instances hold three value
// layers read with the precedence defaults < stored < unsaved, and move
// through the create, update and delete lifecycle with vetoable events.
//
//	mgr := orm.NewManager(memory.New())
//	widgets := mgr.MustDefine(orm.TypeConfig{Definition: schema.Definition{
//		Name: "Widget",
//		Properties: map[string]schema.Property{
//			"name": {Required: true},
//			"sku":  {Unique: true},
//		},
//	}})
//
//	w := widgets.New()
//	ok, err := w.Create(ctx, map[string]any{"name": "Bolt", "sku": "A1"})
package orm

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/cache"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/validation"
)

// Manager is the process-wide context that owns model types
type Manager struct {
	registry   *schema.Registry
	types      map[string]*ModelType
	driver     Driver
	cache      cache.Store
	logger     *zap.Logger
	validator  *validation.Validator
	translator validation.Translator
	locale     string
	mu         sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle and driver diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCache enables the caching overlay for types that opt in
func WithCache(store cache.Store) Option {
	return func(m *Manager) {
		m.cache = store
	}
}

// WithValidator replaces the default validator, e.g. to add custom filters
func WithValidator(v *validation.Validator) Option {
	return func(m *Manager) {
		if v != nil {
			m.validator = v
		}
	}
}

// WithTranslator sets how error codes are rendered into messages
func WithTranslator(t validation.Translator, locale string) Option {
	return func(m *Manager) {
		m.translator = t
		m.locale = locale
	}
}

// NewManager creates a manager bound to a storage driver
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		registry:  schema.NewRegistry(),
		types:     make(map[string]*ModelType),
		driver:    driver,
		logger:    zap.NewNop(),
		validator: validation.New(),
		locale:    "en",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Define registers a model type
func (m *Manager) Define(cfg TypeConfig) (*ModelType, error) {
	if err := m.registry.Register(cfg.Definition); err != nil {
		return nil, err
	}

	s, _ := m.registry.Get(cfg.Definition.Name)
	t := newModelType(m, s, cfg)

	m.mu.Lock()
	m.types[t.name] = t
	m.mu.Unlock()

	m.logger.Debug("model type defined",
		zap.String("model", t.name),
		zap.String("table", s.Table()),
		zap.Int("properties", len(s.Names())),
	)
	return t, nil
}

// MustDefine is like Define but panics on error
func (m *Manager) MustDefine(cfg TypeConfig) *ModelType {
	t, err := m.Define(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// Type returns a defined model type by name
func (m *Manager) Type(name string) (*ModelType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}

// Types returns the sorted names of all defined model types
func (m *Manager) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.types))
	for name := range m.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset forgets every model type
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registry.Clear()
	m.types = make(map[string]*ModelType)
}

// Driver returns the storage driver
func (m *Manager) Driver() Driver { return m.driver }

// Cache returns the cache store, nil when caching is off
func (m *Manager) Cache() cache.Store { return m.cache }

// Logger returns the manager's logger
func (m *Manager) Logger() *zap.Logger { return m.logger }

// Validator returns the validator used to compile property rules
func (m *Manager) Validator() *validation.Validator { return m.validator }

// Locale returns the locale used to render error messages
func (m *Manager) Locale() string { return m.locale }

func (m *Manager) newErrors() *validation.Errors {
	errs := validation.NewErrors()
	if m.translator != nil {
		errs.SetTranslator(m.translator, m.locale)
	}
	return errs
}
