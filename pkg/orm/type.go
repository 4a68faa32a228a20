package orm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/activerecord/pkg/orm/cache"
	"github.com/conduit-lang/activerecord/pkg/orm/hooks"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/validation"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Accessor transforms a raw value on read. Names with an accessor can be read
// even when they are not declared properties.
type Accessor func(ctx context.Context, m *Model, raw any) (any, error)

// Mutator transforms a value before it is staged
type Mutator func(m *Model, v any) (any, error)

// Fetcher is implemented by every relation kind
type Fetcher interface {
	Fetch(ctx context.Context) (any, error)
}

// RelationFactory builds a named relation for a model instance
type RelationFactory func(m *Model) Fetcher

// PermissionFunc decides whether a requester holds a permission on a model
type PermissionFunc func(ctx context.Context, m *Model, permission string, requester Requester) bool

// CacheConfig enables the caching overlay for a model type
type CacheConfig struct {
	// TTL of cached records; zero means cache.DefaultTTL
	TTL time.Duration
}

// TypeConfig declares a model type
type TypeConfig struct {
	Definition schema.Definition
	Accessors  map[string]Accessor
	Mutators   map[string]Mutator
	Relations  map[string]RelationFactory
	// Permission turns on the access control gate
	Permission PermissionFunc
	// Cache turns on the caching overlay when the manager has a store
	Cache *CacheConfig
}

// ModelType is a defined model type: its schema plus the function tables
// resolved once when the type was defined
type ModelType struct {
	mgr        *Manager
	name       string
	schema     *schema.Schema
	accessors  map[string]Accessor
	mutators   map[string]Mutator
	relations  map[string]RelationFactory
	rules      map[string]validation.Rule
	ruleErrs   map[string]error
	permission PermissionFunc
	cacheTTL   time.Duration
	cached     bool
	events     *hooks.Dispatcher[*Model]
	logger     *zap.Logger
	flight     singleflight.Group
}

func newModelType(mgr *Manager, s *schema.Schema, cfg TypeConfig) *ModelType {
	t := &ModelType{
		mgr:        mgr,
		name:       s.Name(),
		schema:     s,
		accessors:  make(map[string]Accessor, len(cfg.Accessors)),
		mutators:   make(map[string]Mutator, len(cfg.Mutators)),
		relations:  make(map[string]RelationFactory, len(cfg.Relations)),
		rules:      make(map[string]validation.Rule),
		ruleErrs:   make(map[string]error),
		permission: cfg.Permission,
		events:     hooks.NewDispatcher[*Model](),
		logger:     mgr.logger.With(zap.String("model", s.Name())),
	}

	for name, fn := range cfg.Accessors {
		t.accessors[name] = fn
	}
	for name, fn := range cfg.Mutators {
		t.mutators[name] = fn
	}
	for name, fn := range cfg.Relations {
		t.relations[name] = fn
	}

	t.compileRules()

	if cfg.Cache != nil && mgr.cache != nil {
		t.cached = true
		t.cacheTTL = cfg.Cache.TTL
		if t.cacheTTL == 0 {
			t.cacheTTL = cache.DefaultTTL
		}
	}

	if t.permission != nil {
		t.registerPermissionListeners()
	}

	return t
}

// compileRules resolves every property's validation rule. Rules that fail to
// compile are kept and reported as validation failures of that property.
func (t *ModelType) compileRules() {
	for _, prop := range t.schema.Properties() {
		switch {
		case prop.ValidateFunc != nil:
			t.rules[prop.Name] = validation.RuleFunc(prop.ValidateFunc)
		case prop.Validate != "":
			rule, err := t.mgr.validator.Parse(prop.Validate)
			if err != nil {
				t.ruleErrs[prop.Name] = err
				t.logger.Warn("invalid validation rule",
					zap.String("property", prop.Name),
					zap.String("rule", prop.Validate),
					zap.Error(err),
				)
				continue
			}
			t.rules[prop.Name] = rule
		}
	}
}

// Name returns the model type name
func (t *ModelType) Name() string { return t.name }

// Schema returns the resolved schema
func (t *ModelType) Schema() *schema.Schema { return t.schema }

// Manager returns the owning manager
func (t *ModelType) Manager() *Manager { return t.mgr }

// Events returns the type's event dispatcher
func (t *ModelType) Events() *hooks.Dispatcher[*Model] { return t.events }

// On registers a lifecycle listener
func (t *ModelType) On(phase hooks.Phase, priority int, fn hooks.Listener[*Model]) {
	t.events.On(phase, priority, fn)
}

// Cached reports whether the caching overlay is active for this type
func (t *ModelType) Cached() bool { return t.cached }

// HasAccessor reports whether an accessor is registered for a name
func (t *ModelType) HasAccessor(name string) bool {
	_, ok := t.accessors[name]
	return ok
}

// HasRelation reports whether a named relation is declared
func (t *ModelType) HasRelation(name string) bool {
	_, ok := t.relations[name]
	return ok
}

// New creates a transient model instance
func (t *ModelType) New() *Model {
	return &Model{
		typ:     t,
		stored:  make(map[string]any),
		unsaved: make(map[string]any),
		errors:  t.mgr.newErrors(),
	}
}

// Query starts a query over this type
func (t *ModelType) Query() *Query {
	return newQuery(t)
}

// Find loads a record by its id values, in id property order. Cached types
// are served from the cache store when possible.
func (t *ModelType) Find(ctx context.Context, ids ...any) (*Model, error) {
	names := t.schema.IDs()
	if len(ids) != len(names) {
		return nil, fmt.Errorf("%w: %s has %d id properties, got %d values", ErrInvalidOperation, t.name, len(names), len(ids))
	}

	m := t.New()
	for i, name := range names {
		v, err := t.coerce(name, ids[i])
		if err != nil {
			return nil, fmt.Errorf("%w: id %s: %v", ErrInvalidOperation, name, err)
		}
		m.stored[name] = v
	}
	m.persisted = true

	if err := m.fetch(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Hydrate builds a persisted instance from a driver row
func (t *ModelType) Hydrate(row value.Row) *Model {
	m := t.New()
	m.refresh(t.fromRow(row))
	return m
}

// coerce converts a raw value into the native representation of a property.
// Names that are not declared properties pass through unchanged.
func (t *ModelType) coerce(name string, raw any) (any, error) {
	prop, ok := t.schema.Property(name)
	if !ok {
		if v, isValue := raw.(value.Value); isValue {
			return v.Interface(), nil
		}
		return raw, nil
	}
	v, err := value.Coerce(raw, prop.Type.Kind())
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// fromRow converts a driver row into native values
func (t *ModelType) fromRow(row value.Row) map[string]any {
	out := make(map[string]any, len(row))
	for name, raw := range row {
		v, err := t.coerce(name, raw)
		if err != nil {
			t.logger.Warn("cannot coerce stored value",
				zap.String("property", name),
				zap.Error(err),
			)
			v = raw.Interface()
		}
		out[name] = v
	}
	return out
}

// fromMap coerces a loosely typed value map, such as a decoded cache entry
func (t *ModelType) fromMap(entry map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(entry))
	for name, raw := range entry {
		v, err := t.coerce(name, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.name, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// toValue converts a native value into its driver representation
func (t *ModelType) toValue(name string, v any) (value.Value, error) {
	if prop, ok := t.schema.Property(name); ok {
		return value.Coerce(v, prop.Type.Kind())
	}
	return value.From(v)
}
