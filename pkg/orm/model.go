package orm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/validation"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Model is one record of a model type.
//
// Reads resolve defaults < stored < unsaved. stored is empty until the
// record is persisted; unsaved holds the values staged since the last
// successful persistence operation. A Model is not safe for concurrent use.
type Model struct {
	typ       *ModelType
	stored    map[string]any
	unsaved   map[string]any
	defaulted map[string]bool
	persisted bool
	loaded    bool

	ignoreUnsaved bool
	errors        *validation.Errors
	related       map[string]any

	permissionsDisabled bool
	permissionCache     map[string]bool
}

// Type returns the model type
func (m *Model) Type() *ModelType { return m.typ }

// Persisted reports whether the record exists in storage
func (m *Model) Persisted() bool { return m.persisted }

// Loaded reports whether the stored values were fetched from storage or cache
func (m *Model) Loaded() bool { return m.loaded }

// Errors returns the errors recorded by the last lifecycle operation
func (m *Model) Errors() *validation.Errors { return m.errors }

// SetValue stages a value, passing it through the registered mutator.
// Names that are not declared properties are accepted as transient values.
func (m *Model) SetValue(name string, v any) error {
	if mut, ok := m.typ.mutators[name]; ok {
		out, err := mut(m, v)
		if err != nil {
			return fmt.Errorf("mutate %s.%s: %w", m.typ.name, name, err)
		}
		v = out
	}
	m.unsaved[name] = v
	delete(m.defaulted, name)
	return nil
}

// SetValues stages several values in name order
func (m *Model) SetValues(data map[string]any) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.SetValue(name, data[name]); err != nil {
			return err
		}
	}
	return nil
}

// IgnoreUnsaved makes the next Get read stored values only
func (m *Model) IgnoreUnsaved() *Model {
	m.ignoreUnsaved = true
	return m
}

// IsDirty reports whether values are staged; with names, whether any of
// them is staged
func (m *Model) IsDirty(names ...string) bool {
	if len(names) == 0 {
		return len(m.unsaved) > 0
	}
	for _, name := range names {
		if _, ok := m.unsaved[name]; ok {
			return true
		}
	}
	return false
}

// StoredValues returns a copy of the stored layer
func (m *Model) StoredValues() map[string]any {
	return copyMap(m.stored)
}

// UnsavedValues returns a copy of the staged layer
func (m *Model) UnsavedValues() map[string]any {
	return copyMap(m.unsaved)
}

// Get resolves the named values. The result has exactly the requested keys in
// request order; a name requested twice appears once, at its first position.
// Reading a name that is neither a property nor backed by an accessor fails
// with ErrUnknownProperty.
func (m *Model) Get(ctx context.Context, names ...string) (*Values, error) {
	ignore := m.ignoreUnsaved
	m.ignoreUnsaved = false

	merged := m.merged(ignore)
	if m.persisted && !m.loaded && missingAny(merged, names) {
		if err := m.fetch(ctx); err != nil {
			return nil, err
		}
		merged = m.merged(ignore)
	}

	out := NewValues()
	for _, name := range names {
		if _, seen := out.Get(name); seen {
			continue
		}
		raw, ok := merged[name]
		if !ok {
			prop, declared := m.typ.schema.Property(name)
			switch {
			case declared:
				raw = prop.DefaultValue()
				m.stored[name] = raw
			case m.typ.HasAccessor(name):
				raw = nil
			default:
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, m.typ.name, name)
			}
		}

		if acc, ok := m.typ.accessors[name]; ok {
			v, err := acc(ctx, m, raw)
			if err != nil {
				return nil, fmt.Errorf("access %s.%s: %w", m.typ.name, name, err)
			}
			raw = v
		}
		out.Set(name, raw)
	}
	return out, nil
}

// Value resolves a single value
func (m *Model) Value(ctx context.Context, name string) (any, error) {
	vals, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return vals.Value(name), nil
}

// Attributes resolves every declared property in name order
func (m *Model) Attributes(ctx context.Context) (*Values, error) {
	return m.Get(ctx, m.typ.schema.Names()...)
}

// IDs returns the id values keyed by id property name, in declaration order
func (m *Model) IDs() *Values {
	out := NewValues()
	for _, name := range m.typ.schema.IDs() {
		out.Set(name, m.idValue(name))
	}
	return out
}

// ID returns the single id value, or the comma-joined composite id
func (m *Model) ID() any {
	names := m.typ.schema.IDs()
	if len(names) == 1 {
		return m.idValue(names[0])
	}
	return m.IDString()
}

// IDString returns the id rendered as a string, composites comma-joined
func (m *Model) IDString() string {
	names := m.typ.schema.IDs()
	parts := make([]string, len(names))
	for i, name := range names {
		v, err := value.From(m.idValue(name))
		if err != nil {
			parts[i] = fmt.Sprint(m.idValue(name))
			continue
		}
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// Key returns the id values as driver values, used by drivers to address the record
func (m *Model) Key() value.Row {
	row := make(value.Row)
	for _, name := range m.typ.schema.IDs() {
		v, err := m.typ.toValue(name, m.idValue(name))
		if err != nil {
			v = value.Null()
		}
		row[name] = v
	}
	return row
}

// RequesterID identifies the model when it acts as a requester
func (m *Model) RequesterID() string {
	return m.typ.name + ":" + m.IDString()
}

func (m *Model) idValue(name string) any {
	if m.persisted {
		return m.stored[name]
	}
	if v, ok := m.unsaved[name]; ok {
		return v
	}
	return m.stored[name]
}

func (m *Model) idMap() map[string]any {
	ids := make(map[string]any)
	for _, name := range m.typ.schema.IDs() {
		if v := m.idValue(name); v != nil {
			ids[name] = v
		}
	}
	return ids
}

func (m *Model) merged(ignoreUnsaved bool) map[string]any {
	out := make(map[string]any, len(m.stored)+len(m.unsaved))
	for k, v := range m.stored {
		out[k] = v
	}
	if !ignoreUnsaved {
		for k, v := range m.unsaved {
			out[k] = v
		}
	}
	return out
}

// RefreshWith replaces the stored values with a freshly loaded value map and
// marks the record persisted. Staged values are kept. Cached types write the
// map to the cache store.
func (m *Model) RefreshWith(ctx context.Context, values map[string]any) error {
	native, err := m.typ.fromMap(values)
	if err != nil {
		return err
	}
	m.refresh(native)
	return m.writeCache(ctx)
}

func (m *Model) refresh(values map[string]any) {
	m.stored = copyMap(values)
	m.loaded = true
	m.persisted = true
	m.related = nil
}

// Refresh reloads the record from storage, or from the cache store for cached
// types
func (m *Model) Refresh(ctx context.Context) error {
	if !m.persisted {
		return fmt.Errorf("%w: cannot refresh %s: record is not persisted", ErrInvalidOperation, m.typ.name)
	}
	return m.fetch(ctx)
}

// clearLocal drops every stored and staged value except the ids
func (m *Model) clearLocal() {
	ids := m.idMap()
	m.stored = ids
	m.unsaved = make(map[string]any)
	m.defaulted = nil
	m.related = nil
	m.loaded = false
}

// load fetches the record from the driver
func (m *Model) load(ctx context.Context) (map[string]any, error) {
	row, found, err := m.typ.mgr.driver.LoadModel(ctx, m)
	if err != nil {
		m.typ.logger.Error("load failed", zap.String("id", m.IDString()), zap.Error(err))
		return nil, driverError("load", m.typ.name, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, m.typ.name, m.IDString())
	}
	return m.typ.fromRow(row), nil
}

func missingAny(merged map[string]any, names []string) bool {
	for _, name := range names {
		if _, ok := merged[name]; !ok {
			return true
		}
	}
	return false
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
