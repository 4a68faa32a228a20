package orm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/hooks"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Create stages data and inserts the record.
//
// It returns false without error when a creating listener vetoes, validation
// fails or the driver refuses the insert; Errors() explains validation
// failures. A created listener that stops propagation also yields false even
// though the record was stored. Driver failures are returned as *DriverError.
func (m *Model) Create(ctx context.Context, data map[string]any) (bool, error) {
	if m.persisted {
		return false, fmt.Errorf("%w: cannot create %s: record is already persisted", ErrInvalidOperation, m.typ.name)
	}

	m.errors.Clear()
	if err := m.SetValues(data); err != nil {
		return false, err
	}

	if !m.dispatch(ctx, hooks.Creating) {
		m.typ.logger.Debug("create vetoed")
		return false, nil
	}

	m.stageDefaults()

	valid, err := m.validate(ctx)
	if err != nil {
		return false, err
	}
	if !valid {
		m.typ.logger.Debug("create rejected by validation", zap.Strings("fields", m.errors.Keys()))
		return false, nil
	}

	payload, err := m.insertPayload()
	if err != nil {
		return false, err
	}

	created, err := m.typ.mgr.driver.CreateModel(ctx, m, payload)
	if err != nil {
		m.typ.logger.Error("create failed", zap.Error(err))
		return false, driverError("create", m.typ.name, err)
	}
	if !created {
		return false, nil
	}

	ids, err := m.createdIDs(ctx)
	if err != nil {
		return false, err
	}

	m.stored = ids
	m.persisted = true
	// evict failures are logged by ClearCache; the record is stored either way
	_ = m.ClearCache(ctx)

	m.typ.logger.Debug("created", zap.String("id", m.IDString()))

	return m.dispatch(ctx, hooks.Created), nil
}

// Set stages data and updates the record. Without staged values it succeeds
// immediately, firing no events.
func (m *Model) Set(ctx context.Context, data map[string]any) (bool, error) {
	if !m.persisted {
		return false, fmt.Errorf("%w: cannot update %s: record is not persisted", ErrInvalidOperation, m.typ.name)
	}

	m.errors.Clear()
	if err := m.SetValues(data); err != nil {
		return false, err
	}
	if len(m.unsaved) == 0 {
		return true, nil
	}

	if m.typ.schema.HasTimestamps() {
		if _, staged := m.unsaved[schema.UpdatedAt]; !staged {
			m.unsaved[schema.UpdatedAt] = schema.Now()
		}
	}

	if !m.dispatch(ctx, hooks.Updating) {
		m.typ.logger.Debug("update vetoed", zap.String("id", m.IDString()))
		return false, nil
	}

	valid, err := m.validate(ctx)
	if err != nil {
		return false, err
	}
	if !valid {
		m.typ.logger.Debug("update rejected by validation",
			zap.String("id", m.IDString()),
			zap.Strings("fields", m.errors.Keys()),
		)
		return false, nil
	}

	payload, err := m.updatePayload()
	if err != nil {
		return false, err
	}
	moved, err := m.movedIDs(payload)
	if err != nil {
		return false, err
	}

	if len(payload) > 0 {
		updated, err := m.typ.mgr.driver.UpdateModel(ctx, m, payload)
		if err != nil {
			m.typ.logger.Error("update failed", zap.String("id", m.IDString()), zap.Error(err))
			return false, driverError("update", m.typ.name, err)
		}
		if !updated {
			return false, nil
		}
	}

	// evict under the old key, then address the row by its new ids
	_ = m.ClearCache(ctx)
	for name, v := range moved {
		m.stored[name] = v
	}

	m.typ.logger.Debug("updated", zap.String("id", m.IDString()))

	return m.dispatch(ctx, hooks.Updated), nil
}

// Save creates a transient record or updates a persisted one
func (m *Model) Save(ctx context.Context) (bool, error) {
	if m.persisted {
		return m.Set(ctx, nil)
	}
	return m.Create(ctx, nil)
}

// Delete removes the record. A deleted listener that stops propagation
// yields false and leaves the instance untouched.
func (m *Model) Delete(ctx context.Context) (bool, error) {
	if !m.persisted {
		return false, fmt.Errorf("%w: cannot delete %s: record is not persisted", ErrInvalidOperation, m.typ.name)
	}

	m.errors.Clear()
	if !m.dispatch(ctx, hooks.Deleting) {
		m.typ.logger.Debug("delete vetoed", zap.String("id", m.IDString()))
		return false, nil
	}

	deleted, err := m.typ.mgr.driver.DeleteModel(ctx, m)
	if err != nil {
		m.typ.logger.Error("delete failed", zap.String("id", m.IDString()), zap.Error(err))
		return false, driverError("delete", m.typ.name, err)
	}
	if !deleted {
		return false, nil
	}

	if !m.dispatch(ctx, hooks.Deleted) {
		return false, nil
	}

	m.typ.logger.Debug("deleted", zap.String("id", m.IDString()))

	_ = m.ClearCache(ctx)
	m.stored = make(map[string]any)
	m.persisted = false
	return true, nil
}

func (m *Model) dispatch(ctx context.Context, phase hooks.Phase) bool {
	return m.typ.events.Dispatch(ctx, phase, m)
}

// stageDefaults stages the default of every property not staged yet
func (m *Model) stageDefaults() {
	for _, prop := range m.typ.schema.Properties() {
		if !prop.HasDefault() {
			continue
		}
		if _, staged := m.unsaved[prop.Name]; staged {
			continue
		}
		m.unsaved[prop.Name] = prop.DefaultValue()
		if m.defaulted == nil {
			m.defaulted = make(map[string]bool)
		}
		m.defaulted[prop.Name] = true
	}
}

// insertPayload keeps declared properties. Immutable properties are kept only
// when they carry their default.
func (m *Model) insertPayload() (map[string]value.Value, error) {
	payload := make(map[string]value.Value, len(m.unsaved))
	for name, v := range m.unsaved {
		prop, ok := m.typ.schema.Property(name)
		if !ok {
			continue
		}
		if prop.Mutable == schema.Immutable && !m.isDefault(prop, v) {
			continue
		}
		dv, err := m.typ.toValue(name, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.typ.name, name, err)
		}
		payload[name] = dv
	}
	return payload, nil
}

// updatePayload keeps declared properties that are mutable
func (m *Model) updatePayload() (map[string]value.Value, error) {
	payload := make(map[string]value.Value, len(m.unsaved))
	for name, v := range m.unsaved {
		prop, ok := m.typ.schema.Property(name)
		if !ok || prop.Mutable != schema.Mutable {
			continue
		}
		dv, err := m.typ.toValue(name, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.typ.name, name, err)
		}
		payload[name] = dv
	}
	return payload, nil
}

// movedIDs returns the new values of id properties written by an update
func (m *Model) movedIDs(payload map[string]value.Value) (map[string]any, error) {
	moved := make(map[string]any)
	for _, name := range m.typ.schema.IDs() {
		if _, ok := payload[name]; !ok {
			continue
		}
		v, err := m.typ.coerce(name, m.unsaved[name])
		if err != nil {
			return nil, fmt.Errorf("%w: id %s: %v", ErrInvalidOperation, name, err)
		}
		moved[name] = v
	}
	return moved, nil
}

func (m *Model) isDefault(prop *schema.Property, v any) bool {
	if m.defaulted[prop.Name] {
		return true
	}
	if !prop.HasDefault() {
		return false
	}
	return sameValue(v, prop.DefaultValue())
}

// createdIDs resolves the id map of a freshly inserted record: staged values
// of settable id properties win, the rest come from the driver
func (m *Model) createdIDs(ctx context.Context) (map[string]any, error) {
	ids := make(map[string]any)
	for _, name := range m.typ.schema.IDs() {
		prop, ok := m.typ.schema.Property(name)
		settable := ok && prop.Mutable != schema.Immutable
		if staged, isStaged := m.unsaved[name]; settable && isStaged && staged != nil {
			v, err := m.typ.coerce(name, staged)
			if err != nil {
				return nil, fmt.Errorf("%w: id %s: %v", ErrInvalidOperation, name, err)
			}
			ids[name] = v
			continue
		}

		raw, err := m.typ.mgr.driver.GetCreatedID(ctx, m, name)
		if err != nil {
			m.typ.logger.Error("created id lookup failed", zap.String("property", name), zap.Error(err))
			return nil, driverError("created id", m.typ.name, err)
		}
		v, err := m.typ.coerce(name, raw)
		if err != nil {
			return nil, driverError("created id", m.typ.name, err)
		}
		ids[name] = v
	}
	return ids, nil
}

// sameValue compares two native values the way the driver would store them
func sameValue(a, b any) bool {
	va, errA := value.From(a)
	vb, errB := value.From(b)
	if errA != nil || errB != nil {
		return false
	}
	return value.Equal(va, vb)
}
