package orm

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/validation"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Validate runs the validation pipeline over the staged values and reports
// whether the record may be persisted. Errors() lists every failure.
func (m *Model) Validate(ctx context.Context) (bool, error) {
	m.errors.Clear()
	return m.validate(ctx)
}

func (m *Model) validate(ctx context.Context) (bool, error) {
	valid := true

	for _, prop := range m.typ.schema.Properties() {
		v, staged := m.unsaved[prop.Name]
		if !staged {
			continue
		}

		if prop.Null && validation.IsEmpty(v) {
			m.unsaved[prop.Name] = nil
			continue
		}

		out, ok := m.applyRule(prop, v)
		if !ok {
			m.errors.Add(prop.Name, validation.CodeValidationFailed, m.errorParams(prop))
			valid = false
			continue
		}
		m.unsaved[prop.Name] = out

		if prop.Unique && out != nil {
			unique, err := m.checkUnique(ctx, prop, out)
			if err != nil {
				return false, err
			}
			if !unique {
				m.errors.Add(prop.Name, validation.CodeNotUnique, m.errorParams(prop))
				valid = false
			}
		}
	}

	missing, err := m.missingRequired(ctx)
	if err != nil {
		return false, err
	}
	for _, prop := range missing {
		m.errors.Add(prop.Name, validation.CodeRequired, m.errorParams(prop))
		valid = false
	}

	return valid, nil
}

// applyRule runs the compiled rule and coerces the result to the property type
func (m *Model) applyRule(prop *schema.Property, v any) (any, bool) {
	if err, broken := m.typ.ruleErrs[prop.Name]; broken {
		m.typ.logger.Warn("property has an invalid validation rule",
			zap.String("property", prop.Name),
			zap.Error(err),
		)
		return nil, false
	}

	if rule, ok := m.typ.rules[prop.Name]; ok {
		if !rule.Apply(&v) {
			return nil, false
		}
	}

	coerced, err := value.Coerce(v, prop.Type.Kind())
	if err != nil {
		return nil, false
	}
	return coerced.Interface(), true
}

// checkUnique reports whether no other record holds v. A persisted record
// keeping its own value is not queried.
func (m *Model) checkUnique(ctx context.Context, prop *schema.Property, v any) (bool, error) {
	if m.persisted {
		if _, known := m.stored[prop.Name]; !known && !m.loaded {
			if err := m.fetch(ctx); err != nil {
				return false, err
			}
		}
		if sameValue(v, m.stored[prop.Name]) {
			return true, nil
		}
	}

	count, err := m.typ.Query().Where(map[string]any{prop.Name: v}).Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// missingRequired lists required properties absent or nil in stored+unsaved
func (m *Model) missingRequired(ctx context.Context) ([]*schema.Property, error) {
	required := m.typ.schema.Required()
	if len(required) == 0 {
		return nil, nil
	}

	merged := m.merged(false)
	if m.persisted && !m.loaded && missingAny(merged, required) {
		if err := m.fetch(ctx); err != nil {
			return nil, err
		}
		merged = m.merged(false)
	}

	var missing []*schema.Property
	for _, name := range required {
		if v, ok := merged[name]; !ok || v == nil {
			prop, _ := m.typ.schema.Property(name)
			missing = append(missing, prop)
		}
	}
	return missing, nil
}

func (m *Model) errorParams(prop *schema.Property) map[string]any {
	params := map[string]any{"field": prop.Name}
	if prop.Title != "" {
		params["field_name"] = prop.Title
	}
	return params
}
