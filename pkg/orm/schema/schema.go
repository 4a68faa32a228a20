package schema

import (
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// Schema is the resolved, immutable property map of a model type
type Schema struct {
	name       string
	table      string
	ids        []string
	timestamps bool
	properties map[string]*Property
	names      []string
}

// Build resolves a definition into its final schema:
// the default id property is injected when the model relies on it,
// timestamp properties are merged in when requested, every property is
// completed with base defaults and names are sorted for deterministic iteration.
func Build(def Definition) *Schema {
	ids := def.IDs
	if len(ids) == 0 {
		ids = []string{DefaultIDProperty}
	}

	declared := make(map[string]Property, len(def.Properties)+3)
	for name, prop := range def.Properties {
		declared[name] = prop
	}

	if len(ids) == 1 && ids[0] == DefaultIDProperty {
		if _, ok := declared[DefaultIDProperty]; !ok {
			declared[DefaultIDProperty] = defaultIDProperty()
		}
	}

	if def.Timestamps {
		for name, prop := range timestampProperties() {
			if _, ok := declared[name]; !ok {
				declared[name] = prop
			}
		}
	}

	s := &Schema{
		name:       def.Name,
		table:      def.Table,
		ids:        append([]string(nil), ids...),
		timestamps: def.Timestamps,
		properties: make(map[string]*Property, len(declared)),
		names:      make([]string, 0, len(declared)),
	}
	if s.table == "" {
		s.table = TableName(def.Name)
	}

	for name, prop := range declared {
		p := withBaseDefaults(prop)
		p.Name = name
		s.properties[name] = &p
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	return s
}

// withBaseDefaults fills the zero-valued fields of a property; declared fields win
func withBaseDefaults(p Property) Property {
	if p.Type == "" {
		p.Type = TypeString
	}
	if p.Mutable == "" {
		p.Mutable = Mutable
	}
	return p
}

// TableName derives the default storage table for a model type name,
// e.g. "OrderItem" -> "order_items"
func TableName(modelName string) string {
	return inflect.Pluralize(inflect.Underscore(modelName))
}

// Name returns the model type name
func (s *Schema) Name() string { return s.name }

// Table returns the storage table name
func (s *Schema) Table() string { return s.table }

// IDs returns the id property names in declaration order
func (s *Schema) IDs() []string { return append([]string(nil), s.ids...) }

// HasTimestamps reports whether created_at/updated_at are managed
func (s *Schema) HasTimestamps() bool { return s.timestamps }

// Names returns the sorted property names
func (s *Schema) Names() []string { return append([]string(nil), s.names...) }

// Property returns a property definition by name
func (s *Schema) Property(name string) (*Property, bool) {
	p, ok := s.properties[name]
	return p, ok
}

// Has reports whether a property is declared
func (s *Schema) Has(name string) bool {
	_, ok := s.properties[name]
	return ok
}

// Properties returns the properties in sorted name order
func (s *Schema) Properties() []*Property {
	out := make([]*Property, len(s.names))
	for i, name := range s.names {
		out[i] = s.properties[name]
	}
	return out
}

// Required returns the sorted names of required properties
func (s *Schema) Required() []string {
	var out []string
	for _, name := range s.names {
		if s.properties[name].Required {
			out = append(out, name)
		}
	}
	return out
}

// IsID reports whether name is one of the id properties
func (s *Schema) IsID(name string) bool {
	for _, id := range s.ids {
		if id == name {
			return true
		}
	}
	return false
}

// CacheName returns the lowercased type name used in cache keys
func (s *Schema) CacheName() string {
	return strings.ToLower(s.name)
}
