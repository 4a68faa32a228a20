// Package schema provides property definitions for model types.
// It defines the data structures describing typed, mutability-aware properties and
// resolves a declared Definition into the final, sorted property map of a model type.
package schema

import (
	"fmt"
	"time"

	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Type represents the storage type of a property
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Kind returns the value kind used for the property at the driver boundary
func (t Type) Kind() value.Kind {
	switch t {
	case TypeNumber:
		return value.KindNumber
	case TypeBoolean:
		return value.KindBool
	case TypeDate:
		return value.KindDate
	case TypeObject:
		return value.KindObject
	case TypeArray:
		return value.KindArray
	default:
		return value.KindString
	}
}

// ParseType converts a string to a Type
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeObject, TypeArray:
		return Type(s), nil
	case "":
		return TypeString, nil
	default:
		return "", fmt.Errorf("unknown property type: %s", s)
	}
}

// Mutability controls when a property may be written
type Mutability string

const (
	// Immutable properties are only ever set by storage (e.g. generated ids)
	Immutable Mutability = "immutable"
	// CreateOnly properties may be set at creation and are frozen afterwards
	CreateOnly Mutability = "create_only"
	// Mutable properties may be set at any time
	Mutable Mutability = "mutable"
)

// ParseMutability converts a string to a Mutability
func ParseMutability(s string) (Mutability, error) {
	switch Mutability(s) {
	case Immutable, CreateOnly, Mutable:
		return Mutability(s), nil
	case "":
		return Mutable, nil
	default:
		return "", fmt.Errorf("unknown mutability: %s", s)
	}
}

// Property describes a single model property
type Property struct {
	Name     string     `yaml:"-"`
	Type     Type       `yaml:"type"`
	Mutable  Mutability `yaml:"mutable"`
	Null     bool       `yaml:"null"`
	Unique   bool       `yaml:"unique"`
	Required bool       `yaml:"required"`
	Default  any        `yaml:"default"`
	Title    string     `yaml:"title"`

	// Validate is a filter chain such as "string:1:50|matching:^[a-z]+$"
	Validate string `yaml:"validate"`
	// ValidateFunc replaces Validate when set
	ValidateFunc func(value *any) bool `yaml:"-"`
}

// DefaultFunc is a computed default, evaluated every time the default is needed
type DefaultFunc func() any

// HasDefault reports whether the property declares a default
func (p *Property) HasDefault() bool {
	return p.Default != nil
}

// DefaultValue returns the default, evaluating computed defaults
func (p *Property) DefaultValue() any {
	switch d := p.Default.(type) {
	case DefaultFunc:
		return d()
	case func() any:
		return d()
	default:
		return d
	}
}

// Label returns the human readable name of the property
func (p *Property) Label() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

// Definition is the declared, unresolved schema of a model type
type Definition struct {
	Name       string              `yaml:"name"`
	Table      string              `yaml:"table"`
	IDs        []string            `yaml:"ids"`
	Timestamps bool                `yaml:"timestamps"`
	Properties map[string]Property `yaml:"properties"`
}

// DefaultIDProperty is the id property used when a definition declares none
const DefaultIDProperty = "id"

// Timestamp property names
const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// Now is the clock used by timestamp defaults
var Now = func() time.Time { return time.Now().UTC() }

func timestampProperties() map[string]Property {
	now := DefaultFunc(func() any { return Now() })
	return map[string]Property{
		CreatedAt: {
			Type:     TypeDate,
			Mutable:  CreateOnly,
			Default:  now,
			Validate: "timestamp",
		},
		UpdatedAt: {
			Type:     TypeDate,
			Mutable:  Mutable,
			Default:  now,
			Validate: "timestamp",
		},
	}
}

func defaultIDProperty() Property {
	return Property{
		Type:    TypeNumber,
		Mutable: Immutable,
		Null:    true,
	}
}
