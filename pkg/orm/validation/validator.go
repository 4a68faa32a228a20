// Package validation provides the rule pipeline used to validate and normalise
// property values, and the error collector that records validation outcomes.
//
// A rule is a chain of named filters separated by "|", each optionally
// parameterised with ":"-separated arguments:
//
//	"skip_empty|string:3:20|matching:^[a-z]+$"
//	"range:1:100"
//	"timestamp|db_timestamp"
//
// Filters may rewrite the value in place (hashing, type coercion) and report
// pass or fail. The first failing filter fails the whole chain.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Filter validates and optionally transforms a value
type Filter func(value *any, params []string) bool

// Rule is a compiled validation rule
type Rule interface {
	Apply(value *any) bool
}

// RuleFunc adapts a plain function to a Rule
type RuleFunc func(value *any) bool

// Apply implements Rule
func (f RuleFunc) Apply(value *any) bool {
	return f(value)
}

// SkipEmpty is the filter name that ends a chain successfully on empty values
const SkipEmpty = "skip_empty"

type step struct {
	name   string
	params []string
	fn     Filter
}

type chain []step

// Apply implements Rule
func (c chain) Apply(value *any) bool {
	for _, s := range c {
		if s.name == SkipEmpty {
			if IsEmpty(*value) {
				return true
			}
			continue
		}
		if !s.fn(value, s.params) {
			return false
		}
	}
	return true
}

// Validator holds the named filters available to rules
type Validator struct {
	filters map[string]Filter
	mu      sync.RWMutex
}

// New creates a validator with the built-in filters registered
func New() *Validator {
	v := &Validator{filters: make(map[string]Filter)}
	for name, fn := range builtins() {
		v.filters[name] = fn
	}
	return v
}

// Register adds or replaces a named filter
func (v *Validator) Register(name string, fn Filter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filters[name] = fn
}

// Has reports whether a filter is registered
func (v *Validator) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.filters[name]
	return ok
}

// Parse compiles a rule string
func (v *Validator) Parse(rule string) (Rule, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var c chain
	for _, part := range strings.Split(rule, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		pieces := strings.Split(part, ":")
		name := pieces[0]
		params := pieces[1:]

		if name == SkipEmpty {
			c = append(c, step{name: name})
			continue
		}

		fn, ok := v.filters[name]
		if !ok {
			return nil, fmt.Errorf("unknown validation filter: %s", name)
		}
		c = append(c, step{name: name, params: params, fn: fn})
	}

	return c, nil
}

// Validate compiles and applies a rule in one step
func (v *Validator) Validate(value *any, rule string) (bool, error) {
	r, err := v.Parse(rule)
	if err != nil {
		return false, err
	}
	return r.Apply(value), nil
}

// IsEmpty reports whether a value counts as empty: nil, "", or an empty
// slice or map. Zero numbers and false are not empty.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
