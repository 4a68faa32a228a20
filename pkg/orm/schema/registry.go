package schema

import (
	"fmt"
	"sort"
	"sync"
)

// entry memoizes the resolution of one definition
type entry struct {
	def    Definition
	once   sync.Once
	schema *Schema
}

// Registry manages all model definitions of an application.
// Each definition is resolved into a Schema exactly once, on first use.
type Registry struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register registers a new model definition
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("model definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("model %s is already registered", def.Name)
	}

	r.entries[def.Name] = &entry{def: def}
	return nil
}

// Get returns the resolved schema of a model type, building it on first access
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil, false
	}

	e.once.Do(func() {
		e.schema = Build(e.def)
	})
	return e.schema, true
}

// Definition returns the declared definition of a model type
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return Definition{}, false
	}
	return e.def, true
}

// List returns the sorted names of all registered model types
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists checks if a model type is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.entries[name]
	return exists
}

// Count returns the number of registered model types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Clear removes all registered definitions (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*entry)
}
