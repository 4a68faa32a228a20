package validation

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// Error codes reported by the model lifecycle
const (
	CodeRequired         = "required_field_missing"
	CodeValidationFailed = "validation_failed"
	CodeNotUnique        = "not_unique"
	CodeNoPermission     = "no_permission"
)

// Translator renders an error code into a message for the given locale
type Translator func(code string, params map[string]any, locale string) string

// Error is a single error code recorded against a key
type Error struct {
	Code   string
	Params map[string]any
}

// Message is a rendered error
type Message struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors accumulates error codes per property name (or pseudo-key such as a
// permission name), preserving the order in which keys were first seen.
type Errors struct {
	keys       []string
	items      map[string][]Error
	translator Translator
	locale     string
}

// NewErrors creates an empty error collector
func NewErrors() *Errors {
	return &Errors{
		items: make(map[string][]Error),
	}
}

// SetTranslator configures how codes are rendered into messages
func (e *Errors) SetTranslator(t Translator, locale string) {
	e.translator = t
	e.locale = locale
}

// Add records an error code for a key
func (e *Errors) Add(key, code string, params map[string]any) {
	if e.items == nil {
		e.items = make(map[string][]Error)
	}
	if _, seen := e.items[key]; !seen {
		e.keys = append(e.keys, key)
	}
	e.items[key] = append(e.items[key], Error{Code: code, Params: params})
}

// HasErrors returns true if any error was recorded
func (e *Errors) HasErrors() bool {
	return len(e.keys) > 0
}

// Has reports whether errors were recorded for a key
func (e *Errors) Has(key string) bool {
	return len(e.items[key]) > 0
}

// Count returns the total number of recorded errors across all keys
func (e *Errors) Count() int {
	count := 0
	for _, errs := range e.items {
		count += len(errs)
	}
	return count
}

// Keys returns the keys in insertion order
func (e *Errors) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Codes returns the raw error codes recorded for a key
func (e *Errors) Codes(key string) []string {
	errs := e.items[key]
	codes := make([]string, len(errs))
	for i, err := range errs {
		codes[i] = err.Code
	}
	return codes
}

// Get returns the rendered messages for a key
func (e *Errors) Get(key string) []string {
	errs := e.items[key]
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = e.render(err)
	}
	return messages
}

// Each iterates keys in insertion order together with their errors
func (e *Errors) Each() iter.Seq2[string, []Error] {
	return func(yield func(string, []Error) bool) {
		for _, key := range e.keys {
			if !yield(key, e.items[key]) {
				return
			}
		}
	}
}

// All returns every error rendered, in insertion order
func (e *Errors) All() []Message {
	out := make([]Message, 0, e.Count())
	for key, errs := range e.Each() {
		for _, err := range errs {
			out = append(out, Message{Key: key, Code: err.Code, Message: e.render(err)})
		}
	}
	return out
}

// Clear removes all recorded errors
func (e *Errors) Clear() {
	e.keys = nil
	e.items = make(map[string][]Error)
}

func (e *Errors) render(err Error) string {
	if e.translator == nil {
		return err.Code
	}
	return e.translator(err.Code, err.Params, e.locale)
}

// Error implements the error interface
func (e *Errors) Error() string {
	if !e.HasErrors() {
		return "validation failed"
	}

	var messages []string
	for _, m := range e.All() {
		messages = append(messages, fmt.Sprintf("  - %s: %s", m.Key, m.Message))
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}

	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler
func (e *Errors) MarshalJSON() ([]byte, error) {
	fields := make(map[string][]string, len(e.keys))
	for _, key := range e.keys {
		fields[key] = e.Get(key)
	}
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  CodeValidationFailed,
		Fields: fields,
	})
}
