package orm

import (
	"bytes"
	"encoding/json"
	"iter"
)

// Values is an ordered name to value map, as returned by Model.Get
type Values struct {
	keys []string
	data map[string]any
}

// NewValues creates an empty ordered map
func NewValues() *Values {
	return &Values{data: make(map[string]any)}
}

// Set adds or replaces a value, keeping the original position of existing keys
func (v *Values) Set(key string, val any) {
	if _, ok := v.data[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.data[key] = val
}

// Get returns a value and whether the key is present
func (v *Values) Get(key string) (any, bool) {
	val, ok := v.data[key]
	return val, ok
}

// Value returns a value, nil when absent
func (v *Values) Value(key string) any {
	return v.data[key]
}

// Keys returns the keys in order
func (v *Values) Keys() []string {
	return append([]string(nil), v.keys...)
}

// Len returns the number of entries
func (v *Values) Len() int {
	return len(v.keys)
}

// All iterates the entries in order
func (v *Values) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range v.keys {
			if !yield(key, v.data[key]) {
				return
			}
		}
	}
}

// Map returns an unordered copy
func (v *Values) Map() map[string]any {
	out := make(map[string]any, len(v.data))
	for k, val := range v.data {
		out[k] = val
	}
	return out
}

// MarshalJSON encodes the entries as an object, preserving order
func (v *Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.data[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
