package cache

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serialises a model's value map
func Encode(values map[string]any) ([]byte, error) {
	data, err := msgpack.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return data, nil
}

// Decode restores a value map written by Encode. Numbers come back as the
// narrowest msgpack type and times as time.Time; callers coerce per property.
func Decode(data []byte) (map[string]any, error) {
	var values map[string]any
	if err := msgpack.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}
