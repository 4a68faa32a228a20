package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ErrCoerce is returned when a raw value cannot be represented as the requested kind
var ErrCoerce = errors.New("value: cannot coerce")

// From converts a native Go value into a Value, choosing the kind from its dynamic type
func From(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case time.Time:
		return Date(t), nil
	case *time.Time:
		if t == nil {
			return Null(), nil
		}
		return Date(*t), nil
	case []byte:
		return Bytes(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("%w: %v", ErrCoerce, err)
		}
		return Float(f), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := From(item)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return Value{kind: KindArray, arr: items}, nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := From(item)
			if err != nil {
				return Null(), err
			}
			fields[k] = v
		}
		return Value{kind: KindObject, obj: fields}, nil
	case fmt.Stringer:
		return String(t.String()), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return From(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := From(rv.Index(i).Interface())
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return Value{kind: KindArray, arr: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Null(), fmt.Errorf("%w: map key %s", ErrCoerce, rv.Type().Key())
		}
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := From(iter.Value().Interface())
			if err != nil {
				return Null(), err
			}
			fields[iter.Key().String()] = v
		}
		return Value{kind: KindObject, obj: fields}, nil
	}

	return Null(), fmt.Errorf("%w: unsupported type %T", ErrCoerce, x)
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Null(), fmt.Errorf("%w: %d overflows int64", ErrCoerce, u)
	}
	return Int(int64(u)), nil
}

// MustFrom is like From but panics on failure. Intended for literals in tests and fixtures.
func MustFrom(x any) Value {
	v, err := From(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Coerce converts a raw value (native or Value) into a Value of the given kind.
// Null always stays null. This is the only place where driver and cache payloads
// are reshaped into the property type.
func Coerce(x any, kind Kind) (Value, error) {
	if v, ok := x.(Value); ok {
		if v.kind == kind || v.IsNull() {
			return v, nil
		}
		x = v.Interface()
	}
	if x == nil {
		return Null(), nil
	}

	switch kind {
	case KindString:
		if b, ok := x.([]byte); ok {
			return String(string(b)), nil
		}
		if t, ok := x.(time.Time); ok {
			return String(t.Format(time.RFC3339Nano)), nil
		}
		s, err := cast.ToStringE(x)
		if err != nil {
			return Null(), fmt.Errorf("%w: %v to string", ErrCoerce, x)
		}
		return String(s), nil

	case KindNumber:
		return coerceNumber(x)

	case KindBool:
		if b, ok := x.([]byte); ok {
			x = string(b)
		}
		b, err := cast.ToBoolE(x)
		if err != nil {
			return Null(), fmt.Errorf("%w: %v to boolean", ErrCoerce, x)
		}
		return Bool(b), nil

	case KindDate:
		if b, ok := x.([]byte); ok {
			x = string(b)
		}
		if s, ok := x.(string); ok {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return Date(time.Unix(i, 0).UTC()), nil
			}
		}
		t, err := cast.ToTimeE(x)
		if err != nil {
			return Null(), fmt.Errorf("%w: %v to date", ErrCoerce, x)
		}
		return Date(t), nil

	case KindBytes:
		switch t := x.(type) {
		case []byte:
			return Bytes(t), nil
		case string:
			return Bytes([]byte(t)), nil
		}
		return Null(), fmt.Errorf("%w: %T to bytes", ErrCoerce, x)

	case KindArray, KindObject:
		return coerceJSON(x, kind)
	}

	return From(x)
}

func coerceNumber(x any) (Value, error) {
	switch t := x.(type) {
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []byte:
		x = string(t)
	case bool:
		if t {
			return Int(1), nil
		}
		return Int(0), nil
	}
	if s, ok := x.(string); ok {
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return Null(), fmt.Errorf("%w: %q to number", ErrCoerce, s)
		}
		return Float(f), nil
	}
	i, err := cast.ToInt64E(x)
	if err != nil {
		return Null(), fmt.Errorf("%w: %v to number", ErrCoerce, x)
	}
	return Int(i), nil
}

func coerceJSON(x any, kind Kind) (Value, error) {
	var decoded any
	switch t := x.(type) {
	case string:
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			return Null(), fmt.Errorf("%w: %v", ErrCoerce, err)
		}
	case []byte:
		if err := json.Unmarshal(t, &decoded); err != nil {
			return Null(), fmt.Errorf("%w: %v", ErrCoerce, err)
		}
	default:
		decoded = x
	}

	v, err := From(decoded)
	if err != nil {
		return Null(), err
	}
	if v.kind != kind && !v.IsNull() {
		return Null(), fmt.Errorf("%w: %s to %s", ErrCoerce, v.kind, kind)
	}
	return v, nil
}

// MarshalJSON encodes the value using its native representation
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindDate {
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	}
	return json.Marshal(v.Interface())
}

// Equal reports whether two values hold the same kind and content.
// Integral and fractional numbers compare by numeric value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindNumber:
		if !a.float && !b.float {
			return a.num == b.num
		}
		return a.Float64() == b.Float64()
	case KindBool:
		return a.b == b.b
	case KindDate:
		return a.t.Equal(b.t)
	case KindBytes:
		return string(a.raw) == string(b.raw)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values of comparable kinds. ok is false when the values
// cannot be ordered against each other (different kinds, arrays, objects).
func Compare(a, b Value) (result int, ok bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.str, b.str), true
	case KindNumber:
		af, bf := a.Float64(), b.Float64()
		if !a.float && !b.float {
			switch {
			case a.num < b.num:
				return -1, true
			case a.num > b.num:
				return 1, true
			}
			return 0, true
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	case KindBool:
		switch {
		case a.b == b.b:
			return 0, true
		case !a.b:
			return -1, true
		}
		return 1, true
	case KindDate:
		return a.t.Compare(b.t), true
	case KindNull:
		return 0, true
	}
	return 0, false
}
