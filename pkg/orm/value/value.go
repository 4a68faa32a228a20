// Package value provides the tagged union used for every value that crosses the
// storage driver boundary. Drivers receive and return value.Value so that type
// coercion happens in one explicit place instead of inside each backend.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which member of the union a Value holds
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindBytes
	KindArray
	KindObject
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged union. The zero Value is null.
type Value struct {
	kind  Kind
	str   string
	num   int64
	flt   float64
	float bool
	b     bool
	t     time.Time
	raw   []byte
	arr   []Value
	obj   map[string]Value
}

// Row is a raw record as exchanged with a storage driver
type Row map[string]Value

// Null returns the null value
func Null() Value { return Value{} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integral number value
func Int(i int64) Value { return Value{kind: KindNumber, num: i} }

// Float returns a floating point number value
func Float(f float64) Value { return Value{kind: KindNumber, flt: f, float: true} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date value
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Bytes returns a binary value
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, raw: cp}
}

// Array returns an array value
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// Object returns an object value
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

// Kind returns the kind of the value
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsFloat reports whether a number value carries a fractional representation
func (v Value) IsFloat() bool { return v.kind == KindNumber && v.float }

// Str returns the string member. Non-string kinds return their display form.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.str
	}
	return v.String()
}

// Int64 returns the number member as an int64 (floats are truncated)
func (v Value) Int64() int64 {
	if v.float {
		return int64(v.flt)
	}
	return v.num
}

// Float64 returns the number member as a float64
func (v Value) Float64() float64 {
	if v.float {
		return v.flt
	}
	return float64(v.num)
}

// Bool returns the boolean member
func (v Value) Bool() bool { return v.b }

// Time returns the date member
func (v Value) Time() time.Time { return v.t }

// Raw returns the bytes member
func (v Value) Raw() []byte { return v.raw }

// Items returns the array member
func (v Value) Items() []Value { return v.arr }

// Fields returns the object member
func (v Value) Fields() map[string]Value { return v.obj }

// Interface converts the value to its native Go representation:
// nil, string, int64, float64, bool, time.Time, []byte, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.float {
			return v.flt
		}
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	case KindBytes:
		return v.raw
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// String returns a display form of the value, used for ids and cache keys
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		if v.float {
			return strconv.FormatFloat(v.flt, 'f', -1, 64)
		}
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	case KindBytes:
		return string(v.raw)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s:%s", k, v.obj[k].String())
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return ""
	}
}
