package value

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		kind Kind
		want any
	}{
		{"nil", nil, KindNull, nil},
		{"string", "bolt", KindString, "bolt"},
		{"int", 42, KindNumber, int64(42)},
		{"uint8", uint8(7), KindNumber, int64(7)},
		{"float", 1.5, KindNumber, 1.5},
		{"bool", true, KindBool, true},
		{"time", now, KindDate, now},
		{"slice", []any{"a", 1}, KindArray, []any{"a", int64(1)}},
		{"typed slice", []string{"a", "b"}, KindArray, []any{"a", "b"}},
		{"map", map[string]any{"k": "v"}, KindObject, map[string]any{"k": "v"}},
		{"typed map", map[string]int{"k": 1}, KindObject, map[string]any{"k": int64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := From(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.want, v.Interface())
		})
	}
}

func TestFrom_Unsupported(t *testing.T) {
	_, err := From(make(chan int))
	assert.ErrorIs(t, err, ErrCoerce)

	_, err = From(map[int]string{1: "a"})
	assert.ErrorIs(t, err, ErrCoerce)

	_, err = From(uint64(math.MaxInt64) + 1)
	assert.ErrorIs(t, err, ErrCoerce)

	v, err := From(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.Interface())
}

func TestCoerce(t *testing.T) {
	t.Run("number from string", func(t *testing.T) {
		v, err := Coerce("42", KindNumber)
		require.NoError(t, err)
		assert.Equal(t, int64(42), v.Interface())

		v, err = Coerce(" 2.5 ", KindNumber)
		require.NoError(t, err)
		assert.Equal(t, 2.5, v.Interface())
	})

	t.Run("number from bytes", func(t *testing.T) {
		v, err := Coerce([]byte("17"), KindNumber)
		require.NoError(t, err)
		assert.Equal(t, int64(17), v.Interface())
	})

	t.Run("number rejects garbage", func(t *testing.T) {
		_, err := Coerce("abc", KindNumber)
		assert.ErrorIs(t, err, ErrCoerce)
	})

	t.Run("string from number", func(t *testing.T) {
		v, err := Coerce(int64(5), KindString)
		require.NoError(t, err)
		assert.Equal(t, "5", v.Interface())
	})

	t.Run("bool from string", func(t *testing.T) {
		v, err := Coerce("true", KindBool)
		require.NoError(t, err)
		assert.Equal(t, true, v.Interface())

		v, err = Coerce(int64(0), KindBool)
		require.NoError(t, err)
		assert.Equal(t, false, v.Interface())
	})

	t.Run("date from unix string", func(t *testing.T) {
		v, err := Coerce("1700000000", KindDate)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), v.Time().Unix())
	})

	t.Run("date from layout", func(t *testing.T) {
		v, err := Coerce("2024-03-01T12:00:00Z", KindDate)
		require.NoError(t, err)
		assert.Equal(t, 2024, v.Time().Year())
	})

	t.Run("array from json text", func(t *testing.T) {
		v, err := Coerce(`["a","b"]`, KindArray)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, v.Interface())
	})

	t.Run("object from json bytes", func(t *testing.T) {
		v, err := Coerce([]byte(`{"n":1}`), KindObject)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": int64(1)}, v.Interface())
	})

	t.Run("object rejects array", func(t *testing.T) {
		_, err := Coerce(`[1]`, KindObject)
		assert.ErrorIs(t, err, ErrCoerce)
	})

	t.Run("null stays null", func(t *testing.T) {
		v, err := Coerce(nil, KindNumber)
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		v, err = Coerce(Null(), KindString)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
	})

	t.Run("value passes through", func(t *testing.T) {
		v, err := Coerce(String("7"), KindNumber)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v.Interface())
	})
}

func TestEqualAndCompare(t *testing.T) {
	assert.True(t, Equal(Int(3), Float(3)))
	assert.False(t, Equal(Int(3), String("3")))
	assert.True(t, Equal(Array(Int(1), String("a")), Array(Int(1), String("a"))))
	assert.True(t, Equal(Object(map[string]Value{"a": Bool(true)}), Object(map[string]Value{"a": Bool(true)})))

	c, ok := Compare(Int(1), Int(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(String("b"), String("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare(Int(1), String("1"))
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "1.25", Float(1.25).String())
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "{a:1,b:x}", Object(map[string]Value{"b": String("x"), "a": Int(1)}).String())
}
