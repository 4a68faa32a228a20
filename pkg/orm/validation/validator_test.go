package validation

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	PasswordCost = bcrypt.MinCost
}

func apply(t *testing.T, rule string, in any) (any, bool) {
	t.Helper()
	v := New()
	ok, err := v.Validate(&in, rule)
	require.NoError(t, err)
	return in, ok
}

func TestParse_UnknownFilter(t *testing.T) {
	_, err := New().Parse("string|bogus:1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestParse_EmptyRulePasses(t *testing.T) {
	r, err := New().Parse("")
	require.NoError(t, err)
	var v any = 5
	assert.True(t, r.Apply(&v))
}

func TestChain_StopsOnFirstFailure(t *testing.T) {
	v := New()
	calls := 0
	v.Register("count", func(value *any, _ []string) bool {
		calls++
		return true
	})

	var in any = "abc"
	ok, err := v.Validate(&in, "numeric|count")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, calls)
}

func TestChain_SkipEmpty(t *testing.T) {
	_, ok := apply(t, "skip_empty|email", "")
	assert.True(t, ok)

	_, ok = apply(t, "skip_empty|email", "nope")
	assert.False(t, ok)

	_, ok = apply(t, "email", "")
	assert.False(t, ok)
}

func TestRuleFunc(t *testing.T) {
	r := RuleFunc(func(v *any) bool {
		*v = "changed"
		return true
	})
	var in any = "x"
	assert.True(t, r.Apply(&in))
	assert.Equal(t, "changed", in)
}

func TestFilters(t *testing.T) {
	tests := []struct {
		rule string
		in   any
		ok   bool
	}{
		{"alpha", "abc", true},
		{"alpha", "ab1", false},
		{"alpha_numeric", "ab1", true},
		{"alpha_numeric", "ab-1", false},
		{"alpha_dash", "ab-1_c", true},
		{"alpha_dash", "ab 1", false},
		{"email", "bolt@example.com", true},
		{"email", "Bolt <bolt@example.com>", false},
		{"enum:red:green", "red", true},
		{"enum:red:green", "blue", false},
		{"ip", "127.0.0.1", true},
		{"ip", "::1", true},
		{"ip", "localhost", false},
		{"matching:^[A-Z]{2}[0-9]+$", "AB12", true},
		{"matching:^[A-Z]{2}[0-9]+$", "ab12", false},
		{"range:1:100", 50, true},
		{"range:1:100", "100", true},
		{"range:1:100", 101, false},
		{"range::10", -5, true},
		{"range:1:100", "x", false},
		{"required", "x", true},
		{"required", "", false},
		{"required", []any{}, false},
		{"required", 0, true},
		{"string", "abc", true},
		{"string", 5, false},
		{"string:2:3", "abcd", false},
		{"string:2:3", "é", false},
		{"string:2", "abcd", true},
		{"time_zone", "Europe/Paris", true},
		{"time_zone", "Mars/Olympus", false},
		{"url", "https://example.com/a", true},
		{"url", "example.com", false},
		{"uuid", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			_, ok := apply(t, tt.rule, tt.in)
			assert.Equal(t, tt.ok, ok, "%s(%v)", tt.rule, tt.in)
		})
	}
}

func TestFilter_BooleanCoerces(t *testing.T) {
	out, ok := apply(t, "boolean", "true")
	assert.True(t, ok)
	assert.Equal(t, true, out)

	out, ok = apply(t, "boolean", 0)
	assert.True(t, ok)
	assert.Equal(t, false, out)

	_, ok = apply(t, "boolean", "maybe")
	assert.False(t, ok)
}

func TestFilter_NumericCoerces(t *testing.T) {
	out, ok := apply(t, "numeric", "42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), out)

	out, ok = apply(t, "numeric:float", "42")
	assert.True(t, ok)
	assert.Equal(t, 42.0, out)

	_, ok = apply(t, "numeric:int", "4.5")
	assert.False(t, ok)

	out, ok = apply(t, "numeric:int", 4.0)
	assert.True(t, ok)
	assert.Equal(t, int64(4), out)
}

func TestFilter_Timestamps(t *testing.T) {
	out, ok := apply(t, "timestamp", "1700000000")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), out.(time.Time).Unix())

	in := time.Date(2024, 5, 6, 7, 8, 9, 123, time.FixedZone("X", 3600))
	out, ok = apply(t, "timestamp|db_timestamp", in)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 6, 6, 8, 9, 0, time.UTC), out)

	out, ok = apply(t, "date", "2024-05-06T23:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), out)

	_, ok = apply(t, "timestamp", "not a time")
	assert.False(t, ok)
}

func TestFilter_PasswordHashes(t *testing.T) {
	out, ok := apply(t, "password", "correct horse")
	require.True(t, ok)
	hash := out.(string)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))

	_, ok = apply(t, "password", "short")
	assert.False(t, ok)

	_, ok = apply(t, "password:4", "short")
	assert.True(t, ok)
}

func TestFilter_UUIDNormalises(t *testing.T) {
	out, ok := apply(t, "uuid", "6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.True(t, ok)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", out)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty(map[string]any{}))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty(false))
	assert.False(t, IsEmpty(" "))
}
