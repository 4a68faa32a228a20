package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/activerecord/pkg/orm/validation"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "Property", "Type", "Required")
	table.AddRow("id", "number", "no")
	table.AddRow("name", "string", "yes")
	table.AddRow("sku")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, "Property  Type    Required", lines[0])
	assert.Equal(t, "────────  ──────  ────────", lines[1])
	assert.Equal(t, "id        number  no", lines[2])
	assert.Equal(t, "name      string  yes", lines[3])
	assert.Equal(t, "sku               ", lines[4])
	assert.Equal(t, 3, table.Len())
}

func TestTableWithoutHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("id", "1")
	kv.AddRow("name", "Bolt")
	kv.Render()

	assert.Equal(t, "id:   1\nname: Bolt\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Widget", true)
	assert.Equal(t, "Widget\n──────\n", buf.String())
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"Widget", "Order", "Gadget"}

	assert.Equal(t, []string{"Widget", "Gadget"}, FindSimilar("Wdget", candidates))
	assert.Equal(t, []string{"Order"}, FindSimilar("order", candidates))
	assert.Empty(t, FindSimilar("Invoice", candidates))
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2   string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, LevenshteinDistance(tt.s1, tt.s2), "%q -> %q", tt.s1, tt.s2)
	}
}

func TestUnknownTypeError(t *testing.T) {
	out := UnknownTypeError("Wdget", []string{"Widget", "Order"}, true)

	assert.Contains(t, out, "❌ UNKNOWN MODEL TYPE: Wdget")
	assert.Contains(t, out, "Did you mean: Widget?")
	assert.Contains(t, out, "→ See all model types: activerecord schema")
}

func TestFormatErrorWithoutContext(t *testing.T) {
	out := FormatError(ErrorOptions{Problem: "connection refused", NoColor: true})
	assert.Equal(t, "❌ connection refused\n", out)
}

func TestWriteValidationErrors(t *testing.T) {
	var buf bytes.Buffer
	WriteValidationErrors(&buf, []validation.Message{
		{Key: "name", Code: validation.CodeRequired, Message: "name is required"},
		{Key: "sku", Code: validation.CodeNotUnique, Message: "sku is already taken"},
	}, true)

	assert.Equal(t,
		"  ✗ name is required (name: required_field_missing)\n"+
			"  ✗ sku is already taken (sku: not_unique)\n",
		buf.String())
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "Created Widget 1", true)
	assert.Equal(t, "✓ Created Widget 1\n", buf.String())
}
