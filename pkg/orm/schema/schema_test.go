package schema

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgetDefinition() Definition {
	return Definition{
		Name: "Widget",
		Properties: map[string]Property{
			"name": {Required: true},
			"sku":  {Unique: true},
		},
	}
}

func TestBuild_InjectsDefaultID(t *testing.T) {
	s := Build(widgetDefinition())

	id, ok := s.Property("id")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, id.Type)
	assert.Equal(t, Immutable, id.Mutable)
	assert.Equal(t, []string{"id"}, s.IDs())
}

func TestBuild_KeepsDeclaredID(t *testing.T) {
	def := widgetDefinition()
	def.Properties["id"] = Property{Type: TypeString, Mutable: CreateOnly}

	s := Build(def)
	id, _ := s.Property("id")
	assert.Equal(t, TypeString, id.Type)
	assert.Equal(t, CreateOnly, id.Mutable)
}

func TestBuild_CompositeIDsAreNotInjected(t *testing.T) {
	s := Build(Definition{
		Name: "Membership",
		IDs:  []string{"user_id", "group_id"},
		Properties: map[string]Property{
			"user_id":  {Type: TypeNumber},
			"group_id": {Type: TypeNumber},
		},
	})

	assert.False(t, s.Has("id"))
	assert.Equal(t, []string{"user_id", "group_id"}, s.IDs())
}

func TestBuild_BaseDefaults(t *testing.T) {
	s := Build(widgetDefinition())

	name, ok := s.Property("name")
	require.True(t, ok)
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, TypeString, name.Type)
	assert.Equal(t, Mutable, name.Mutable)
	assert.False(t, name.Null)
	assert.False(t, name.Unique)
	assert.True(t, name.Required)

	sku, _ := s.Property("sku")
	assert.True(t, sku.Unique)
	assert.False(t, sku.Required)
}

func TestBuild_Timestamps(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	oldNow := Now
	Now = func() time.Time { return fixed }
	defer func() { Now = oldNow }()

	def := widgetDefinition()
	def.Timestamps = true
	s := Build(def)

	created, ok := s.Property(CreatedAt)
	require.True(t, ok)
	assert.Equal(t, TypeDate, created.Type)
	assert.Equal(t, CreateOnly, created.Mutable)
	assert.Equal(t, fixed, created.DefaultValue())

	updated, ok := s.Property(UpdatedAt)
	require.True(t, ok)
	assert.Equal(t, Mutable, updated.Mutable)
	assert.True(t, s.HasTimestamps())
}

func TestBuild_DeclaredTimestampWins(t *testing.T) {
	def := widgetDefinition()
	def.Timestamps = true
	def.Properties[CreatedAt] = Property{Type: TypeNumber}

	s := Build(def)
	created, _ := s.Property(CreatedAt)
	assert.Equal(t, TypeNumber, created.Type)
	assert.Nil(t, created.Default)
}

func TestBuild_SortedNames(t *testing.T) {
	def := widgetDefinition()
	def.Timestamps = true
	s := Build(def)

	assert.Equal(t, []string{"created_at", "id", "name", "sku", "updated_at"}, s.Names())
	assert.Equal(t, []string{"name"}, s.Required())
}

func TestBuild_TableName(t *testing.T) {
	assert.Equal(t, "widgets", Build(widgetDefinition()).Table())
	assert.Equal(t, "order_items", TableName("OrderItem"))

	def := widgetDefinition()
	def.Table = "inventory"
	assert.Equal(t, "inventory", Build(def).Table())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(widgetDefinition()))

	err := r.Register(widgetDefinition())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, r.Register(Definition{}))

	s1, ok := r.Get("Widget")
	require.True(t, ok)
	s2, _ := r.Get("Widget")
	assert.Same(t, s1, s2)

	_, ok = r.Get("Gadget")
	assert.False(t, ok)

	assert.Equal(t, []string{"Widget"}, r.List())
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Exists("Widget"))

	r.Clear()
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ConcurrentGetBuildsOnce(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(widgetDefinition()))

	var wg sync.WaitGroup
	results := make([]*Schema, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Get("Widget")
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestParse(t *testing.T) {
	doc := `
models:
  Widget:
    timestamps: true
    properties:
      name:
        required: true
        validate: "string:1:50"
      price:
        type: number
        mutable: create_only
  Tag:
    table: labels
    properties:
      label: {}
`
	defs, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "Tag", defs[0].Name)
	assert.Equal(t, "labels", defs[0].Table)

	w := defs[1]
	assert.Equal(t, "Widget", w.Name)
	assert.True(t, w.Timestamps)
	assert.Equal(t, "string:1:50", w.Properties["name"].Validate)
	assert.Equal(t, TypeNumber, w.Properties["price"].Type)
	assert.Equal(t, CreateOnly, w.Properties["price"].Mutable)
	assert.Equal(t, Mutable, w.Properties["name"].Mutable)
}

func TestParse_InvalidType(t *testing.T) {
	_, err := Parse([]byte("models:\n  W:\n    properties:\n      a: {type: blob}\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown property type")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  Widget:\n    properties:\n      name: {}\n"), 0o644))

	defs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Widget", defs[0].Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
