package orm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/driver/memory"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
)

type library struct {
	authors *orm.ModelType
	books   *orm.ModelType
	tags    *orm.ModelType
	driver  *memory.Driver
}

func newLibrary(t *testing.T) *library {
	t.Helper()
	driver := memory.New()
	mgr := orm.NewManager(driver)

	lib := &library{driver: driver}
	lib.authors = mgr.MustDefine(orm.TypeConfig{
		Definition: schema.Definition{
			Name:       "Author",
			Properties: map[string]schema.Property{"name": {Required: true}},
		},
		Relations: map[string]orm.RelationFactory{
			"books": func(m *orm.Model) orm.Fetcher { return m.HasMany("Book", "", "") },
			"bio":   func(m *orm.Model) orm.Fetcher { return m.HasOne("Bio", "", "") },
		},
	})
	lib.books = mgr.MustDefine(orm.TypeConfig{
		Definition: schema.Definition{
			Name: "Book",
			Properties: map[string]schema.Property{
				"title":     {Required: true},
				"author_id": {Type: schema.TypeNumber, Null: true},
			},
		},
		Relations: map[string]orm.RelationFactory{
			"author": func(m *orm.Model) orm.Fetcher { return m.BelongsTo("Author", "", "") },
			"tags":   func(m *orm.Model) orm.Fetcher { return m.BelongsToMany("Tag", "BookTag", "", "", "", "") },
		},
	})
	mgr.MustDefine(orm.TypeConfig{Definition: schema.Definition{
		Name: "Bio",
		Properties: map[string]schema.Property{
			"text":      {},
			"author_id": {Type: schema.TypeNumber},
		},
	}})
	lib.tags = mgr.MustDefine(orm.TypeConfig{Definition: schema.Definition{
		Name:       "Tag",
		Properties: map[string]schema.Property{"label": {}},
	}})
	mgr.MustDefine(orm.TypeConfig{Definition: schema.Definition{
		Name: "BookTag",
		IDs:  []string{"book_id", "tag_id"},
		Properties: map[string]schema.Property{
			"book_id": {Type: schema.TypeNumber, Mutable: schema.CreateOnly},
			"tag_id":  {Type: schema.TypeNumber, Mutable: schema.CreateOnly},
		},
	}})
	return lib
}

func create(t *testing.T, typ *orm.ModelType, data map[string]any) *orm.Model {
	t.Helper()
	m := typ.New()
	ok, err := m.Create(context.Background(), data)
	require.NoError(t, err)
	require.True(t, ok, "create %s: %v", typ.Name(), m.Errors())
	return m
}

func titles(t *testing.T, models []*orm.Model) []string {
	t.Helper()
	out := make([]string, 0, len(models))
	for _, m := range models {
		v, err := m.Value(context.Background(), "title")
		require.NoError(t, err)
		out = append(out, v.(string))
	}
	return out
}

func TestHasManyAndBelongsTo(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	author := create(t, lib.authors, map[string]any{"name": "Saint-Exupery"})
	create(t, lib.books, map[string]any{"title": "Vol de nuit", "author_id": author.ID()})
	create(t, lib.books, map[string]any{"title": "Citadelle", "author_id": author.ID()})
	stray := create(t, lib.books, map[string]any{"title": "Anonymous"})

	books, err := author.HasMany("Book", "", "").Results(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Vol de nuit", "Citadelle"}, titles(t, books))

	owner, err := books[0].BelongsTo("Author", "", "").Result(ctx)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, author.ID(), owner.ID())

	none, err := stray.BelongsTo("Author", "", "").Result(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestHasManyWithoutKey(t *testing.T) {
	lib := newLibrary(t)

	results, err := lib.authors.New().HasMany("Book", "", "").Results(context.Background())
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestHasManyAttachDetachSync(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	author := create(t, lib.authors, map[string]any{"name": "Soseki"})
	books := author.HasMany("Book", "", "")

	kokoro := lib.books.New()
	require.NoError(t, kokoro.SetValue("title", "Kokoro"))
	ok, err := books.Attach(ctx, kokoro)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, kokoro.Persisted())

	cat := create(t, lib.books, map[string]any{"title": "I Am a Cat"})
	ok, err = books.Attach(ctx, cat)
	require.NoError(t, err)
	require.True(t, ok)

	results, err := books.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	ok, err = books.Detach(ctx, cat)
	require.NoError(t, err)
	require.True(t, ok)

	results, err = books.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kokoro"}, titles(t, results))

	ok, err = books.Attach(ctx, cat)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = books.Sync(ctx, []any{kokoro.ID()})
	require.NoError(t, err)
	require.True(t, ok)

	results, err = books.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kokoro"}, titles(t, results))
	assert.Len(t, lib.driver.Rows("books"), 1)
}

func TestHasOne(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	author := create(t, lib.authors, map[string]any{"name": "Ann"})
	bio, err := author.HasOne("Bio", "", "").Result(ctx)
	require.NoError(t, err)
	assert.Nil(t, bio)

	bios, err := lib.authors.Manager().Type("Bio")
	require.NoError(t, err)
	create(t, bios, map[string]any{"text": "Writer", "author_id": author.ID()})

	loaded, err := author.Load(ctx, "bio")
	require.NoError(t, err)
	require.IsType(t, &orm.Model{}, loaded)
	text, err := loaded.(*orm.Model).Value(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, "Writer", text)
}

func TestBelongsToMany(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	book := create(t, lib.books, map[string]any{"title": "Kokoro"})
	other := create(t, lib.books, map[string]any{"title": "Sanshiro"})
	classic := create(t, lib.tags, map[string]any{"label": "classic"})
	novel := create(t, lib.tags, map[string]any{"label": "novel"})
	meiji := create(t, lib.tags, map[string]any{"label": "meiji"})

	tags := book.BelongsToMany("Tag", "BookTag", "", "", "", "")
	for _, tag := range []*orm.Model{classic, novel, meiji} {
		ok, err := tags.Attach(ctx, tag)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := other.BelongsToMany("Tag", "BookTag", "", "", "", "").Attach(ctx, novel)
	require.NoError(t, err)
	require.True(t, ok)

	results, err := tags.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	ok, err = tags.Detach(ctx, meiji)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tags.Sync(ctx, []any{novel.ID()})
	require.NoError(t, err)
	require.True(t, ok)

	results, err = tags.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	label, err := results[0].Value(ctx, "label")
	require.NoError(t, err)
	assert.Equal(t, "novel", label)

	assert.Len(t, lib.driver.Rows("book_tags"), 2, "other book keeps its association")
}

func TestEagerLoading(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	author := create(t, lib.authors, map[string]any{"name": "Ann"})
	create(t, lib.books, map[string]any{"title": "One", "author_id": author.ID()})
	create(t, lib.books, map[string]any{"title": "Two", "author_id": author.ID()})

	authors, err := lib.authors.Query().With("books").Execute(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)

	related, ok := authors[0].Related("books")
	require.True(t, ok)
	assert.Len(t, related, 2)

	_, err = author.Load(ctx, "reviews")
	assert.ErrorIs(t, err, orm.ErrUnknownRelation)
}

func TestAllIteratesEveryPage(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	for _, title := range []string{"a", "b", "c", "d", "e"} {
		create(t, lib.books, map[string]any{"title": title})
	}

	var seen []string
	for m, err := range lib.books.Query().Sort("title asc").Limit(2).All(ctx) {
		require.NoError(t, err)
		v, err := m.Value(ctx, "title")
		require.NoError(t, err)
		seen = append(seen, v.(string))
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestUnknownRelationType(t *testing.T) {
	lib := newLibrary(t)

	rel := lib.authors.New().HasMany("Review", "", "")
	assert.Nil(t, rel.ForeignType())
	_, err := rel.Results(context.Background())
	assert.ErrorIs(t, err, orm.ErrUnknownType)
}

func TestHasManyBeyondOnePage(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	author := create(t, lib.authors, map[string]any{"name": "Simenon"})
	total := orm.DefaultLimit + 50
	for i := 0; i < total; i++ {
		create(t, lib.books, map[string]any{"title": "Maigret", "author_id": author.ID()})
	}

	books := author.HasMany("Book", "", "")
	results, err := books.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, results, total)

	ok, err := books.Sync(ctx, []any{results[0].ID()})
	require.NoError(t, err)
	require.True(t, ok)

	n, err := lib.books.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
