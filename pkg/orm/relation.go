package orm

import (
	"context"
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Relation binds a query over a foreign type to an owner instance. The
// relation matches foreign.foreignKey = owner.localKey; when the owner's
// localKey is nil the relation is empty and no query runs.
type Relation struct {
	owner      *Model
	foreign    *ModelType
	foreignKey string
	localKey   string
	query      *Query
	err        error
}

func newRelation(owner *Model, foreignType, foreignKey, localKey string) *Relation {
	r := &Relation{owner: owner, foreignKey: foreignKey, localKey: localKey}
	ft, err := owner.typ.mgr.Type(foreignType)
	if err != nil {
		r.err = err
		return r
	}
	r.foreign = ft
	r.query = ft.Query()
	return r
}

// Query returns the underlying query, for further scoping
func (r *Relation) Query() *Query {
	if r.query == nil {
		return &Query{err: r.err}
	}
	return r.query
}

// ForeignType returns the related model type
func (r *Relation) ForeignType() *ModelType { return r.foreign }

// ForeignKey returns the matched column of the foreign type
func (r *Relation) ForeignKey() string { return r.foreignKey }

// LocalKey returns the governing column of the owner
func (r *Relation) LocalKey() string { return r.localKey }

// Key resolves the owner's governing value
func (r *Relation) Key(ctx context.Context) (any, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.owner.Value(ctx, r.localKey)
}

// scoped returns the query restricted to the owner; false when the key is nil
func (r *Relation) scoped(ctx context.Context) (*Query, bool, error) {
	key, err := r.Key(ctx)
	if err != nil || key == nil {
		return nil, false, err
	}
	return r.query.Clone().Where(map[string]any{r.foreignKey: key}), true, nil
}

func (r *Relation) first(ctx context.Context) (*Model, error) {
	q, ok, err := r.scoped(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return q.First(ctx)
}

func (r *Relation) results(ctx context.Context) ([]*Model, error) {
	q, ok, err := r.scoped(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return collect(ctx, q)
}

// collect reads every page of q; the query's limit is the page size
func collect(ctx context.Context, q *Query) ([]*Model, error) {
	models := []*Model{}
	for m, err := range q.All(ctx) {
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// HasOne relates the owner to a single foreign record holding the owner's key
type HasOne struct {
	*Relation
}

// Result returns the related record, nil when there is none
func (r *HasOne) Result(ctx context.Context) (*Model, error) {
	return r.first(ctx)
}

// Fetch implements Fetcher
func (r *HasOne) Fetch(ctx context.Context) (any, error) {
	return single(r.Result(ctx))
}

// BelongsTo relates the owner to the single foreign record it references
type BelongsTo struct {
	*Relation
}

// Result returns the referenced record, nil when there is none
func (r *BelongsTo) Result(ctx context.Context) (*Model, error) {
	return r.first(ctx)
}

// Fetch implements Fetcher
func (r *BelongsTo) Fetch(ctx context.Context) (any, error) {
	return single(r.Result(ctx))
}

// HasMany relates the owner to every foreign record holding the owner's key
type HasMany struct {
	*Relation
}

// Results returns every related record, reading the relation query one page
// at a time. It returns nil when the owner's key is nil and a possibly empty
// list otherwise.
func (r *HasMany) Results(ctx context.Context) ([]*Model, error) {
	return r.results(ctx)
}

// Fetch implements Fetcher
func (r *HasMany) Fetch(ctx context.Context) (any, error) {
	return r.Results(ctx)
}

// Attach points the child's foreign key at the owner and saves the child
func (r *HasMany) Attach(ctx context.Context, child *Model) (bool, error) {
	key, err := r.requireKey(ctx)
	if err != nil {
		return false, err
	}
	if err := child.SetValue(r.foreignKey, key); err != nil {
		return false, err
	}
	return child.Save(ctx)
}

// Detach clears the child's foreign key and saves the child
func (r *HasMany) Detach(ctx context.Context, child *Model) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if err := child.SetValue(r.foreignKey, nil); err != nil {
		return false, err
	}
	return child.Save(ctx)
}

// Sync deletes the related records whose id is not listed
func (r *HasMany) Sync(ctx context.Context, ids []any) (bool, error) {
	q, ok, err := r.scoped(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	keep := idSet(ids)
	return deleteAll(ctx, q, func(_ context.Context, child *Model) (bool, error) {
		return !keep[child.IDString()], nil
	})
}

func (r *Relation) requireKey(ctx context.Context) (any, error) {
	key, err := r.Key(ctx)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %s.%s is not set", ErrInvalidOperation, r.owner.typ.name, r.localKey)
	}
	return key, nil
}

// BelongsToMany relates the owner to foreign records through a pivot type
// holding one row per association
type BelongsToMany struct {
	*Relation
	pivot           *ModelType
	ownerPivotKey   string
	foreignPivotKey string
}

// Pivot returns the pivot model type
func (r *BelongsToMany) Pivot() *ModelType { return r.pivot }

// Results returns the associated records; nil when the owner's key is nil
func (r *BelongsToMany) Results(ctx context.Context) ([]*Model, error) {
	if r.err != nil {
		return nil, r.err
	}
	key, err := r.Key(ctx)
	if err != nil || key == nil {
		return nil, err
	}
	q := r.query.Clone().
		Join(r.pivot.name, r.foreignKey, r.foreignPivotKey).
		Where(map[string]any{r.pivot.schema.Table() + "." + r.ownerPivotKey: key})
	return collect(ctx, q)
}

// Fetch implements Fetcher
func (r *BelongsToMany) Fetch(ctx context.Context) (any, error) {
	return r.Results(ctx)
}

// Attach creates the pivot row associating foreign with the owner
func (r *BelongsToMany) Attach(ctx context.Context, foreign *Model) (bool, error) {
	key, fk, err := r.keys(ctx, foreign)
	if err != nil {
		return false, err
	}
	pivot := r.pivot.New()
	return pivot.Create(ctx, map[string]any{r.ownerPivotKey: key, r.foreignPivotKey: fk})
}

// Detach deletes the pivot rows associating foreign with the owner
func (r *BelongsToMany) Detach(ctx context.Context, foreign *Model) (bool, error) {
	key, fk, err := r.keys(ctx, foreign)
	if err != nil {
		return false, err
	}
	q := r.pivot.Query().Where(map[string]any{r.ownerPivotKey: key, r.foreignPivotKey: fk})
	return deleteAll(ctx, q, nil)
}

// Sync deletes the pivot rows of the owner whose foreign id is not listed
func (r *BelongsToMany) Sync(ctx context.Context, ids []any) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	key, err := r.requireKey(ctx)
	if err != nil {
		return false, err
	}
	keep := idSet(ids)
	q := r.pivot.Query().Where(map[string]any{r.ownerPivotKey: key}).Limit(MaxLimit)
	return deleteAll(ctx, q, func(ctx context.Context, pivot *Model) (bool, error) {
		fk, err := pivot.Value(ctx, r.foreignPivotKey)
		if err != nil {
			return false, err
		}
		return !keep[idString(fk)], nil
	})
}

func (r *BelongsToMany) keys(ctx context.Context, foreign *Model) (any, any, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	key, err := r.requireKey(ctx)
	if err != nil {
		return nil, nil, err
	}
	fk, err := foreign.Value(ctx, r.foreignKey)
	if err != nil {
		return nil, nil, err
	}
	if fk == nil {
		return nil, nil, fmt.Errorf("%w: %s.%s is not set", ErrInvalidOperation, foreign.typ.name, r.foreignKey)
	}
	return key, fk, nil
}

// deleteAll collects every match first so deletions do not shift the pages
func deleteAll(ctx context.Context, q *Query, match func(context.Context, *Model) (bool, error)) (bool, error) {
	var targets []*Model
	for m, err := range q.All(ctx) {
		if err != nil {
			return false, err
		}
		if match != nil {
			ok, err := match(ctx, m)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
		}
		targets = append(targets, m)
	}

	for _, m := range targets {
		ok, err := m.Delete(ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// HasOne declares a one-to-one relation where the foreign type holds the key.
// Empty keys default to "{owner}_id" on the foreign type and the owner's id.
func (m *Model) HasOne(foreignType, foreignKey, localKey string) *HasOne {
	if foreignKey == "" {
		foreignKey = inflect.Underscore(m.typ.name) + "_id"
	}
	if localKey == "" {
		localKey = m.typ.schema.IDs()[0]
	}
	r := newRelation(m, foreignType, foreignKey, localKey)
	if r.query != nil {
		r.query.Limit(1)
	}
	return &HasOne{r}
}

// BelongsTo declares that the owner references a foreign record. Empty keys
// default to the foreign id and "{foreign}_id" on the owner.
func (m *Model) BelongsTo(foreignType, foreignKey, localKey string) *BelongsTo {
	if localKey == "" {
		localKey = inflect.Underscore(foreignType) + "_id"
	}
	r := newRelation(m, foreignType, foreignKey, localKey)
	if r.foreign != nil && r.foreignKey == "" {
		r.foreignKey = r.foreign.schema.IDs()[0]
	}
	if r.query != nil {
		r.query.Limit(1)
	}
	return &BelongsTo{r}
}

// HasMany declares a one-to-many relation where the foreign type holds the
// key. Empty keys default like HasOne.
func (m *Model) HasMany(foreignType, foreignKey, localKey string) *HasMany {
	if foreignKey == "" {
		foreignKey = inflect.Underscore(m.typ.name) + "_id"
	}
	if localKey == "" {
		localKey = m.typ.schema.IDs()[0]
	}
	return &HasMany{newRelation(m, foreignType, foreignKey, localKey)}
}

// BelongsToMany declares a many-to-many relation through pivotType. The pivot
// holds ownerPivotKey = owner.localKey and foreignPivotKey = foreign.foreignKey.
// Empty keys default to the ids of both types and "{type}_id" pivot columns.
func (m *Model) BelongsToMany(foreignType, pivotType, foreignKey, localKey, ownerPivotKey, foreignPivotKey string) *BelongsToMany {
	if localKey == "" {
		localKey = m.typ.schema.IDs()[0]
	}
	if ownerPivotKey == "" {
		ownerPivotKey = inflect.Underscore(m.typ.name) + "_id"
	}
	if foreignPivotKey == "" {
		foreignPivotKey = inflect.Underscore(foreignType) + "_id"
	}

	r := newRelation(m, foreignType, foreignKey, localKey)
	if r.foreign != nil && r.foreignKey == "" {
		r.foreignKey = r.foreign.schema.IDs()[0]
	}

	rel := &BelongsToMany{Relation: r, ownerPivotKey: ownerPivotKey, foreignPivotKey: foreignPivotKey}
	if r.err == nil {
		pivot, err := m.typ.mgr.Type(pivotType)
		if err != nil {
			r.err = err
		}
		rel.pivot = pivot
	}
	return rel
}

// Load resolves a declared relation and memoizes its result on the instance
func (m *Model) Load(ctx context.Context, name string) (any, error) {
	if v, ok := m.related[name]; ok {
		return v, nil
	}
	factory, ok := m.typ.relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, m.typ.name, name)
	}

	result, err := factory(m).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if m.related == nil {
		m.related = make(map[string]any)
	}
	m.related[name] = result
	return result, nil
}

// Related returns a relation result loaded by Load or Query.With
func (m *Model) Related(name string) (any, bool) {
	v, ok := m.related[name]
	return v, ok
}

// single keeps a missing record an untyped nil once boxed
func single(m *Model, err error) (any, error) {
	if m == nil {
		return nil, err
	}
	return m, err
}

func idSet(ids []any) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[idString(id)] = true
	}
	return set
}

func idString(id any) string {
	v, err := value.From(id)
	if err != nil {
		return fmt.Sprint(id)
	}
	return v.String()
}
