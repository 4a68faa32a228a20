package orm

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Query limits
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Sort directions
const (
	Asc  = "asc"
	Desc = "desc"
)

// Condition operators
const (
	OpEq    = "="
	OpNe    = "!="
	OpNeAlt = "<>"
	OpLt    = "<"
	OpLte   = "<="
	OpGt    = ">"
	OpGte   = ">="
	OpIn    = "in"
	OpNotIn = "not in"
	OpLike  = "like"
)

var operators = map[string]bool{
	OpEq: true, OpNe: true, OpNeAlt: true, OpLt: true, OpLte: true,
	OpGt: true, OpGte: true, OpIn: true, OpNotIn: true, OpLike: true,
}

var sortClause = regexp.MustCompile(`(?i)^([a-z_][a-z0-9_]*(?:\.[a-z_][a-z0-9_]*)?)\s+(asc|desc)$`)

// Condition is one where clause. Raw conditions carry only Raw and are passed
// to the driver verbatim; escaping is the caller's responsibility.
type Condition struct {
	// Table qualifies Column with a joined table; empty means the queried table
	Table  string
	Column string
	Op     string
	Value  value.Value
	Raw    string
}

// IsRaw reports whether the condition is a raw string
func (c Condition) IsRaw() bool {
	return c.Raw != ""
}

// SortClause orders results by a column
type SortClause struct {
	Column    string
	Direction string
}

// JoinClause joins another model type on queried.Column = joined.ForeignKey
type JoinClause struct {
	Type       *ModelType
	Column     string
	ForeignKey string
}

// Spec is the driver-facing snapshot of a query
type Spec struct {
	Type  *ModelType
	Where []Condition
	Sort  []SortClause
	Joins []JoinClause
	Limit int
	Start int
}

// Table returns the queried table
func (s Spec) Table() string {
	return s.Type.Schema().Table()
}

// Query builds and runs a query over one model type
type Query struct {
	typ   *ModelType
	where []Condition
	sort  []SortClause
	joins []JoinClause
	limit int
	start int
	with  []string
	err   error
}

func newQuery(t *ModelType) *Query {
	return &Query{typ: t, limit: DefaultLimit}
}

// Type returns the queried model type
func (q *Query) Type() *ModelType { return q.typ }

// Err returns the first error recorded while building the query
func (q *Query) Err() error { return q.err }

// Spec returns the driver-facing snapshot of the query
func (q *Query) Spec() Spec {
	return Spec{
		Type:  q.typ,
		Where: append([]Condition(nil), q.where...),
		Sort:  append([]SortClause(nil), q.sort...),
		Joins: append([]JoinClause(nil), q.joins...),
		Limit: q.limit,
		Start: q.start,
	}
}

// Clone returns an independent copy of the query
func (q *Query) Clone() *Query {
	c := *q
	c.where = append([]Condition(nil), q.where...)
	c.sort = append([]SortClause(nil), q.sort...)
	c.joins = append([]JoinClause(nil), q.joins...)
	c.with = append([]string(nil), q.with...)
	return &c
}

// Where adds equality conditions. Keys may be qualified as "table.column".
// Keys are applied in sorted order.
func (q *Query) Where(conditions map[string]any) *Query {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		q.WhereOp(k, OpEq, conditions[k])
	}
	return q
}

// WhereOp adds a (column, operator, value) condition
func (q *Query) WhereOp(column, op string, v any) *Query {
	op = strings.ToLower(strings.TrimSpace(op))
	if !operators[op] {
		q.fail(fmt.Errorf("unsupported operator %q on %s", op, column))
		return q
	}

	val, err := value.From(v)
	if err != nil {
		q.fail(fmt.Errorf("condition on %s: %w", column, err))
		return q
	}

	table, col := splitColumn(column)
	if table == "" && (op == OpIn || op == OpNotIn) {
		val = q.coerceItems(col, val)
	} else if table == "" {
		if coerced, err := q.typ.toValue(col, val); err == nil {
			val = coerced
		}
	}

	q.where = append(q.where, Condition{Table: table, Column: col, Op: op, Value: val})
	return q
}

// WhereRaw adds a raw condition passed through to the driver verbatim
func (q *Query) WhereRaw(condition string) *Query {
	if strings.TrimSpace(condition) != "" {
		q.where = append(q.where, Condition{Raw: condition})
	}
	return q
}

// Sort parses "column direction" clauses separated by commas. Clauses that do
// not match are dropped.
func (q *Query) Sort(expr string) *Query {
	for _, part := range strings.Split(expr, ",") {
		match := sortClause.FindStringSubmatch(strings.TrimSpace(part))
		if match == nil {
			continue
		}
		q.sort = append(q.sort, SortClause{Column: match[1], Direction: strings.ToLower(match[2])})
	}
	return q
}

// Limit sets the page size, clamped to [1, MaxLimit]
func (q *Query) Limit(n int) *Query {
	switch {
	case n < 1:
		n = 1
	case n > MaxLimit:
		n = MaxLimit
	}
	q.limit = n
	return q
}

// Start sets the offset; negative values become zero
func (q *Query) Start(n int) *Query {
	if n < 0 {
		n = 0
	}
	q.start = n
	return q
}

// Join joins the named model type on queried.column = joined.foreignKey
func (q *Query) Join(foreignType, column, foreignKey string) *Query {
	ft, err := q.typ.mgr.Type(foreignType)
	if err != nil {
		q.fail(err)
		return q
	}
	q.joins = append(q.joins, JoinClause{Type: ft, Column: column, ForeignKey: foreignKey})
	return q
}

// With eager loads the named relations on every result
func (q *Query) With(relations ...string) *Query {
	for _, name := range relations {
		if !q.typ.HasRelation(name) {
			q.fail(fmt.Errorf("%w: %s.%s", ErrUnknownRelation, q.typ.name, name))
			return q
		}
	}
	q.with = append(q.with, relations...)
	return q
}

// Execute runs the query and hydrates one model per row
func (q *Query) Execute(ctx context.Context) ([]*Model, error) {
	if q.err != nil {
		return nil, q.err
	}

	rows, err := q.typ.mgr.driver.QueryModels(ctx, q)
	if err != nil {
		q.typ.logger.Error("query failed", zap.Error(err))
		return nil, driverError("query", q.typ.name, err)
	}

	models := make([]*Model, 0, len(rows))
	for _, row := range rows {
		models = append(models, q.typ.Hydrate(row))
	}

	for _, name := range q.with {
		for _, m := range models {
			if _, err := m.Load(ctx, name); err != nil {
				return nil, err
			}
		}
	}

	return models, nil
}

// First returns the first match, nil when nothing matches
func (q *Query) First(ctx context.Context) (*Model, error) {
	models, err := q.FirstN(ctx, 1)
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

// FirstN returns up to n matches
func (q *Query) FirstN(ctx context.Context, n int) ([]*Model, error) {
	return q.Clone().Limit(n).Execute(ctx)
}

// All iterates every match, fetching one page of Limit rows at a time. Each
// call starts again from the query's offset.
func (q *Query) All(ctx context.Context) iter.Seq2[*Model, error] {
	return func(yield func(*Model, error) bool) {
		page := q.Clone()
		for {
			models, err := page.Execute(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, m := range models {
				if !yield(m, nil) {
					return
				}
			}
			if len(models) < page.limit {
				return
			}
			page.start += page.limit
		}
	}
}

// Count returns the number of matching records, ignoring limit and start
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	n, err := q.typ.mgr.driver.TotalRecords(ctx, q)
	if err != nil {
		q.typ.logger.Error("count failed", zap.Error(err))
		return 0, driverError("count", q.typ.name, err)
	}
	return n, nil
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

func (q *Query) coerceItems(column string, list value.Value) value.Value {
	if list.Kind() != value.KindArray {
		list = value.Array(list)
	}
	items := list.Items()
	out := make([]value.Value, len(items))
	for i, item := range items {
		if coerced, err := q.typ.toValue(column, item); err == nil {
			out[i] = coerced
		} else {
			out[i] = item
		}
	}
	return value.Array(out...)
}

func splitColumn(column string) (string, string) {
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[:i], column[i+1:]
	}
	return "", column
}
