package sqldb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// statement accumulates SQL text and its bind arguments
type statement struct {
	dialect *Dialect
	sql     strings.Builder
	args    []any
}

func newStatement(d *Dialect) *statement {
	return &statement{dialect: d}
}

func (s *statement) write(parts ...string) *statement {
	for _, p := range parts {
		s.sql.WriteString(p)
	}
	return s
}

// bind appends an argument and writes its placeholder
func (s *statement) bind(v value.Value) error {
	arg, err := toDriver(v)
	if err != nil {
		return err
	}
	s.args = append(s.args, arg)
	s.sql.WriteString(s.dialect.Placeholder(len(s.args)))
	return nil
}

func (s *statement) String() string { return s.sql.String() }

// sortedKeys returns field names in a stable order
func sortedKeys(fields map[string]value.Value) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// whereKey writes "a = ? AND b = ?" for a record key
func (s *statement) whereKey(key value.Row) error {
	s.write(" WHERE ")
	for i, name := range sortedKeys(key) {
		if i > 0 {
			s.write(" AND ")
		}
		s.write(s.dialect.Quote(name), " = ")
		if err := s.bind(key[name]); err != nil {
			return err
		}
	}
	return nil
}

// from writes the FROM and JOIN clauses of a query
func (s *statement) from(spec orm.Spec) {
	table := spec.Table()
	s.write(" FROM ", s.dialect.Quote(table))
	for _, j := range spec.Joins {
		joined := j.Type.Schema().Table()
		s.write(" INNER JOIN ", s.dialect.Quote(joined),
			" ON ", s.dialect.Quote(table+"."+j.Column),
			" = ", s.dialect.Quote(joined+"."+j.ForeignKey))
	}
}

// where writes the WHERE clause of a query. Unqualified columns refer to the
// queried table.
func (s *statement) where(spec orm.Spec) error {
	if len(spec.Where) == 0 {
		return nil
	}
	s.write(" WHERE ")
	for i, c := range spec.Where {
		if i > 0 {
			s.write(" AND ")
		}
		if c.IsRaw() {
			s.write("(", c.Raw, ")")
			continue
		}

		table := c.Table
		if table == "" {
			table = spec.Table()
		}
		if err := s.condition(s.dialect.Quote(table+"."+c.Column), c); err != nil {
			return err
		}
	}
	return nil
}

func (s *statement) condition(column string, c orm.Condition) error {
	switch c.Op {
	case orm.OpEq, orm.OpNe, orm.OpNeAlt:
		if c.Value.IsNull() {
			if c.Op == orm.OpEq {
				s.write(column, " IS NULL")
			} else {
				s.write(column, " IS NOT NULL")
			}
			return nil
		}
	case orm.OpIn, orm.OpNotIn:
		items := c.Value.Items()
		if c.Value.Kind() != value.KindArray {
			items = []value.Value{c.Value}
		}
		if len(items) == 0 {
			if c.Op == orm.OpIn {
				s.write("1 = 0")
			} else {
				s.write("1 = 1")
			}
			return nil
		}
		s.write(column, " ", strings.ToUpper(c.Op), " (")
		for i, item := range items {
			if i > 0 {
				s.write(", ")
			}
			if err := s.bind(item); err != nil {
				return err
			}
		}
		s.write(")")
		return nil
	case orm.OpLike:
		s.write(column, " LIKE ")
		return s.bind(c.Value)
	}

	op := c.Op
	if op == orm.OpNeAlt {
		op = orm.OpNe
	}
	s.write(column, " ", op, " ")
	return s.bind(c.Value)
}

// orderBy writes the ORDER BY clause; unqualified columns refer to the
// queried table
func (s *statement) orderBy(spec orm.Spec) {
	if len(spec.Sort) == 0 {
		return
	}
	s.write(" ORDER BY ")
	for i, clause := range spec.Sort {
		if i > 0 {
			s.write(", ")
		}
		column := clause.Column
		if !strings.Contains(column, ".") {
			column = spec.Table() + "." + column
		}
		s.write(s.dialect.Quote(column), " ", strings.ToUpper(clause.Direction))
	}
}

func (s *statement) page(spec orm.Spec) {
	s.write(fmt.Sprintf(" LIMIT %d OFFSET %d", spec.Limit, spec.Start))
}
