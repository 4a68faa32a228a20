package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// joined is one candidate result: the queried row plus the rows of every
// joined table, keyed by table name
type joined struct {
	main   value.Row
	tables map[string]value.Row
}

func (j joined) column(table, column string) value.Value {
	row := j.main
	if table != "" {
		row = j.tables[table]
	}
	if row == nil {
		return value.Null()
	}
	v, ok := row[column]
	if !ok {
		return value.Null()
	}
	return v
}

func (d *Driver) match(spec orm.Spec) ([]joined, error) {
	for _, c := range spec.Where {
		if c.IsRaw() {
			return nil, fmt.Errorf("%w: %q", ErrRawCondition, c.Raw)
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	main := spec.Table()
	candidates := []joined{}
	if t, ok := d.tables[main]; ok {
		for _, row := range t.rows {
			candidates = append(candidates, joined{main: row, tables: map[string]value.Row{main: row}})
		}
	}

	for _, j := range spec.Joins {
		other := j.Type.Schema().Table()
		var rows []value.Row
		if t, ok := d.tables[other]; ok {
			rows = t.rows
		}

		var next []joined
		for _, c := range candidates {
			left := c.column("", j.Column)
			for _, row := range rows {
				right, ok := row[j.ForeignKey]
				if !ok || left.IsNull() || !value.Equal(left, right) {
					continue
				}
				tables := make(map[string]value.Row, len(c.tables)+1)
				for k, v := range c.tables {
					tables[k] = v
				}
				tables[other] = row
				next = append(next, joined{main: c.main, tables: tables})
			}
		}
		candidates = next
	}

	out := candidates[:0]
	for _, c := range candidates {
		ok, err := matchesAll(c, spec.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func matchesAll(row joined, conditions []orm.Condition) (bool, error) {
	for _, c := range conditions {
		ok, err := evaluate(row.column(c.Table, c.Column), c.Op, c.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evaluate(left value.Value, op string, right value.Value) (bool, error) {
	switch op {
	case orm.OpEq:
		return value.Equal(left, right), nil
	case orm.OpNe, orm.OpNeAlt:
		return !value.Equal(left, right), nil
	case orm.OpLt, orm.OpLte, orm.OpGt, orm.OpGte:
		cmp, ok := value.Compare(left, right)
		if !ok || left.IsNull() {
			return false, nil
		}
		switch op {
		case orm.OpLt:
			return cmp < 0, nil
		case orm.OpLte:
			return cmp <= 0, nil
		case orm.OpGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case orm.OpIn, orm.OpNotIn:
		found := false
		for _, item := range right.Items() {
			if value.Equal(left, item) {
				found = true
				break
			}
		}
		return found == (op == orm.OpIn), nil
	case orm.OpLike:
		if left.Kind() != value.KindString {
			return false, nil
		}
		re, err := likePattern(right.Str())
		if err != nil {
			return false, err
		}
		return re.MatchString(left.Str()), nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

// likePattern translates a SQL LIKE pattern: % matches any run, _ one character
func likePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// sortRows orders rows by the sort clauses; nulls sort first
func sortRows(rows []joined, spec orm.Spec) {
	if len(spec.Sort) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range spec.Sort {
			table, column := split(s.Column)
			a, b := rows[i].column(table, column), rows[j].column(table, column)

			cmp := 0
			switch {
			case a.IsNull() && b.IsNull():
			case a.IsNull():
				cmp = -1
			case b.IsNull():
				cmp = 1
			default:
				cmp, _ = value.Compare(a, b)
			}
			if cmp == 0 {
				continue
			}
			if s.Direction == orm.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func split(column string) (string, string) {
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[:i], column[i+1:]
	}
	return "", column
}
