package commands

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerecord/internal/cli/ui"
	"github.com/conduit-lang/activerecord/pkg/orm"
)

var conditionPattern = regexp.MustCompile(`^\s*([A-Za-z_][\w.]*)\s*(>=|<=|!=|<>|=|>|<|\s(?i:not in|in|like)\s)\s*(.*?)\s*$`)

// condition is a parsed --where expression
type condition struct {
	column string
	op     string
	value  any
}

// parseCondition parses "column op value". IN lists are comma separated and
// the literal null matches missing values.
func parseCondition(expr string) (condition, error) {
	m := conditionPattern.FindStringSubmatch(expr)
	if m == nil {
		return condition{}, fmt.Errorf("invalid condition %q, expected <column><op><value>", expr)
	}

	c := condition{column: m[1], op: strings.ToLower(strings.TrimSpace(m[2]))}
	switch c.op {
	case orm.OpIn, orm.OpNotIn:
		items := []any{}
		for _, item := range strings.Split(m[3], ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		c.value = items
	default:
		if strings.EqualFold(m[3], "null") {
			c.value = nil
		} else {
			c.value = m[3]
		}
	}
	return c, nil
}

// applyConditions adds every --where expression to the query
func applyConditions(q *orm.Query, exprs []string) error {
	for _, expr := range exprs {
		c, err := parseCondition(expr)
		if err != nil {
			return err
		}
		q.WhereOp(c.column, c.op, c.value)
	}
	return q.Err()
}

func newCountCommand(a *app) *cobra.Command {
	var where []string

	cmd := &cobra.Command{
		Use:   "count <type>",
		Short: "Count the records matching conditions",
		Long: `Count the records of a model type, optionally filtered by conditions.

Examples:
  activerecord count Widget
  activerecord count Widget --where "price>=10" --where "sku in A1,B2"`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeTypes,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			t, err := a.modelType(cmd, args[0])
			if err != nil {
				return err
			}

			q := t.Query()
			if err := applyConditions(q, where); err != nil {
				return err
			}

			n, err := q.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}

	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "condition such as name=Bolt, price>=10 or \"sku in A1,B2\" (repeatable)")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		where   []string
		sortBy  string
		limit   int
		start   int
		asJSON  bool
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List the records matching conditions",
		Long: `List one page of records of a model type.

Examples:
  activerecord list Widget --sort "name asc" --limit 20
  activerecord list Widget --where "name like B%" --json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeTypes,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			t, err := a.modelType(cmd, args[0])
			if err != nil {
				return err
			}

			q := t.Query().Limit(limit).Start(start)
			if sortBy != "" {
				q.Sort(sortBy)
			}
			if err := applyConditions(q, where); err != nil {
				return err
			}

			models, err := q.Execute(cmd.Context())
			if err != nil {
				return err
			}

			names := columns
			if len(names) == 0 {
				names = t.Schema().Names()
			}

			rows := make([]*orm.Values, 0, len(models))
			for _, m := range models {
				vals, err := m.Get(cmd.Context(), names...)
				if err != nil {
					return err
				}
				rows = append(rows, vals)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			table := ui.NewTable(cmd.OutOrStdout(), a.opts.NoColor, names...)
			for _, vals := range rows {
				cells := make([]string, len(names))
				for i, name := range names {
					cells[i] = formatValue(vals.Value(name))
				}
				table.AddRow(cells...)
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "condition such as name=Bolt (repeatable)")
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "sort expression such as \"name asc, id desc\"")
	cmd.Flags().IntVarP(&limit, "limit", "l", orm.DefaultLimit, "page size")
	cmd.Flags().IntVar(&start, "start", 0, "records to skip")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "properties to show (default all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newFindCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "find <type> <id...>",
		Short: "Show a record by its id values",
		Long: `Load a record by its id values, given in id property order.

Examples:
  activerecord find Widget 42
  activerecord find Membership 3 9 --json`,
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: a.completeTypes,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			t, err := a.modelType(cmd, args[0])
			if err != nil {
				return err
			}

			ids := make([]any, len(args)-1)
			for i, id := range args[1:] {
				ids[i] = id
			}

			m, err := t.Find(cmd.Context(), ids...)
			if err != nil {
				return err
			}

			attrs, err := m.Attributes(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(attrs)
			}

			ui.Header(cmd.OutOrStdout(), fmt.Sprintf("%s %s", t.Name(), m.IDString()), a.opts.NoColor)
			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), a.opts.NoColor)
			for name, v := range attrs.All() {
				kv.AddRow(name, formatValue(v))
			}
			kv.Render()
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

// formatValue renders a property value for a table cell
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return x.Format(time.RFC3339)
	case []any, map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
