package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerecord/internal/cli/ui"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
)

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [type...]",
		Short: "Show the resolved properties of model types",
		Long: `Show every property of the defined model types after defaults are
applied: ids, timestamps, mutability, nullability and validation rules.

Examples:
  activerecord schema
  activerecord schema Widget Order`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			env, err := a.environment(cmd)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				names = env.Manager.Types()
			}
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No model types defined in %s\n", env.Config.Models)
				return nil
			}

			out := cmd.OutOrStdout()
			for i, name := range names {
				t, err := a.modelType(cmd, name)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				s := t.Schema()
				ui.Header(out, fmt.Sprintf("%s (%s)", s.Name(), s.Table()), a.opts.NoColor)
				renderProperties(cmd, s, a.opts.NoColor)
			}
			return nil
		}),
	}
}

func renderProperties(cmd *cobra.Command, s *schema.Schema, noColor bool) {
	table := ui.NewTable(cmd.OutOrStdout(), noColor,
		"Property", "Type", "Mutable", "Null", "Unique", "Required", "Default", "Validate")

	for _, p := range s.Properties() {
		name := p.Name
		if s.IsID(name) {
			name += " (id)"
		}
		table.AddRow(
			name,
			string(p.Type),
			string(p.Mutable),
			yesNo(p.Null),
			yesNo(p.Unique),
			yesNo(p.Required),
			describeDefault(p),
			p.Validate,
		)
	}
	table.Render()
}

func describeDefault(p *schema.Property) string {
	switch d := p.Default.(type) {
	case nil:
		return ""
	case schema.DefaultFunc, func() any:
		return "(computed)"
	default:
		if s, err := cast.ToStringE(d); err == nil {
			return s
		}
		return strings.TrimSpace(fmt.Sprint(d))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
