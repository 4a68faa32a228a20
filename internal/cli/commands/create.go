package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerecord/internal/cli/ui"
	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
)

// askFunc matches survey.AskOne so prompts can be answered in tests
type askFunc func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error

func newCreateCommand(a *app) *cobra.Command {
	var (
		assignments []string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Create a record",
		Long: `Create a record through the full lifecycle: defaults, validation,
uniqueness checks and hooks. Values come from --set flags; with
--interactive every remaining settable property is prompted for.

Examples:
  activerecord create Widget --set name=Bolt --set sku=A1
  activerecord create Widget -i`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeTypes,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			t, err := a.modelType(cmd, args[0])
			if err != nil {
				return err
			}
			s := t.Schema()

			payload := make(map[string]any, len(assignments))
			for _, assignment := range assignments {
				name, raw, ok := strings.Cut(assignment, "=")
				if !ok {
					return fmt.Errorf("invalid assignment %q, expected name=value", assignment)
				}
				name = strings.TrimSpace(name)
				p, ok := s.Property(name)
				if !ok {
					return fmt.Errorf("%w: %s.%s", orm.ErrUnknownProperty, t.Name(), name)
				}
				v, err := parseInput(p, raw)
				if err != nil {
					return err
				}
				payload[name] = v
			}

			if interactive {
				if err := a.prompt(s, payload); err != nil {
					return err
				}
			}

			m := t.New()
			ok, err := m.Create(cmd.Context(), payload)
			if err != nil {
				return err
			}
			if !ok {
				cmd.PrintErrf("%s was not created:\n", t.Name())
				ui.WriteValidationErrors(cmd.ErrOrStderr(), m.Errors().All(), a.opts.NoColor)
				return fmt.Errorf("%s was not created", t.Name())
			}

			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created %s %s", t.Name(), m.IDString()), a.opts.NoColor)
			return nil
		}),
	}

	cmd.Flags().StringArrayVar(&assignments, "set", nil, "property value as name=value (repeatable)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for properties not given with --set")
	return cmd
}

// prompt asks for every settable property missing from payload. Properties
// with defaults may be left empty.
func (a *app) prompt(s *schema.Schema, payload map[string]any) error {
	for _, p := range s.Properties() {
		if _, ok := payload[p.Name]; ok || p.Mutable == schema.Immutable {
			continue
		}
		if p.HasDefault() && !p.Required {
			continue
		}

		if p.Type == schema.TypeBoolean {
			var answer bool
			if err := a.ask(&survey.Confirm{Message: p.Label() + "?"}, &answer); err != nil {
				return err
			}
			payload[p.Name] = answer
			continue
		}

		opts := []survey.AskOpt{}
		if p.Required {
			opts = append(opts, survey.WithValidator(survey.Required))
		}
		var answer string
		prompt := &survey.Input{
			Message: p.Label() + ":",
			Help:    fmt.Sprintf("%s property; %s", p.Type, describeRules(p)),
		}
		if err := a.ask(prompt, &answer, opts...); err != nil {
			return err
		}
		if answer == "" {
			continue
		}

		v, err := parseInput(p, answer)
		if err != nil {
			return err
		}
		payload[p.Name] = v
	}
	return nil
}

func (a *app) ask(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
	if a.asker != nil {
		return a.asker(p, response, opts...)
	}
	return survey.AskOne(p, response, opts...)
}

func describeRules(p *schema.Property) string {
	var rules []string
	if p.Required {
		rules = append(rules, "required")
	}
	if p.Unique {
		rules = append(rules, "unique")
	}
	if p.Validate != "" {
		rules = append(rules, p.Validate)
	}
	if len(rules) == 0 {
		return "optional"
	}
	return strings.Join(rules, ", ")
}

// parseInput turns text from the command line into a property value.
// Arrays and objects are JSON; "null" clears nullable properties.
func parseInput(p *schema.Property, raw string) (any, error) {
	if p.Null && raw == "null" {
		return nil, nil
	}

	switch p.Type {
	case schema.TypeArray, schema.TypeObject:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s must be JSON: %w", p.Name, err)
		}
		return v, nil
	case schema.TypeBoolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean: %w", p.Name, err)
		}
		return b, nil
	}
	return raw, nil
}
