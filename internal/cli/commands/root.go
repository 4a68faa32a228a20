package commands

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerecord/internal/cli/ui"
	"github.com/conduit-lang/activerecord/pkg/orm"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// app carries the global flags and the lazily opened environment
type app struct {
	opts   Options
	opener Opener
	asker  askFunc
	env    *Environment
}

// environment opens the environment on first use
func (a *app) environment(cmd *cobra.Command) (*Environment, error) {
	if a.env != nil {
		return a.env, nil
	}
	env, err := a.opener(cmd.Context(), &a.opts)
	if err != nil {
		return nil, err
	}
	a.env = env
	return env, nil
}

func (a *app) close() error {
	if a.env == nil {
		return nil
	}
	err := a.env.Close()
	a.env = nil
	return err
}

// run wraps a command body so the environment is closed once it returns
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if cerr := a.close(); err == nil {
			err = cerr
		}
		return err
	}
}

// modelType resolves a type argument, suggesting close names when unknown
func (a *app) modelType(cmd *cobra.Command, name string) (*orm.ModelType, error) {
	env, err := a.environment(cmd)
	if err != nil {
		return nil, err
	}
	t, err := env.Manager.Type(name)
	if errors.Is(err, orm.ErrUnknownType) {
		return nil, &formattedError{err: err, text: ui.UnknownTypeError(name, env.Manager.Types(), a.opts.NoColor)}
	}
	return t, err
}

// formattedError carries an error already rendered for the terminal
type formattedError struct {
	err  error
	text string
}

func (e *formattedError) Error() string { return e.text }

func (e *formattedError) Unwrap() error { return e.err }

// completeTypes completes the model type argument
func (a *app) completeTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	env, err := a.environment(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer a.close()
	return env.Manager.Types(), cobra.ShellCompDirectiveNoFileComp
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{opener: Open})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "activerecord",
		Short: "Inspect and edit records through their model definitions",
		Long: color.CyanString(`activerecord - model records from the command line

Model types are read from a YAML definitions file and stored through
PostgreSQL, MySQL, SQLite or an in-process store.

Features:
  • Validated, permission-checked create lifecycle
  • Queries with conditions, sorting and paging
  • Optional memory or Redis record cache`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.opts.NoColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.opts.ConfigPath, "config", "c", "", "config file (default ./activerecord.yaml)")
	flags.BoolVarP(&a.opts.Verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&a.opts.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newSchemaCommand(a))
	rootCmd.AddCommand(newFindCommand(a))
	rootCmd.AddCommand(newListCommand(a))
	rootCmd.AddCommand(newCountCommand(a))
	rootCmd.AddCommand(newCreateCommand(a))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the activerecord version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			kv.AddRow("activerecord version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", goVer)
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

// reportError prints err once, as is when it is already formatted
func reportError(w io.Writer, err error) {
	var formatted *formattedError
	if errors.As(err, &formatted) {
		fmt.Fprint(w, formatted.text)
		return
	}
	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprintf(w, "Error: %v\n", err)
}
