package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/activerecord/pkg/orm/validation"
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates an error message with suggestions and help commands
//
// Example output:
//
//	❌ UNKNOWN MODEL TYPE: Wdget
//
//	   Did you mean: Widget?
//
//	   → See all model types: activerecord schema
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		red.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		red.Fprintf(&b, "❌ %s: %s\n", strings.ToUpper(opts.Context), opts.Problem)
	} else {
		red.Fprintf(&b, "❌ %s\n", opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// UnknownTypeError formats the error for a model type that was never defined
func UnknownTypeError(name string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "unknown model type",
		Problem:      name,
		Suggestions:  FindSimilar(name, known),
		HelpCommands: []string{"See all model types: activerecord schema"},
		NoColor:      noColor,
	})
}

// WriteValidationErrors lists rendered model errors, one per line
func WriteValidationErrors(w io.Writer, messages []validation.Message, noColor bool) {
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)
	if noColor {
		red.DisableColor()
		gray.DisableColor()
	}
	for _, m := range messages {
		red.Fprintf(w, "  ✗ %s", m.Message)
		gray.Fprintf(w, " (%s: %s)\n", m.Key, m.Code)
	}
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	fmt.Fprintln(w, green.Sprintf("✓ %s", message))
}
