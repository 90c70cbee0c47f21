package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
	"github.com/abdul-hamid-achik/reqspec/packages/extract"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case map[string][]string:
		return fmt.Sprintf("{headers with %d entries}", len(val))
	}
	str := assertions.Describe(v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer   io.Writer
	verbose  bool
	noColor  bool
	outcomes []*Outcome
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

// WithNoColor disables color for this formatter only.
func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) sprint(attr color.Attribute) func(a ...any) string {
	c := color.New(attr)
	if f.noColor {
		c.DisableColor()
	}
	return c.SprintFunc()
}

// FormatFailure renders a failed chain step for a test report.
func (f *ConsoleFormatter) FormatFailure(err error) string {
	red := f.sprint(color.FgRed)
	yellow := f.sprint(color.FgYellow)
	cyan := f.sprint(color.FgCyan)

	var b strings.Builder

	var assertErr *assertions.AssertionError
	var lookupErr *extract.LookupError
	switch {
	case errors.As(err, &assertErr):
		fmt.Fprintf(&b, "%s %s", red("✗ assertion failed:"), cyan(assertErr.Path))
		if assertErr.Operator != assertions.OpEquals {
			fmt.Fprintf(&b, " %s", assertErr.Operator)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "    Expected: %s\n", formatValue(assertErr.Expected, 200))
		fmt.Fprintf(&b, "    Actual:   %s\n", formatValue(assertErr.Actual, 200))
		if assertErr.Message != "" {
			fmt.Fprintf(&b, "    %s\n", assertErr.Message)
		}
		if assertErr.Diff != "" {
			b.WriteString("    Diff:\n")
			for _, line := range strings.Split(strings.TrimRight(assertErr.Diff, "\n"), "\n") {
				switch {
				case strings.HasPrefix(line, "-"):
					line = red(line)
				case strings.HasPrefix(line, "+"):
					line = f.sprint(color.FgGreen)(line)
				}
				fmt.Fprintf(&b, "      %s\n", line)
			}
		}
	case errors.As(err, &lookupErr):
		fmt.Fprintf(&b, "%s %s\n", red("✗ cannot resolve path:"), cyan(lookupErr.Path))
		fmt.Fprintf(&b, "    Segment: %s\n", yellow(lookupErr.Segment))
		fmt.Fprintf(&b, "    Reason:  %v\n", lookupErr.Err)
	default:
		fmt.Fprintf(&b, "%s %v\n", red("Error:"), err)
	}

	return b.String()
}

func (f *ConsoleFormatter) FormatOutcome(o *Outcome) {
	f.outcomes = append(f.outcomes, o)

	green := f.sprint(color.FgGreen)
	red := f.sprint(color.FgRed)
	cyan := f.sprint(color.FgCyan)

	if o.Skipped() {
		yellow := f.sprint(color.FgYellow)
		fmt.Fprintf(f.writer, "  %s %s %s\n", yellow("-"), o.Name, yellow(fmt.Sprintf("(skipped: %s)", o.SkipReason)))
		return
	}

	if o.Err != nil {
		fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), o.Name, red(fmt.Sprintf("(%v)", o.Err)))
		return
	}

	symbol := green("✓")
	if !o.Passed() {
		symbol = red("✗")
	}
	fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, o.Name, cyan(fmt.Sprintf("(%dms)", o.Duration.Milliseconds())))

	if f.verbose {
		fmt.Fprintf(f.writer, "    %s %s -> %d\n", o.Method, o.URL, o.StatusCode)
	}

	for _, failure := range o.Failures {
		for _, line := range strings.Split(strings.TrimRight(f.FormatFailure(failure), "\n"), "\n") {
			fmt.Fprintf(f.writer, "    %s\n", line)
		}
	}

	if f.verbose && len(o.Captures) > 0 {
		names := make([]string, 0, len(o.Captures))
		for name := range o.Captures {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(f.writer, "    Captures:\n")
		for _, name := range names {
			fmt.Fprintf(f.writer, "      %s = %v\n", name, o.Captures[name])
		}
	}
}

func (f *ConsoleFormatter) Flush(total time.Duration) error {
	green := f.sprint(color.FgGreen)
	red := f.sprint(color.FgRed)

	passed, failed, skipped := tally(f.outcomes)

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Requests: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", f.sprint(color.FgYellow)(fmt.Sprintf("%d skipped", skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(f.outcomes))
	_, err := fmt.Fprintf(f.writer, "Time:     %dms\n", total.Milliseconds())
	return err
}
