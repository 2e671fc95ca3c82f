package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/fatih/color"
)

const maxDescribe = 120

// describe renders an assertion value on one line. Decoded JSON bodies are
// summarized by shape; everything else is printed and truncated.
func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("array(%d)", len(val))
	case map[string]any:
		return fmt.Sprintf("object(%d keys)", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxDescribe {
		return str[:maxDescribe] + "..."
	}
	return str
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", toMs(d))
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool

	green, red, yellow, cyan, bold func(a ...any) string
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	f.green = color.New(color.FgGreen).SprintFunc()
	f.red = color.New(color.FgRed).SprintFunc()
	f.yellow = color.New(color.FgYellow).SprintFunc()
	f.cyan = color.New(color.FgCyan).SprintFunc()
	f.bold = color.New(color.Bold).SprintFunc()
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

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	fmt.Fprintf(f.writer, "\n%s\n", f.bold("Running: "+result.Suite))
	fmt.Fprintf(f.writer, "Target:  %s\n\n", result.BaseURL)

	for _, r := range result.Results {
		f.writeCase(r)
	}

	f.writeSummary(result)
}

func (f *ConsoleFormatter) writeCase(r *runner.CaseResult) {
	switch {
	case r.Skipped:
		fmt.Fprintf(f.writer, "  %s %s", f.yellow("-"), r.Name)
		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
		}
		fmt.Fprintln(f.writer)
		return
	case r.Error != nil:
		fmt.Fprintf(f.writer, "  %s %s %s\n", f.red("x"), r.Name, f.red(fmt.Sprintf("(%v)", r.Error)))
		return
	}

	symbol := f.green("✓")
	if !r.Passed {
		symbol = f.red("✗")
	}
	fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, f.cyan("("+ms(r.Duration)+")"))

	// Failed cases always show the request so the failure can be reproduced
	if (f.verbose || !r.Passed) && r.Request != nil {
		fmt.Fprintf(f.writer, "    %s %s\n", r.Request.Method(), r.Request.URL())
	}
	if f.verbose && r.Response != nil {
		fmt.Fprintf(f.writer, "    Status: %s\n", r.Response.Status)
	}

	for _, a := range r.FailedAssertions() {
		f.writeFailure(a)
	}
}

func (f *ConsoleFormatter) writeFailure(a *assertions.Result) {
	arrow := f.red("→")

	if len(a.Violations) > 0 {
		fmt.Fprintf(f.writer, "    %s %s %s %v: %d violation(s)\n", arrow, a.Subject, a.Operator, a.Expected, len(a.Violations))
		for _, v := range a.Violations {
			fmt.Fprintf(f.writer, "      %s: %s\n", v.Pointer, v.Message)
		}
		return
	}

	fmt.Fprintf(f.writer, "    %s %s %s %s\n", arrow, a.Subject, a.Operator, describe(a.Expected))
	if a.Actual != nil {
		fmt.Fprintf(f.writer, "      Actual: %s\n", describe(a.Actual))
	}
	if a.Message != "" {
		for _, line := range strings.Split(strings.TrimRight(a.Message, "\n"), "\n") {
			fmt.Fprintf(f.writer, "      %s\n", line)
		}
	}
}

func (f *ConsoleFormatter) writeSummary(result *runner.RunResult) {
	var counts []string
	if result.Passed > 0 {
		counts = append(counts, f.green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		counts = append(counts, f.red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		counts = append(counts, f.yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	counts = append(counts, fmt.Sprintf("%d total", len(result.Results)))

	fmt.Fprintf(f.writer, "\nTests:   %s\n", strings.Join(counts, ", "))
	fmt.Fprintf(f.writer, "Time:    %s\n", ms(result.Duration))
	if l := result.Latency; l.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: min %s, p50 %s, p95 %s, max %s\n", ms(l.Min), ms(l.P50), ms(l.P95), ms(l.Max))
	}
	if result.ID != "" {
		fmt.Fprintf(f.writer, "Run:     %s\n", result.ID)
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", f.red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	fmt.Fprintf(f.writer, "%s %s\n", f.bold("apicheck"), version)
}
