package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// Formatter renders run results.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that buffer until the run ends.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "html"}

// New returns the formatter for name writing to w.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "html":
		return NewHTMLFormatter(HTMLWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %v)", name, Formats)
	}
}
