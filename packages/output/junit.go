package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one run of a suite against one base URL.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	ID         string          `xml:"id,attr,omitempty"`
	Hostname   string          `xml:"hostname,attr,omitempty"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr,omitempty"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitProperty is a name/value pair describing the run.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitTestCase represents a single case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitFailure `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure is the body of a <failure> or <error> element.
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped case
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// Failure types written to the type attribute.
const (
	junitSchemaViolation = "SchemaViolation"
	junitAssertionError  = "AssertionError"
	junitTransportError  = "TransportError"
)

// JUnitFormatter formats run results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	suite := JUnitTestSuite{
		Name:       result.Suite,
		ID:         result.ID,
		Hostname:   hostOf(result.BaseURL),
		Tests:      len(result.Results),
		Failures:   result.Failed,
		Skipped:    result.Skipped,
		Time:       result.Duration.Seconds(),
		Timestamp:  result.Started.UTC().Format(time.RFC3339),
		Properties: runProperties(result),
		TestCases:  make([]JUnitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := JUnitTestCase{
			Name:      r.Name,
			ClassName: className(result.Suite, r.Tags),
			Time:      r.Duration.Seconds(),
			SystemOut: exchange(r),
		}

		switch {
		case r.Skipped:
			tc.Skipped = &JUnitSkipped{Message: r.SkipReason}
		case r.Error != nil:
			// Transport errors are counted as errors, not failures
			suite.Errors++
			suite.Failures--
			tc.Error = &JUnitFailure{
				Message: r.Error.Error(),
				Type:    junitTransportError,
			}
		case !r.Passed:
			tc.Failure = caseFailure(r)
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suite)
}

// runProperties describes the run: its ID, target and latency summary.
func runProperties(result *runner.RunResult) []JUnitProperty {
	props := []JUnitProperty{
		{Name: "run.id", Value: result.ID},
		{Name: "base.url", Value: result.BaseURL},
	}
	if l := result.Latency; l.Count > 0 {
		props = append(props,
			JUnitProperty{Name: "latency.count", Value: strconv.FormatInt(l.Count, 10)},
			JUnitProperty{Name: "latency.min.ms", Value: msValue(l.Min)},
			JUnitProperty{Name: "latency.p50.ms", Value: msValue(l.P50)},
			JUnitProperty{Name: "latency.p95.ms", Value: msValue(l.P95)},
			JUnitProperty{Name: "latency.p99.ms", Value: msValue(l.P99)},
			JUnitProperty{Name: "latency.max.ms", Value: msValue(l.Max)},
		)
	}
	return props
}

func msValue(d time.Duration) string {
	return strconv.FormatFloat(toMs(d), 'f', 1, 64)
}

// caseFailure renders the failed assertions of r. Schema violations are
// listed one per line by JSON pointer.
func caseFailure(r *runner.CaseResult) *JUnitFailure {
	failed := r.FailedAssertions()
	failure := &JUnitFailure{
		Message: fmt.Sprintf("%d assertion(s) failed", len(failed)),
		Type:    junitAssertionError,
	}

	var sb strings.Builder
	for _, a := range failed {
		if len(a.Violations) > 0 {
			failure.Type = junitSchemaViolation
			writeViolations(&sb, a)
			continue
		}
		fmt.Fprintf(&sb, "%s %s: expected %s, got %s\n", a.Subject, a.Operator, describe(a.Expected), describe(a.Actual))
		if a.Message != "" {
			fmt.Fprintf(&sb, "  %s\n", strings.ReplaceAll(strings.TrimRight(a.Message, "\n"), "\n", "\n  "))
		}
	}
	failure.Content = sb.String()
	return failure
}

func writeViolations(sb *strings.Builder, a *assertions.Result) {
	fmt.Fprintf(sb, "%s %s %v: %d violation(s)\n", a.Subject, a.Operator, a.Expected, len(a.Violations))
	for _, v := range a.Violations {
		fmt.Fprintf(sb, "  %s [%s] %s\n", v.Pointer, v.Type, v.Message)
	}
}

// exchange summarizes the request and response of an executed case.
func exchange(r *runner.CaseResult) string {
	if r.Request == nil {
		return ""
	}
	line := r.Request.Method() + " " + r.Request.URL()
	if r.Response != nil {
		line += fmt.Sprintf("\n%s in %s", r.Response.Status, ms(r.Response.Duration))
	}
	return line
}

// className groups cases under the suite by their first tag, e.g.
// "apicheck.rest_countries.schema".
func className(suite string, tags []string) string {
	name := "apicheck"
	if suite != "" {
		name += "." + identifier(suite)
	}
	if len(tags) > 0 {
		name += "." + identifier(tags[0])
	}
	return name
}

func identifier(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func hostOf(baseURL string) string {
	rest := baseURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := JUnitTestSuites{
		Name:       "apicheck",
		Time:       totalDuration.Seconds(),
		TestSuites: f.testSuites,
	}
	for _, suite := range f.testSuites {
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.Skipped += suite.Skipped
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(f.writer, "\n")
	return err
}
