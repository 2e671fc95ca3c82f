package output

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/stats"
)

//go:embed templates/report.html.tmpl
var htmlTemplate string

// maxBodyPreview bounds the response body shown per test.
const maxBodyPreview = 4096

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	Suite          string
	RunID          string
	BaseURL        string
	Summary        HTMLSummary
	Tests          []HTMLTest
	Duration       float64
	Time           string
	Latency        *HTMLLatency
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// HTMLSummary represents the test summary for HTML output
type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// HTMLLatency is the latency summary in milliseconds
type HTMLLatency struct {
	Min, P50, P95, P99, Max, Mean float64
}

// HTMLTest represents a single test result for HTML output
type HTMLTest struct {
	Name        string
	Description string
	Tags        []string
	Passed      bool
	Skipped     bool
	SkipReason  string
	Duration    float64
	Error       string
	StatusClass string
	Request     *HTMLRequest
	Response    *HTMLResponse
	Assertions  []HTMLAssertion
}

// HTMLRequest represents request details for HTML output
type HTMLRequest struct {
	Method  string
	URL     string
	Headers []HTMLHeader
}

// HTMLResponse represents response details for HTML output
type HTMLResponse struct {
	StatusCode int
	Status     string
	Headers    []HTMLHeader
	Duration   float64
	Body       string
	Truncated  bool
}

// HTMLHeader is one header line, kept ordered for stable reports
type HTMLHeader struct {
	Name  string
	Value string
}

// HTMLAssertion represents an assertion result for HTML output
type HTMLAssertion struct {
	Subject     string
	Operator    string
	ExpectedStr string
	ActualStr   string
	Passed      bool
	Message     string
}

// HTMLFormatter formats test results as HTML
type HTMLFormatter struct {
	writer  io.Writer
	results []HTMLTest
	version string
	suite   string
	runID   string
	baseURL string
	latency *HTMLLatency
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer:  os.Stdout,
		results: make([]HTMLTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

func sortedHeaders(h map[string]string) []HTMLHeader {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]HTMLHeader, len(names))
	for i, k := range names {
		out[i] = HTMLHeader{Name: k, Value: h[k]}
	}
	return out
}

func toMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// addCase converts one case result into its report entry.
func (f *HTMLFormatter) addCase(r *runner.CaseResult) {
	test := HTMLTest{
		Name:        r.Name,
		Description: r.Description,
		Tags:        r.Tags,
		Passed:      r.Passed,
		Skipped:     r.Skipped,
		Duration:    toMs(r.Duration),
	}

	// Set status class for CSS
	if r.Skipped {
		test.StatusClass = "skipped"
	} else if r.Passed {
		test.StatusClass = "passed"
	} else {
		test.StatusClass = "failed"
	}

	if r.SkipReason != "" {
		test.SkipReason = r.SkipReason
	}

	if r.Error != nil {
		test.Error = r.Error.Error()
	}

	if r.Request != nil {
		test.Request = &HTMLRequest{
			Method:  r.Request.Method(),
			URL:     r.Request.URL(),
			Headers: sortedHeaders(r.Request.Headers()),
		}
	}

	if r.Response != nil {
		body := r.Response.BodyString()
		truncated := len(body) > maxBodyPreview
		if truncated {
			body = body[:maxBodyPreview]
		}
		test.Response = &HTMLResponse{
			StatusCode: r.Response.StatusCode,
			Status:     r.Response.Status,
			Headers:    sortedHeaders(r.Response.Headers),
			Duration:   toMs(r.Response.Duration),
			Body:       body,
			Truncated:  truncated,
		}
	}

	for _, a := range r.Assertions {
		test.Assertions = append(test.Assertions, HTMLAssertion{
			Subject:     a.Subject,
			Operator:    a.Operator,
			ExpectedStr: describe(a.Expected),
			ActualStr:   describe(a.Actual),
			Passed:      a.Passed,
			Message:     a.Message,
		})
	}

	f.results = append(f.results, test)
}

// setRun records run-level details shown in the report header.
func (f *HTMLFormatter) setRun(result *runner.RunResult) {
	f.suite = result.Suite
	f.runID = result.ID
	f.baseURL = result.BaseURL
	if result.Latency.Count > 0 {
		f.latency = latencyMs(result.Latency)
	}
}

func latencyMs(s stats.Summary) *HTMLLatency {
	return &HTMLLatency{
		Min:  toMs(s.Min),
		P50:  toMs(s.P50),
		P95:  toMs(s.P95),
		P99:  toMs(s.P99),
		Max:  toMs(s.Max),
		Mean: toMs(s.Mean),
	}
}

// FormatResult accumulates a test result
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	f.setRun(result)
	for _, r := range result.Results {
		f.addCase(r)
	}
}

// FormatError handles errors (no-op for HTML, errors are in test results)
func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, t := range f.results {
		if t.Skipped {
			skipped++
		} else if t.Passed {
			passed++
		} else {
			failed++
		}
	}

	total := len(f.results)
	var passedPct, failedPct, skippedPct float64
	if total > 0 {
		passedPct = float64(passed) / float64(total) * 100
		failedPct = float64(failed) / float64(total) * 100
		skippedPct = float64(skipped) / float64(total) * 100
	}

	output := HTMLOutput{
		Version: f.version,
		Suite:   f.suite,
		RunID:   f.runID,
		BaseURL: f.baseURL,
		Summary: HTMLSummary{
			Total:   total,
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Tests:          f.results,
		Duration:       toMs(totalDuration),
		Time:           time.Now().Format("2006-01-02 15:04:05"),
		Latency:        f.latency,
		PassedPercent:  passedPct,
		FailedPercent:  failedPct,
		SkippedPercent: skippedPct,
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}

// WriteReport renders result as an HTML report at path, creating parent directories.
func WriteReport(path, version string, result *runner.RunResult) error {
	return writeFile(path, func(w io.Writer) error {
		f := NewHTMLFormatter(HTMLWithWriter(w))
		f.FormatHeader(version)
		f.FormatResult(result)
		return f.Flush(result.Duration)
	})
}

func writeFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := render(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
