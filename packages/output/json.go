package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string       `json:"runId,omitempty"`
	Suite    string       `json:"suite,omitempty"`
	BaseURL  string       `json:"baseUrl,omitempty"`
	Summary  JSONSummary  `json:"summary"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Tests    []JSONTest   `json:"tests"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

// JSONLatency is the latency summary in milliseconds
type JSONLatency struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Passed      bool            `json:"passed"`
	Skipped     bool            `json:"skipped,omitempty"`
	SkipReason  string          `json:"skipReason,omitempty"`
	Duration    float64         `json:"duration"`
	Error       string          `json:"error,omitempty"`
	Request     *JSONRequest    `json:"request,omitempty"`
	Response    *JSONResponse   `json:"response,omitempty"`
	Assertions  []JSONAssertion `json:"assertions,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	runID   string
	suite   string
	baseURL string
	latency *JSONLatency
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.runID = result.ID
	f.suite = result.Suite
	f.baseURL = result.BaseURL
	if l := result.Latency; l.Count > 0 {
		f.latency = &JSONLatency{
			Count: l.Count,
			Min:   toMs(l.Min),
			Mean:  toMs(l.Mean),
			P50:   toMs(l.P50),
			P95:   toMs(l.P95),
			P99:   toMs(l.P99),
			Max:   toMs(l.Max),
		}
	}

	for _, r := range result.Results {
		test := JSONTest{
			Name:        r.Name,
			Description: r.Description,
			Tags:        r.Tags,
			Passed:      r.Passed,
			Skipped:     r.Skipped,
			Duration:    toMs(r.Duration),
		}

		if r.SkipReason != "" {
			test.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			test.Error = r.Error.Error()
		}

		if r.Request != nil {
			test.Request = &JSONRequest{
				Method:  r.Request.Method(),
				URL:     r.Request.URL(),
				Headers: r.Request.Headers(),
			}
		}

		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Duration:   toMs(r.Response.Duration),
			}
		}

		if len(r.Assertions) > 0 {
			test.Assertions = make([]JSONAssertion, len(r.Assertions))
			for i, a := range r.Assertions {
				test.Assertions[i] = JSONAssertion{
					Subject:  a.Subject,
					Operator: a.Operator,
					Expected: a.Expected,
					Actual:   a.Actual,
					Passed:   a.Passed,
					Message:  a.Message,
				}
			}
		}

		f.results = append(f.results, test)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
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

	output := JSONOutput{
		RunID:   f.runID,
		Suite:   f.suite,
		BaseURL: f.baseURL,
		Latency: f.latency,
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Tests:    f.results,
		Duration: toMs(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
