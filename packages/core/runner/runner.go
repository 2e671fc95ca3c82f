package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/stats"
	"github.com/google/uuid"
)

const (
	// DefaultConcurrency is the default number of concurrent requests in parallel mode
	DefaultConcurrency = 5
	// DefaultTimeout is the per-request timeout when none is configured
	DefaultTimeout = 30 * time.Second
)

// ErrNoBuilder is reported for a case that cannot produce a request.
var ErrNoBuilder = errors.New("case has no request builder")

type Runner struct {
	client    *http.Client
	config    *Config
	mu        sync.Mutex
	listeners []Listener
}

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	NoFollowRedirect bool
	RateLimit        float64
	Headers          map[string]string
	Bail             bool
	NameFilter       string
	TagsFilter       []string
	Parallel         bool
	Concurrency      int
}

// Env is what a case sees when it builds its request.
type Env struct {
	BaseURL string
	Client  *http.Client
}

// Case is one named HTTP check.
type Case struct {
	Name        string
	Description string
	Tags        []string
	Skip        string
	Build       func(env *Env) http.Requester
	Assertions  []*assertions.Assertion
}

type Suite struct {
	Name  string
	Cases []*Case
}

type RunResult struct {
	ID       string
	Suite    string
	BaseURL  string
	Started  time.Time
	Results  []*CaseResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Latency  stats.Summary
}

// Success reports whether no case failed.
func (r *RunResult) Success() bool {
	return r.Failed == 0
}

type CaseResult struct {
	Name        string
	Description string
	Tags        []string
	Passed      bool
	Skipped     bool
	SkipReason  string
	Duration    time.Duration
	Request     http.Requester
	Response    *http.Response
	Assertions  []*assertions.Result
	Error       error
}

// FailedAssertions returns the assertions that did not hold.
func (r *CaseResult) FailedAssertions() []*assertions.Result {
	var failed []*assertions.Result
	for _, a := range r.Assertions {
		if !a.Passed {
			failed = append(failed, a)
		}
	}
	return failed
}

func NewRunner(cfg *Config, listeners ...Listener) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	clientOpts := []http.ClientOption{
		http.WithTimeout(timeout),
		http.WithFollowRedirects(!cfg.NoFollowRedirect),
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.Headers))
	}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, http.WithRateLimit(cfg.RateLimit))
	}

	return &Runner{
		client:    http.NewClient(clientOpts...),
		config:    cfg,
		listeners: listeners,
	}
}

// AddListener attaches a listener for subsequent runs.
func (r *Runner) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Run executes every case of the suite against the configured base URL.
func (r *Runner) Run(ctx context.Context, suite *Suite) (*RunResult, error) {
	if suite == nil {
		return nil, errors.New("nil suite")
	}
	if err := http.ValidateURL(r.config.BaseURL); err != nil {
		return nil, fmt.Errorf("base URL: %w", err)
	}

	result := &RunResult{
		ID:      uuid.NewString(),
		Suite:   suite.Name,
		BaseURL: r.config.BaseURL,
		Started: time.Now(),
	}
	env := &Env{BaseURL: r.config.BaseURL, Client: r.client}
	latency := stats.NewRecorder()

	r.emit(func(l Listener) { l.OnSuiteStart(suite) })

	// Each case owns the slot at its suite position so results keep suite
	// order whether a case was skipped, run sequentially or run in parallel.
	slots := make([]*CaseResult, len(suite.Cases))
	var runnable []int
	for i, c := range suite.Cases {
		if reason, skip := r.skipReason(c); skip {
			cr := &CaseResult{
				Name:        c.Name,
				Description: c.Description,
				Tags:        c.Tags,
				Skipped:     true,
				SkipReason:  reason,
			}
			slots[i] = cr
			r.emit(func(l Listener) { l.OnTestSkipped(cr) })
			continue
		}
		runnable = append(runnable, i)
	}

	if r.config.Parallel {
		r.runParallel(ctx, env, suite.Cases, runnable, slots)
	} else {
		for _, i := range runnable {
			cr := r.runCase(ctx, env, suite.Cases[i])
			slots[i] = cr
			if !cr.Passed && !cr.Skipped && r.config.Bail {
				break
			}
		}
	}

	// Cases left unrun by bail have no slot filled and no result.
	for _, cr := range slots {
		if cr != nil {
			result.add(cr, latency)
		}
	}

	result.Duration = time.Since(result.Started)
	result.Latency = latency.Summary()

	r.emit(func(l Listener) { l.OnSuiteFinish(result) })
	return result, nil
}

func (res *RunResult) add(cr *CaseResult, latency *stats.Recorder) {
	res.Results = append(res.Results, cr)
	switch {
	case cr.Skipped:
		res.Skipped++
	case cr.Passed:
		res.Passed++
	default:
		res.Failed++
	}
	if cr.Response != nil {
		latency.Record(cr.Duration)
	}
}

func (r *Runner) runParallel(ctx context.Context, env *Env, cases []*Case, runnable []int, slots []*CaseResult) {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, i := range runnable {
		wg.Add(1)
		sem <- struct{}{} // acquire semaphore

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			slots[idx] = r.runCase(ctx, env, cases[idx])
		}(i)
	}

	wg.Wait()
}

func (r *Runner) skipReason(c *Case) (string, bool) {
	if r.config.NameFilter != "" && !matchesPattern(c.Name, r.config.NameFilter) {
		return "filtered out", true
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(c.Tags, r.config.TagsFilter) {
		return "filtered out", true
	}
	if c.Skip != "" {
		return c.Skip, true
	}
	return "", false
}

func (r *Runner) runCase(ctx context.Context, env *Env, c *Case) *CaseResult {
	result := &CaseResult{
		Name:        c.Name,
		Description: c.Description,
		Tags:        c.Tags,
	}

	if err := ctx.Err(); err != nil {
		result.Skipped = true
		result.SkipReason = "cancelled"
		r.emit(func(l Listener) { l.OnTestSkipped(result) })
		return result
	}

	r.emit(func(l Listener) { l.OnTestStart(c) })

	if c.Build == nil {
		result.Error = ErrNoBuilder
		r.emit(func(l Listener) { l.OnTestFailure(result) })
		return result
	}

	req := c.Build(env)
	result.Request = req

	start := time.Now()
	resp, err := req.Execute(ctx)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		r.emit(func(l Listener) { l.OnTestFailure(result) })
		return result
	}
	result.Response = resp

	if len(c.Assertions) > 0 {
		result.Assertions = assertions.EvaluateAll(resp, c.Assertions)
		result.Passed = len(result.FailedAssertions()) == 0
	} else {
		result.Passed = resp.IsSuccess()
	}

	if result.Passed {
		r.emit(func(l Listener) { l.OnTestSuccess(result) })
	} else {
		r.emit(func(l Listener) { l.OnTestFailure(result) })
	}
	return result
}

// emit delivers an event to every listener. Calls are serialized so
// listeners need no locking of their own in parallel mode.
func (r *Runner) emit(fn func(Listener)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		fn(l)
	}
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
