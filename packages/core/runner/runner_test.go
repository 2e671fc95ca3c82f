package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	apihttp "github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCase(name, endpoint string, asserts ...*assertions.Assertion) *Case {
	return &Case{
		Name: name,
		Build: func(env *Env) apihttp.Requester {
			return apihttp.NewGetRequest(env.Client, env.BaseURL, endpoint)
		},
		Assertions: asserts,
	}
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) OnSuiteStart(s *Suite)       { l.add("suite:" + s.Name) }
func (l *recordingListener) OnTestStart(c *Case)         { l.add("start:" + c.Name) }
func (l *recordingListener) OnTestSuccess(r *CaseResult) { l.add("pass:" + r.Name) }
func (l *recordingListener) OnTestFailure(r *CaseResult) { l.add("fail:" + r.Name) }
func (l *recordingListener) OnTestSkipped(r *CaseResult) { l.add("skip:" + r.Name) }
func (l *recordingListener) OnSuiteFinish(r *RunResult)  { l.add("finish:" + r.Suite) }

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
	})

	t.Run("with custom config", func(t *testing.T) {
		cfg := &Config{
			BaseURL:     "http://example.com",
			Parallel:    true,
			Concurrency: 10,
		}
		r := NewRunner(cfg)
		assert.NotNil(t, r)
		assert.True(t, r.config.Parallel)
		assert.Equal(t, 10, r.config.Concurrency)
	})
}

func TestRunner_Run(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "ok", "items": [1, 2, 3]}`))
	}))
	defer server.Close()

	suite := &Suite{Name: "basic", Cases: []*Case{
		getCase("items", "/test",
			assertions.Expect("status", assertions.OpEquals, 200),
			assertions.Expect("body.status", assertions.OpEquals, "ok"),
			assertions.Expect("body.items", assertions.OpLength, 3),
		),
	}}

	r := NewRunner(&Config{BaseURL: server.URL})
	result, err := r.Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Passed)
	assert.True(t, result.Success())
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "basic", result.Suite)
	assert.Equal(t, int64(1), result.Latency.Count)
	assert.Equal(t, server.URL+"/test", result.Results[0].Request.URL())
}

func TestRunner_Run_WithFailingAssertion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	suite := &Suite{Cases: []*Case{
		getCase("missing", "/test", assertions.Expect("status", assertions.OpEquals, 200)),
	}}

	result, err := NewRunner(&Config{BaseURL: server.URL}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Success())

	failed := result.Results[0].FailedAssertions()
	require.Len(t, failed, 1)
	assert.Equal(t, "status", failed[0].Subject)
}

func TestRunner_Run_NoAssertionsUsesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	suite := &Suite{Cases: []*Case{getCase("ok", "/ok"), getCase("broken", "/broken")}}

	result, err := NewRunner(&Config{BaseURL: server.URL}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.True(t, result.Results[0].Passed)
	assert.False(t, result.Results[1].Passed)
}

func TestRunner_Run_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	suite := &Suite{Cases: []*Case{
		getCase("down", "/", assertions.Expect("status", assertions.OpEquals, 200)),
	}}

	result, err := NewRunner(&Config{BaseURL: url, Timeout: time.Second}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Error(t, result.Results[0].Error)
	assert.Nil(t, result.Results[0].Response)
	assert.Empty(t, result.Results[0].Assertions)
	assert.Equal(t, int64(0), result.Latency.Count)
}

func TestRunner_Run_NoBuilder(t *testing.T) {
	suite := &Suite{Cases: []*Case{{Name: "empty"}}}

	result, err := NewRunner(&Config{BaseURL: "http://example.com"}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, errors.Is(result.Results[0].Error, ErrNoBuilder))
}

func TestRunner_Run_InvalidBaseURL(t *testing.T) {
	_, err := NewRunner(&Config{BaseURL: "ftp://example.com"}).Run(context.Background(), &Suite{})
	assert.Error(t, err)

	_, err = NewRunner(&Config{BaseURL: "http://example.com"}).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunner_Run_WithSkip(t *testing.T) {
	suite := &Suite{Cases: []*Case{
		{Name: "skipped", Skip: "endpoint retired"},
	}}

	result, err := NewRunner(&Config{BaseURL: "http://example.com"}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.True(t, result.Results[0].Skipped)
	assert.Equal(t, "endpoint retired", result.Results[0].SkipReason)
}

func TestRunner_NameFilter(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	suite := &Suite{Cases: []*Case{
		getCase("schemaValidation", "/a"),
		getCase("confirmTotal", "/b"),
	}}

	result, err := NewRunner(&Config{BaseURL: server.URL, NameFilter: "schema*"}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "schemaValidation", result.Results[0].Name)
	assert.Equal(t, "filtered out", result.Results[1].SkipReason)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunner_FilteredCasesKeepSuiteOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a1 answers last so parallel completion order differs from suite order
		if r.URL.Path == "/a1" {
			time.Sleep(30 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			suite := &Suite{Cases: []*Case{
				getCase("a1", "/a1"),
				getCase("b", "/b"),
				getCase("a2", "/a2"),
			}}
			cfg := &Config{BaseURL: server.URL, NameFilter: "a*", Parallel: parallel}

			result, err := NewRunner(cfg).Run(context.Background(), suite)

			require.NoError(t, err)
			var order []string
			for _, r := range result.Results {
				order = append(order, r.Name)
			}
			assert.Equal(t, []string{"a1", "b", "a2"}, order)
			assert.True(t, result.Results[1].Skipped)
			assert.Equal(t, 2, result.Passed)
			assert.Equal(t, 1, result.Skipped)
		})
	}
}

func TestRunner_TagsFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	smoke := getCase("smoke", "/a")
	smoke.Tags = []string{"smoke"}
	other := getCase("other", "/b")
	other.Tags = []string{"slow"}

	result, err := NewRunner(&Config{BaseURL: server.URL, TagsFilter: []string{"smoke"}}).
		Run(context.Background(), &Suite{Cases: []*Case{smoke, other}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunner_Bail(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	suite := &Suite{Cases: []*Case{
		getCase("first", "/first", assertions.Expect("status", assertions.OpEquals, 200)),
		getCase("second", "/second", assertions.Expect("status", assertions.OpEquals, 200)),
	}}

	result, err := NewRunner(&Config{BaseURL: server.URL, Bail: true}).Run(context.Background(), suite)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int32(1), requestCount.Load()) // Should stop after first failure
	require.Len(t, result.Results, 1)
	assert.Equal(t, "first", result.Results[0].Name)
}

func TestRunner_FollowsRedirectsByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	moved := func() *Suite {
		return &Suite{Cases: []*Case{
			getCase("moved", "/old", assertions.Expect("status", assertions.OpEquals, 200)),
		}}
	}

	result, err := NewRunner(&Config{BaseURL: server.URL}).Run(context.Background(), moved())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)

	result, err = NewRunner(&Config{BaseURL: server.URL, NoFollowRedirect: true}).Run(context.Background(), moved())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 301, result.Results[0].Response.StatusCode)
}

func TestRunner_Parallel_KeepsOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var cases []*Case
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, n := range names {
		cases = append(cases, getCase(n, "/"+n, assertions.Expect("status", assertions.OpEquals, 200)))
	}

	cfg := &Config{BaseURL: server.URL, Parallel: true, Concurrency: 2}
	result, err := NewRunner(cfg).Run(context.Background(), &Suite{Cases: cases})

	require.NoError(t, err)
	assert.Equal(t, len(names), result.Passed)
	for i, n := range names {
		assert.Equal(t, n, result.Results[i].Name)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(&Config{BaseURL: "http://example.com"}).
		Run(ctx, &Suite{Cases: []*Case{getCase("late", "/")}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "cancelled", result.Results[0].SkipReason)
}

func TestRunner_Listeners(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	suite := &Suite{Name: "events", Cases: []*Case{
		getCase("good", "/good"),
		getCase("bad", "/bad"),
		{Name: "later", Skip: "not yet"},
	}}

	first := &recordingListener{}
	second := &recordingListener{}
	r := NewRunner(&Config{BaseURL: server.URL}, first)
	r.AddListener(second)

	_, err := r.Run(context.Background(), suite)
	require.NoError(t, err)

	expected := []string{
		"suite:events",
		"skip:later",
		"start:good", "pass:good",
		"start:bad", "fail:bad",
		"finish:events",
	}
	assert.Equal(t, expected, first.events)
	assert.Equal(t, expected, second.events)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"exact match", "testName", true},
		{"prefix match", "test*", true},
		{"suffix match", "*Name", true},
		{"contains match", "*stNa*", true},
		{"wildcard only", "*", true},
		{"no match", "other*", false},
		{"empty pattern", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name+" - "+tt.pattern, func(t *testing.T) {
			result := matchesPattern("testName", tt.pattern)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHasAnyTag(t *testing.T) {
	tests := []struct {
		tags     []string
		filters  []string
		expected bool
	}{
		{[]string{"smoke", "api"}, []string{"smoke"}, true},
		{[]string{"smoke", "api"}, []string{"integration"}, false},
		{[]string{"smoke", "api"}, []string{"smoke", "integration"}, true},
		{[]string{}, []string{"smoke"}, false},
		{[]string{"smoke"}, []string{}, false},
	}

	for _, tt := range tests {
		result := hasAnyTag(tt.tags, tt.filters)
		assert.Equal(t, tt.expected, result)
	}
}
