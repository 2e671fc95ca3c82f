package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history", "apicheck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runAt(id string, started time.Time, failed int) *runner.RunResult {
	return &runner.RunResult{
		ID:       id,
		Suite:    "REST Countries",
		BaseURL:  "https://restcountries.com/v3.1",
		Started:  started,
		Duration: 1500 * time.Millisecond,
		Passed:   3 - failed,
		Failed:   failed,
		Latency:  stats.Summary{Count: 3, P95: 250 * time.Millisecond},
		Results: []*runner.CaseResult{
			{Name: "schemaValidation", Passed: failed == 0, Duration: 300 * time.Millisecond, Assertions: []*assertions.Result{
				{Subject: "body", Operator: "schema", Passed: failed == 0, Message: "Schema validation failed:"},
			}},
			{Name: "confirmTotalCountriesIs195", Passed: true, Duration: 200 * time.Millisecond},
			{Name: "later", Skipped: true, SkipReason: "filtered out"},
			{Name: "down", Error: errors.New("connection refused")},
		},
	}
}

func TestOpen(t *testing.T) {
	store := openStore(t)
	assert.Equal(t, "apicheck.db", filepath.Base(store.Path()))

	_, err := Open("")
	assert.Error(t, err)
}

func TestOpen_SQLitePrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	store, err := Open("sqlite://" + path)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.Path())
}

func TestLast_Empty(t *testing.T) {
	store := openStore(t)

	_, err := store.Last(context.Background())
	assert.True(t, errors.Is(err, ErrNoRuns))
}

func TestSaveAndLast(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, runAt("run-1", started, 1)))

	run, err := store.Last(ctx)
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "REST Countries", run.Suite)
	assert.Equal(t, "https://restcountries.com/v3.1", run.BaseURL)
	assert.True(t, started.Equal(run.Started))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.Equal(t, 250*time.Millisecond, run.P95)
	assert.Equal(t, 2, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.Success())

	require.Len(t, run.Cases, 4)
	assert.Equal(t, Case{Name: "schemaValidation", Status: StatusFailed, Duration: 300 * time.Millisecond, Message: "body schema: Schema validation failed:"}, run.Cases[0])
	assert.Equal(t, StatusPassed, run.Cases[1].Status)
	assert.Equal(t, Case{Name: "later", Status: StatusSkipped, Message: "filtered out"}, run.Cases[2])
	assert.Equal(t, "connection refused", run.Cases[3].Message)
}

func TestList_NewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, runAt("old", base, 1)))
	require.NoError(t, store.Save(ctx, runAt("new", base.Add(2*time.Hour), 0)))
	require.NoError(t, store.Save(ctx, runAt("mid", base.Add(time.Hour), 0)))

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)

	runs, err = store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	last, err := store.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", last.ID)
	assert.True(t, last.Success())
}

func TestSave_DuplicateIDRollsBack(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Now()

	require.NoError(t, store.Save(ctx, runAt("dup", started, 0)))
	assert.Error(t, store.Save(ctx, runAt("dup", started, 1)))

	cases, err := store.Cases(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, cases, 4)
}
