package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogListener(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogListener(zap.New(core).Sugar())

	l.OnSuiteStart(&Suite{Name: "countries", Cases: []*Case{{Name: "a"}}})
	l.OnTestStart(&Case{Name: "a"})
	l.OnTestSuccess(&CaseResult{Name: "a", Duration: time.Millisecond})
	l.OnTestFailure(&CaseResult{
		Name:  "b",
		Error: errors.New("connection refused"),
		Assertions: []*assertions.Result{
			{Subject: "status", Passed: false, Message: "expected 200, got 500"},
		},
	})
	l.OnTestSkipped(&CaseResult{Name: "c", SkipReason: "filtered out"})
	l.OnSuiteFinish(&RunResult{Suite: "countries", Passed: 1, Failed: 1, Skipped: 1})

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{
		"Suite Started", "Test Started", "Test Passed", "Test Failed", "Test Skipped", "Suite Finished",
	}, messages)

	failure := logs.FilterMessage("Test Failed").All()[0]
	assert.Equal(t, zapcore.ErrorLevel, failure.Level)
	assert.Equal(t, "expected 200, got 500", failure.ContextMap()["status"])
}

func TestLogListener_NilLogger(t *testing.T) {
	l := NewLogListener(nil)
	assert.NotPanics(t, func() {
		l.OnTestStart(&Case{Name: "a"})
	})
}
