package runner

import (
	"go.uber.org/zap"
)

// Listener receives test lifecycle events from a Runner.
type Listener interface {
	OnSuiteStart(suite *Suite)
	OnTestStart(c *Case)
	OnTestSuccess(result *CaseResult)
	OnTestFailure(result *CaseResult)
	OnTestSkipped(result *CaseResult)
	OnSuiteFinish(result *RunResult)
}

// LogListener writes every lifecycle event to a zap logger.
type LogListener struct {
	log *zap.SugaredLogger
}

func NewLogListener(log *zap.SugaredLogger) *LogListener {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogListener{log: log}
}

func (l *LogListener) OnSuiteStart(suite *Suite) {
	l.log.Infow("Suite Started", "suite", suite.Name, "cases", len(suite.Cases))
}

func (l *LogListener) OnTestStart(c *Case) {
	l.log.Infow("Test Started", "test", c.Name)
}

func (l *LogListener) OnTestSuccess(result *CaseResult) {
	l.log.Infow("Test Passed", "test", result.Name, "duration", result.Duration)
	if result.Response != nil {
		l.log.Debugw("Response", "test", result.Name, "status", result.Response.StatusCode, "body", result.Response.BodyString())
	}
}

func (l *LogListener) OnTestFailure(result *CaseResult) {
	fields := []any{"test", result.Name, "duration", result.Duration}
	if result.Error != nil {
		fields = append(fields, "error", result.Error)
	}
	for _, a := range result.FailedAssertions() {
		fields = append(fields, a.Subject, a.Message)
	}
	l.log.Errorw("Test Failed", fields...)
}

func (l *LogListener) OnTestSkipped(result *CaseResult) {
	l.log.Infow("Test Skipped", "test", result.Name, "reason", result.SkipReason)
}

func (l *LogListener) OnSuiteFinish(result *RunResult) {
	l.log.Infow("Suite Finished",
		"suite", result.Suite,
		"run", result.ID,
		"passed", result.Passed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)
}
