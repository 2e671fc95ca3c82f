package output

import (
	"sync"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"go.uber.org/zap"
)

// HTMLListener writes the HTML report to path when the suite finishes.
// Cases are taken from the finished RunResult so the report follows suite
// order regardless of the order events arrived in.
type HTMLListener struct {
	path    string
	version string
	log     *zap.SugaredLogger

	mu  sync.Mutex
	err error
}

func NewHTMLListener(path, version string, log *zap.SugaredLogger) *HTMLListener {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &HTMLListener{path: path, version: version, log: log}
}

func (l *HTMLListener) OnSuiteStart(suite *runner.Suite) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = nil
}

func (l *HTMLListener) OnTestStart(c *runner.Case) {}

func (l *HTMLListener) OnTestSuccess(result *runner.CaseResult) {}

func (l *HTMLListener) OnTestFailure(result *runner.CaseResult) {}

func (l *HTMLListener) OnTestSkipped(result *runner.CaseResult) {}

// OnSuiteFinish renders and writes the report. Write errors are logged and
// kept for Err.
func (l *HTMLListener) OnSuiteFinish(result *runner.RunResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.err = WriteReport(l.path, l.version, result)
	if l.err != nil {
		l.log.Errorw("Failed to write HTML report", "path", l.path, "error", l.err)
		return
	}
	l.log.Infow("HTML report written", "path", l.path, "cases", len(result.Results))
}

// Path returns where the report is written.
func (l *HTMLListener) Path() string {
	return l.path
}

// Err returns the error from the last report write, if any.
func (l *HTMLListener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
