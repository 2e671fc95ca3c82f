// Package notify sends run summaries to chat services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when tests fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when tests pass
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications when tests recover from failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(s); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return n, nil
	}
	return "", fmt.Errorf("invalid notify policy %q (want always, failure, success or recovery)", s)
}

// RunSummary represents the summary of a test run for notifications
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Suite         string        `json:"suite"`
	BaseURL       string        `json:"base_url,omitempty"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	SkippedTests  int           `json:"skipped_tests"`
	Duration      time.Duration `json:"duration"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// FailedTest represents a failed test for notifications
type FailedTest struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors,omitempty"`
}

// Summarize builds a RunSummary from a run result.
func Summarize(result *runner.RunResult) *RunSummary {
	s := &RunSummary{
		RunID:        result.ID,
		Suite:        result.Suite,
		BaseURL:      result.BaseURL,
		TotalTests:   len(result.Results),
		PassedTests:  result.Passed,
		FailedTests:  result.Failed,
		SkippedTests: result.Skipped,
		Duration:     result.Duration,
	}

	for _, r := range result.Results {
		if r.Passed || r.Skipped {
			continue
		}
		ft := FailedTest{Name: r.Name}
		if r.Error != nil {
			ft.Errors = append(ft.Errors, r.Error.Error())
		}
		for _, a := range r.FailedAssertions() {
			ft.Errors = append(ft.Errors, fmt.Sprintf("%s %s: %s", a.Subject, a.Operator, firstLine(a.Message)))
		}
		s.FailedResults = append(s.FailedResults, ft)
	}
	return s
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetLastState seeds the previous outcome, typically from run history.
func (m *Manager) SetLastState(success bool) {
	m.lastState = success
}

// Notify sends notifications based on the configured policy
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := summary.FailedTests == 0

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = summary.FailedTests > 0
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		// Notify if recovering from failure
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		// Also notify on failure
		if summary.FailedTests > 0 {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	return errors.Join(errs...)
}
