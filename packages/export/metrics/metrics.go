// Package metrics exports run results to monitoring systems.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// Namespace prefixes every exported metric name.
const Namespace = "apicheck"

// Exporter publishes the outcome of one run.
type Exporter interface {
	Export(ctx context.Context, result *runner.RunResult) error
	Name() string
}

// ExportAll runs every exporter and joins their errors.
func ExportAll(ctx context.Context, result *runner.RunResult, exporters ...Exporter) error {
	var errs []error
	for _, e := range exporters {
		if err := e.Export(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func caseStatus(r *runner.CaseResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Passed:
		return "passed"
	default:
		return "failed"
	}
}

func statusCode(r *runner.CaseResult) int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}
