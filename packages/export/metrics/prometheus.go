package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter writes run results in the Prometheus text format, for
// the node_exporter textfile collector.
type PrometheusExporter struct {
	path string
}

// NewPrometheusExporter writes to path on every Export.
func NewPrometheusExporter(path string) *PrometheusExporter {
	return &PrometheusExporter{path: path}
}

// Name returns the name of the exporter
func (p *PrometheusExporter) Name() string {
	return "prometheus"
}

// Path returns the textfile written by Export.
func (p *PrometheusExporter) Path() string {
	return p.path
}

// Export replaces the textfile with the metrics of result.
func (p *PrometheusExporter) Export(_ context.Context, result *runner.RunResult) error {
	reg, err := p.registry(result)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	return prometheus.WriteToTextfile(p.path, reg)
}

func (p *PrometheusExporter) registry(result *runner.RunResult) (*prometheus.Registry, error) {
	labels := prometheus.Labels{"suite": result.Suite}

	cases := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "cases",
		Help:        "Cases in the last run by status.",
		ConstLabels: labels,
	}, []string{"status"})
	cases.WithLabelValues("passed").Set(float64(result.Passed))
	cases.WithLabelValues("failed").Set(float64(result.Failed))
	cases.WithLabelValues("skipped").Set(float64(result.Skipped))

	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "run_success",
		Help:        "1 if no case failed in the last run.",
		ConstLabels: labels,
	})
	if result.Success() {
		success.Set(1)
	}

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "last_run_timestamp_seconds",
		Help:        "Start time of the last run.",
		ConstLabels: labels,
	})
	lastRun.Set(float64(result.Started.UnixNano()) / 1e9)

	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "run_duration_seconds",
		Help:        "Wall time of the last run.",
		ConstLabels: labels,
	})
	runDuration.Set(result.Duration.Seconds())

	caseDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "case_duration_seconds",
		Help:        "Duration of each case in the last run.",
		ConstLabels: labels,
	}, []string{"case", "status", "code"})
	for _, r := range result.Results {
		if r.Skipped {
			continue
		}
		caseDuration.WithLabelValues(r.Name, caseStatus(r), strconv.Itoa(statusCode(r))).Set(r.Duration.Seconds())
	}

	latency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   Namespace,
		Name:        "latency_seconds",
		Help:        "Response latency quantiles of the last run.",
		ConstLabels: labels,
	}, []string{"quantile"})
	if l := result.Latency; l.Count > 0 {
		latency.WithLabelValues("0").Set(l.Min.Seconds())
		latency.WithLabelValues("0.5").Set(l.P50.Seconds())
		latency.WithLabelValues("0.95").Set(l.P95.Seconds())
		latency.WithLabelValues("0.99").Set(l.P99.Seconds())
		latency.WithLabelValues("1").Set(l.Max.Seconds())
	}

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{cases, success, lastRun, runDuration, caseDuration, latency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return reg, nil
}
