package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
)

// DataDogExporter exports metrics to DataDog
type DataDogExporter struct {
	apiKey   string
	site     string // e.g., "datadoghq.com", "datadoghq.eu"
	endpoint string
	tags     []string
	prefix   string
	client   *http.Client
}

// DataDogOption is a functional option for DataDogExporter
type DataDogOption func(*DataDogExporter)

// WithDataDogAPIKey sets the DataDog API key
func WithDataDogAPIKey(apiKey string) DataDogOption {
	return func(d *DataDogExporter) {
		d.apiKey = apiKey
	}
}

// WithDataDogSite sets the DataDog site (e.g., "datadoghq.com", "datadoghq.eu")
func WithDataDogSite(site string) DataDogOption {
	return func(d *DataDogExporter) {
		d.site = site
	}
}

// WithDataDogEndpoint overrides the series API URL.
func WithDataDogEndpoint(url string) DataDogOption {
	return func(d *DataDogExporter) {
		d.endpoint = url
	}
}

// WithDataDogTags sets additional tags for all metrics
func WithDataDogTags(tags []string) DataDogOption {
	return func(d *DataDogExporter) {
		d.tags = tags
	}
}

// WithDataDogClient sets the HTTP client used to send series.
func WithDataDogClient(c *http.Client) DataDogOption {
	return func(d *DataDogExporter) {
		d.client = c
	}
}

// NewDataDogExporter creates a new DataDog metrics exporter
func NewDataDogExporter(opts ...DataDogOption) *DataDogExporter {
	d := &DataDogExporter{
		site:   "datadoghq.com",
		prefix: Namespace,
	}

	for _, opt := range opts {
		opt(d)
	}

	// Try to get API key from environment if not set
	if d.apiKey == "" {
		d.apiKey = os.Getenv("DD_API_KEY")
	}
	if d.endpoint == "" {
		d.endpoint = fmt.Sprintf("https://api.%s/api/v1/series", d.site)
	}
	if d.client == nil {
		d.client = http.NewClient(http.WithTimeout(10 * time.Second))
	}

	return d
}

// Name returns the name of the exporter
func (d *DataDogExporter) Name() string {
	return "datadog"
}

// datadogMetric represents a metric in DataDog format
type datadogMetric struct {
	Metric string   `json:"metric"`
	Type   string   `json:"type"`
	Points [][]any  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

// datadogPayload is the payload sent to DataDog
type datadogPayload struct {
	Series []datadogMetric `json:"series"`
}

// Export sends the run counts, latency quantiles and per-case durations.
func (d *DataDogExporter) Export(ctx context.Context, result *runner.RunResult) error {
	if d.apiKey == "" {
		return fmt.Errorf("DataDog API key not configured")
	}
	return d.sendMetrics(ctx, d.series(result))
}

func (d *DataDogExporter) series(result *runner.RunResult) []datadogMetric {
	now := float64(result.Started.Add(result.Duration).Unix())
	tags := append([]string{"suite:" + result.Suite}, d.tags...)

	gauge := func(name string, value float64, extra ...string) datadogMetric {
		return datadogMetric{
			Metric: d.metricName(name),
			Type:   "gauge",
			Points: [][]any{{now, value}},
			Tags:   append(append([]string{}, tags...), extra...),
		}
	}

	series := []datadogMetric{
		gauge("cases.passed", float64(result.Passed)),
		gauge("cases.failed", float64(result.Failed)),
		gauge("cases.skipped", float64(result.Skipped)),
		gauge("run.duration", toMs(result.Duration)),
	}

	if l := result.Latency; l.Count > 0 {
		series = append(series,
			gauge("latency.min", toMs(l.Min)),
			gauge("latency.p50", toMs(l.P50)),
			gauge("latency.p95", toMs(l.P95)),
			gauge("latency.p99", toMs(l.P99)),
			gauge("latency.max", toMs(l.Max)),
		)
	}

	for _, r := range result.Results {
		if r.Skipped {
			continue
		}
		series = append(series, gauge("case.duration", toMs(r.Duration),
			"case:"+r.Name,
			"result:"+caseStatus(r),
			fmt.Sprintf("status:%d", statusCode(r)),
		))
	}

	return series
}

func (d *DataDogExporter) metricName(name string) string {
	return d.prefix + "." + name
}

func toMs(dur time.Duration) float64 {
	return float64(dur) / float64(time.Millisecond)
}

func (d *DataDogExporter) sendMetrics(ctx context.Context, series []datadogMetric) error {
	jsonData, err := json.Marshal(datadogPayload{Series: series})
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	req := http.NewPostRequest(d.client, d.endpoint, "")
	req.AddHeader("Content-Type", "application/json")
	req.AddHeader("DD-API-KEY", d.apiKey)
	req.SetBody(string(jsonData))

	resp, err := req.Execute(ctx)
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}

	if resp.StatusCode != 202 && resp.StatusCode != 200 {
		return fmt.Errorf("DataDog API returned status %d: %s", resp.StatusCode, resp.BodyString())
	}

	return nil
}
