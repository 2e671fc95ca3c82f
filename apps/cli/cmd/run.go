package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/countries"
	"github.com/abdul-hamid-achik/apicheck/packages/export/metrics"
	"github.com/abdul-hamid-achik/apicheck/packages/history"
	"github.com/abdul-hamid-achik/apicheck/packages/logging"
	"github.com/abdul-hamid-achik/apicheck/packages/notify"
	"github.com/abdul-hamid-achik/apicheck/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the API checks",
	Long: `Run the REST Countries checks against the configured base URL.

Configuration is read from config.properties (or apicheck.yaml/.yml/.json)
in the working directory unless --config is given. Flags override values
from the file.

Examples:
  apicheck run
  apicheck run --config staging.properties --report target/staging.html
  apicheck run --tags smoke --output junit --output-file target/junit.xml
  apicheck run --parallel --concurrency 3
  apicheck run --notify slack --slack-webhook $SLACK_WEBHOOK --notify-on recovery
  apicheck run --watch`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	configFlag      string
	baseURLFlag     string
	nameFlag        string
	tagsFlag        string
	verboseFlag     bool
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
	reportFlag      string
	bailFlag        bool
	timeoutFlag     string
	logLevelFlag    string
	parallelFlag    bool
	concurrencyFlag int
	watchFlag       bool
	historyFlag     string

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string

	// Metrics export flags
	metricsFileFlag   string
	datadogAPIKeyFlag string
	datadogSiteFlag   string
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&configFlag, "config", "c", getEnvString("APICHECK_CONFIG", ""), "Path to config file (env: APICHECK_CONFIG)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Override BaseURL from the config file")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", getEnvString("APICHECK_NAME", ""), "Run only cases matching name pattern (env: APICHECK_NAME)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("APICHECK_TAGS", ""), "Run only cases with specified tags (comma-separated) (env: APICHECK_TAGS)")

	// Output flags
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("APICHECK_VERBOSE", false), "Show request and status for each case (env: APICHECK_VERBOSE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APICHECK_NO_COLOR", false), "Disable colored output (env: APICHECK_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("APICHECK_OUTPUT", "console"), "Output format: console, json, junit, html (env: APICHECK_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("APICHECK_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: APICHECK_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&reportFlag, "report", "", "HTML report path, \"none\" to disable (default from ReportFile)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default from LogLevel)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", false, "Stop on first failure (default from Bail)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", "", "Request timeout, e.g. 30s (default from Timeout)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", false, "Run cases in parallel (default from Parallel)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", 0, "Number of concurrent cases in parallel mode (default from Concurrency)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the config file and re-run on changes")
	runCmd.Flags().StringVar(&historyFlag, "history", "", "SQLite history database (default from HistoryFile)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("APICHECK_NOTIFY", ""), "Notification service: slack (env: APICHECK_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("APICHECK_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: APICHECK_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")

	// Metrics export flags
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("APICHECK_METRICS_FILE", ""), "Write Prometheus textfile metrics to this path (env: APICHECK_METRICS_FILE)")
	runCmd.Flags().StringVar(&datadogAPIKeyFlag, "datadog-api-key", getEnvString("DD_API_KEY", ""), "Send run metrics to DataDog (env: DD_API_KEY)")
	runCmd.Flags().StringVar(&datadogSiteFlag, "datadog-site", getEnvString("DD_SITE", "datadoghq.com"), "DataDog site (env: DD_SITE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadConfig reads the config file and applies explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = baseURLFlag
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		cfg.Timeout = d
	}
	if flags.Changed("bail") {
		cfg.Bail = bailFlag
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallelFlag
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrencyFlag
	}
	if flags.Changed("report") {
		cfg.ReportFile = reportFlag
		if strings.EqualFold(reportFlag, "none") {
			cfg.ReportFile = ""
		}
	}
	if flags.Changed("history") {
		cfg.HistoryFile = historyFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runnerConfig(cfg *config.Config) *runner.Config {
	return &runner.Config{
		BaseURL:          cfg.BaseURL,
		Timeout:          cfg.Timeout,
		NoFollowRedirect: !cfg.FollowRedirects,
		RateLimit:        cfg.RateLimit,
		Headers:          cfg.Headers,
		Bail:             cfg.Bail,
		NameFilter:       nameFlag,
		TagsFilter:       splitList(tagsFlag),
		Parallel:         cfg.Parallel,
		Concurrency:      cfg.Concurrency,
	}
}

func buildNotifier() (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range splitList(notifyFlag) {
		switch strings.ToLower(service) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			slackOpts := []notify.SlackOption{}
			if slackChannelFlag != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, slackOpts...))
		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}

	return notify.NewManager(notifyOn, notifiers...), nil
}

func buildExporters() []metrics.Exporter {
	var exporters []metrics.Exporter
	if metricsFileFlag != "" {
		exporters = append(exporters, metrics.NewPrometheusExporter(metricsFileFlag))
	}
	if datadogAPIKeyFlag != "" {
		exporters = append(exporters, metrics.NewDataDogExporter(
			metrics.WithDataDogAPIKey(datadogAPIKeyFlag),
			metrics.WithDataDogSite(datadogSiteFlag),
		))
	}
	return exporters
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	log, err := logging.Init(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	notifier, err := buildNotifier()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.HistoryFile != "" {
		store, err = history.Open(cfg.HistoryFile)
		if err != nil {
			return err
		}
		defer store.Close()

		if notifier != nil {
			if last, err := store.Last(ctx); err == nil {
				notifier.SetLastState(last.Success())
			}
		}
	}

	passed, err := runOnce(ctx, cmd, cfg, store, notifier, log)
	if err != nil {
		return err
	}

	if !watchFlag {
		if !passed {
			return withExitCode(ExitTestFailure, nil)
		}
		return nil
	}

	return watchConfig(ctx, cmd, cfg.Path, WatchDebounceDelay, func() {
		next, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		if _, err := runOnce(ctx, cmd, next, store, notifier, log); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

// runOnce executes the suite and reports the result everywhere configured.
func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, store *history.Store, notifier *notify.Manager, log *zap.SugaredLogger) (bool, error) {
	var w io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return false, fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	formatter, err := output.New(strings.ToLower(outputFlag), w, verboseFlag, noColorFlag)
	if err != nil {
		return false, withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	listeners := []runner.Listener{runner.NewLogListener(log)}
	var report *output.HTMLListener
	if cfg.ReportFile != "" {
		report = output.NewHTMLListener(cfg.ReportFile, version, log)
		listeners = append(listeners, report)
	}

	r := runner.NewRunner(runnerConfig(cfg), listeners...)
	result, err := r.Run(ctx, countries.Suite())
	if err != nil {
		formatter.FormatError(err)
		return false, withExitCode(ExitConfigError, err)
	}

	formatter.FormatResult(result)

	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(result.Duration); err != nil {
			return false, fmt.Errorf("error writing output: %w", err)
		}
	}

	if report != nil {
		if err := report.Err(); err != nil {
			formatter.FormatError(fmt.Errorf("writing HTML report: %w", err))
		} else if verboseFlag {
			fmt.Fprintf(cmd.ErrOrStderr(), "Report: %s\n", report.Path())
		}
	}

	if store != nil {
		if err := store.Save(ctx, result); err != nil {
			log.Warnw("Failed to save run history", "path", store.Path(), "error", err)
		}
	}

	if exporters := buildExporters(); len(exporters) > 0 {
		if err := metrics.ExportAll(ctx, result, exporters...); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to export metrics: %v\n", err)
		}
	}

	if notifier != nil {
		if err := notifier.Notify(ctx, notify.Summarize(result)); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to send notification: %v\n", err)
		}
	}

	return result.Success(), nil
}

// watchConfig calls rerun whenever the config file changes, until ctx ends.
// No rerun starts after it returns.
func watchConfig(ctx context.Context, cmd *cobra.Command, path string, delay time.Duration, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s for changes... (press Ctrl+C to stop)\n\n", path)

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
		stopped       bool
	)
	defer func() {
		// Waits for a rerun already in progress
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(delay, func() {
				mu.Lock()
				defer mu.Unlock()
				if stopped {
					return
				}

				fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running checks...\n\n", event.Name)
				rerun()
				fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}
