package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
	"github.com/abdul-hamid-achik/apicheck/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag int
	historyPathFlag  string
	historyCasesFlag bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Long: `Show recent runs recorded in the SQLite history database.

The database is taken from --history, then HistoryFile in the config file,
then APICHECK_HISTORYFILE.

Examples:
  apicheck history
  apicheck history --limit 5 --cases
  apicheck history --history .apicheck/history.db`,
	Args: usageArgs(cobra.NoArgs),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", getEnvInt("APICHECK_HISTORY_LIMIT", 10), "Number of runs to show, 0 for all (env: APICHECK_HISTORY_LIMIT)")
	historyCmd.Flags().StringVar(&historyPathFlag, "history", "", "SQLite history database")
	historyCmd.Flags().BoolVar(&historyCasesFlag, "cases", false, "Show individual case results")
}

// historyPath resolves the database path from the flag, config file or env.
func historyPath() (string, error) {
	if historyPathFlag != "" {
		return historyPathFlag, nil
	}

	cfg, err := config.Load(configFlag)
	switch {
	case err == nil:
		if cfg.HistoryFile != "" {
			return cfg.HistoryFile, nil
		}
	case !errors.Is(err, config.ErrConfigNotFound):
		return "", withExitCode(ExitConfigError, err)
	}

	if path := getEnvString("APICHECK_HISTORYFILE", ""); path != "" {
		return path, nil
	}
	return "", withExitCode(ExitUsageError, errors.New("no history database configured (set HistoryFile or use --history)"))
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path, err := historyPath()
	if err != nil {
		return err
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%v in %s\n", history.ErrNoRuns, store.Path())
		return nil
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTATUS\tPASSED\tFAILED\tSKIPPED\tDURATION\tP95")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			run.Started.Local().Format("2006-01-02 15:04:05"),
			shortID(run.ID),
			runStatus(run),
			run.Passed, run.Failed, run.Skipped,
			run.Duration.Round(time.Millisecond),
			run.P95.Round(time.Millisecond),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !historyCasesFlag {
		return nil
	}

	for _, run := range runs {
		cases, err := store.Cases(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		printCases(out, run, cases)
	}
	return nil
}

func printCases(w io.Writer, run *history.Run, cases []history.Case) {
	fmt.Fprintf(w, "\n%s (%s) %s\n", shortID(run.ID), run.Suite, run.BaseURL)
	for _, c := range cases {
		fmt.Fprintf(w, "  %s %s (%s)\n", caseMark(c.Status), c.Name, c.Duration.Round(time.Millisecond))
		if c.Message != "" {
			fmt.Fprintf(w, "      %s\n", strings.ReplaceAll(c.Message, "\n", "\n      "))
		}
	}
}

func runStatus(run *history.Run) string {
	if run.Success() {
		return color.GreenString("PASS")
	}
	return color.RedString("FAIL")
}

func caseMark(status string) string {
	switch status {
	case history.StatusPassed:
		return color.GreenString("✓")
	case history.StatusFailed:
		return color.RedString("✗")
	default:
		return color.YellowString("○")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
