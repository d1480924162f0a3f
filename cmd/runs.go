package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"surveyforge/internal/runledger"
	"surveyforge/internal/ui"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs",
	Long:  "List the run ledger: when each pipeline run happened, what it processed and how it ended",
	Run:   runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "show at most this many runs")
}

func runRuns(cmd *cobra.Command, args []string) {
	ledger, err := runledger.New()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	entries, err := ledger.Entries()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
		fmt.Fprintln(cmd.OutOrStdout(), "Use 'surveyforge run' to execute the pipeline")
		return
	}

	if runsLimit > 0 && len(entries) > runsLimit {
		entries = entries[:runsLimit]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tWHEN\tYEARS\tRECORDS\tSELECTIONS\tWARNINGS\tDURATION\tSTATUS")
	fmt.Fprintln(w, "---\t----\t-----\t-------\t----------\t--------\t--------\t------")

	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			shortRunID(entry.RunID),
			ui.FormatRelativeTime(entry.StartedAt),
			formatYears(entry.Years),
			entry.Records,
			entry.Selections,
			entry.Warnings,
			ui.FormatDuration(entry.Duration()),
			formatRunStatus(entry.Status),
		)
	}
	_ = w.Flush()

	for _, entry := range entries {
		if entry.Status == runledger.StatusFailed && entry.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s failed: %s\n", shortRunID(entry.RunID), entry.Error)
		}
	}
}

func formatYears(years []int) string {
	if len(years) == 0 {
		return "-"
	}
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprintf("%d", y)
	}
	return strings.Join(parts, ",")
}

func formatRunStatus(status string) string {
	if status == runledger.StatusFailed {
		return ui.ColorError(status)
	}
	return ui.ColorSuccess(status)
}
