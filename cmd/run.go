package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"surveyforge/internal/observability"
	"surveyforge/internal/pipeline"
	"surveyforge/internal/ui"
	"surveyforge/pkg/models"
)

var (
	runOutDir  string
	runYears   []int
	runNoStore bool
	runDryRun  bool
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full survey pipeline",
	Long: "Ingest the configured survey exports, harmonize them into one table, " +
		"derive analysis categories, explode multi-select answers, compute the KPI " +
		"tables and publish everything atomically to the output directory.",
	Run: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "output directory (overrides the configured one)")
	runCmd.Flags().IntSliceVar(&runYears, "years", nil, "restrict the run to these survey years")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip saving the run to the local analytics store")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute everything but write nothing")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "enable debug logging")
}

func runRun(cmd *cobra.Command, args []string) {
	logger := observability.GetDefaultLogger()
	if runVerbose {
		logger.SetLevel(observability.DebugLevel)
	}

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	showRunPlan(cfg, runYears)

	p := pipeline.New(cfg, logger, nil)
	opts := pipeline.Options{
		OutDir: runOutDir,
		Years:  runYears,
		Store:  !runNoStore,
		DryRun: runDryRun,
		Progress: func(stage string, current, total int) {
			ui.ShowStageExecution(stage, current, total)
		},
	}

	result, err := p.Run(cmd.Context(), opts)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	showRunSummary(result)
}

func showRunPlan(cfg *models.Config, years []int) {
	mode := "full run"
	if runDryRun {
		mode = "dry run, nothing will be written"
	}

	want := make(map[int]bool, len(years))
	for _, y := range years {
		want[y] = true
	}

	var datasets []string
	for _, ds := range cfg.Datasets {
		if len(want) > 0 && !want[ds.Year] {
			continue
		}
		datasets = append(datasets, fmt.Sprintf("%d  %s", ds.Year, ds.Path))
	}

	ui.ShowRunPlan(mode, datasets)
}

func showRunSummary(result *pipeline.Result) {
	fmt.Println()
	table := ui.NewTable()
	table.AddHeader("STAGE", "DURATION")
	for _, stage := range result.Stages {
		table.AddRow(stage.Name, ui.FormatDuration(stage.Duration))
	}
	table.Render()

	fmt.Println()
	fmt.Printf("  Records:    %d across years %v\n", result.Records, result.Years)
	fmt.Printf("  Selections: %d\n", result.Selections)
	fmt.Printf("  Tables:     %d\n", len(result.Results.Tables))
	if result.Warnings > 0 {
		fmt.Printf("  Recovered:  %s\n", recoveredLine(result.Metrics))
	}

	if len(result.Drifts) > 0 {
		years := make(map[int]int)
		for _, d := range result.Drifts {
			years[d.Year]++
		}
		for year, count := range years {
			ui.ShowWarning(fmt.Sprintf("%d fields missing from the %d export (see data_inventory.md)", count, year))
		}
	}

	if result.DryRun {
		ui.ShowInfo("Dry run: no outputs were written")
		return
	}

	ui.ShowSuccess(fmt.Sprintf("Run %s completed in %s", shortRunID(result.RunID), ui.FormatDuration(result.Duration)))
	fmt.Printf("  Outputs: %s\n", result.OutputDir)
	if result.StorePath != "" {
		fmt.Printf("  Store:   %s\n", result.StorePath)
	}
}

// recoveredLine summarizes the non-fatal incidents of a run
func recoveredLine(metrics map[string]float64) string {
	parts := ""
	add := func(count float64, label string) {
		if count == 0 {
			return
		}
		if parts != "" {
			parts += ", "
		}
		parts += strconv.Itoa(int(count)) + " " + label
	}
	add(metrics["ragged_rows"], "ragged rows")
	add(metrics["drift_events"], "drifted fields")
	add(metrics["parse_failures"], "parse failures")
	add(metrics["outliers_rejected"], "outliers")
	return parts
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
