package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"surveyforge/internal/kpi"
	"surveyforge/internal/observability"
	"surveyforge/internal/store"
	"surveyforge/internal/ui"
	"surveyforge/internal/warehouse"
	"surveyforge/pkg/errors"
)

var (
	publishTableName string
	publishDryRun    bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push the latest run's KPI tables to the Snowflake warehouse",
	Long: "Load the most recent run from the local analytics store and publish " +
		"its result tables to the configured Snowflake database. Each table is " +
		"replaced and loaded inside one transaction.",
	Run: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVarP(&publishTableName, "table", "t", "", "publish only this table (default: all)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "show what would be published without connecting")
}

func runPublish(cmd *cobra.Command, args []string) {
	logger := observability.GetDefaultLogger()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if cfg.Output.Store == "" {
		ui.ShowError(errors.New(errors.ErrCodeConfigMissing,
			"Local analytics store is not configured").
			WithSuggestions(
				"Set output.store in your configuration (e.g. out/surveyforge.duckdb)",
				"Publishing reads result tables from the store of a completed run",
			))
		os.Exit(1)
	}

	st, err := store.Open(cfg.Output.Store, logger)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := cmd.Context()

	runID, err := st.LatestRunID(ctx)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if runID == "" {
		ui.ShowError(errors.New(errors.ErrCodeInvalidInput,
			"The analytics store has no completed runs").
			WithSuggestions("Run 'surveyforge run' first"))
		os.Exit(1)
	}

	results, err := st.LoadResults(ctx, runID)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if publishTableName != "" {
		table := results.ByName(publishTableName)
		if table == nil {
			ui.ShowError(errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("Run %s has no table %q", shortRunID(runID), publishTableName)))
			os.Exit(1)
		}
		results = &kpi.Results{GeneratedAt: results.GeneratedAt, Tables: []*kpi.ResultTable{table}}
	}

	if publishDryRun {
		showPublishPlan(cfg.Snowflake.Database, cfg.Snowflake.Schema, runID, results)
		return
	}

	if err := warehouse.ValidateConfig(cfg.Snowflake); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	svc := warehouse.NewService(cfg.Snowflake, logger)
	if err := svc.Connect(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.Publish(ctx, runID, results); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess(fmt.Sprintf("Published %d tables from run %s to %s.%s",
		len(results.Tables), shortRunID(runID), cfg.Snowflake.Database, cfg.Snowflake.Schema))
}

func showPublishPlan(database, schema, runID string, results *kpi.Results) {
	ui.ShowHeader("Publish Plan")
	fmt.Printf("\nRun %s -> %s.%s\n\n", shortRunID(runID), database, schema)

	table := ui.NewTable()
	table.AddHeader("TABLE", "ROWS")
	for _, t := range results.Tables {
		table.AddRow(t.Name, fmt.Sprintf("%d", len(t.Rows)))
	}
	table.Render()

	ui.ShowInfo("Dry run: nothing was published")
}
