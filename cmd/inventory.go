package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"surveyforge/internal/common"
	"surveyforge/internal/config"
	"surveyforge/internal/ingest"
	"surveyforge/internal/inventory"
	"surveyforge/internal/observability"
	"surveyforge/internal/report"
	"surveyforge/internal/ui"
)

var (
	inventoryOutDir string
	inventoryJSON   bool
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Profile the raw survey exports without running the pipeline",
	Long: "Scan the configured CSV exports, profile every column, and show which " +
		"canonical field resolves to which source column per survey year. Useful " +
		"before a run to see how much of a new export will harmonize.",
	Run: runInventory,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.Flags().StringVarP(&inventoryOutDir, "out", "o", "", "also write data_inventory.md and data_inventory.json to this directory")
	inventoryCmd.Flags().BoolVar(&inventoryJSON, "json", false, "print the inventory as JSON instead of tables")
}

func runInventory(cmd *cobra.Command, args []string) {
	logger := observability.GetDefaultLogger()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if err := config.ValidateForRun(cfg); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	mapping, err := config.LoadMappings(cfg.Pipeline.Mappings)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	reader := ingest.NewReader(logger, observability.NewRunMetrics())
	raw, err := reader.ReadAll(cfg.Datasets)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	inv := inventory.NewService(cfg.Pipeline.MissingToken, logger).Build(raw, mapping)

	if inventoryJSON {
		out, err := inventory.NewReporter(inv).GenerateReport(inventory.ReportFormatJSON)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		fmt.Println(out)
	} else {
		showInventory(inv)
	}

	if inventoryOutDir != "" {
		if err := writeInventoryFiles(inv, inventoryOutDir); err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		ui.ShowSuccess(fmt.Sprintf("Inventory written to %s", inventoryOutDir))
	}
}

func showInventory(inv *inventory.Inventory) {
	viz := inventory.NewVisualizer(isatty.IsTerminal(os.Stdout.Fd()))

	fmt.Print(viz.DisplaySummary(inv))
	fmt.Println()
	fmt.Print(viz.DisplayMatrix(inv.Matrix))

	for _, profile := range inv.Datasets {
		fmt.Println()
		fmt.Print(viz.DisplayDatasetProfile(profile))
	}
}

func writeInventoryFiles(inv *inventory.Inventory, dir string) error {
	if err := common.EnsureDir(dir); err != nil {
		return err
	}

	reporter := inventory.NewReporter(inv)

	md, err := reporter.GenerateReport(inventory.ReportFormatMarkdown)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, report.FileInventory), []byte(md), common.FilePermissionNormal); err != nil {
		return err
	}

	js, err := reporter.GenerateReport(inventory.ReportFormatJSON)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, report.FileInvJSON), []byte(js), common.FilePermissionNormal)
}
