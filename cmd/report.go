package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"surveyforge/internal/kpi"
	"surveyforge/internal/ui"
	"surveyforge/pkg/errors"
)

var (
	reportTable    string
	reportMarkdown bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render KPI tables from the latest published run",
	Long: "Read the result tables published by the last pipeline run and render " +
		"them to the terminal, or as markdown for pasting into a document.",
	Run: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportTable, "table", "t", "", "render only this table (default: all)")
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "render as markdown tables")
}

// kpiTableNames is the publish order of the result tables
var kpiTableNames = []string{
	kpi.TableAdoptionByYear,
	kpi.TableAdoptionByRegion,
	kpi.TableSentimentByYear,
	kpi.TableMedianCompByUse,
	kpi.TableExperienceDist,
	kpi.TableTopSelections,
}

func runReport(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	outDir := cfg.Output.Directory
	if _, err := os.Stat(outDir); err != nil {
		ui.ShowError(errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("No published run found in %s", outDir)).
			WithSuggestions("Run 'surveyforge run' first"))
		os.Exit(1)
	}

	names := kpiTableNames
	if reportTable != "" {
		if !knownTable(reportTable) {
			ui.ShowError(errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("Unknown table %q", reportTable)).
				WithSuggestions("Valid tables: " + strings.Join(kpiTableNames, ", ")))
			os.Exit(1)
		}
		names = []string{reportTable}
	}

	for _, name := range names {
		records, err := readResultCSV(filepath.Join(outDir, name+".csv"))
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		renderResult(name, records)
	}
}

func knownTable(name string) bool {
	for _, t := range kpiTableNames {
		if t == name {
			return true
		}
	}
	return false
}

func readResultCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeOutputWrite,
			fmt.Sprintf("Failed to read published table %s", filepath.Base(path))).
			WithSuggestions("Run 'surveyforge run' to regenerate the output directory")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeParseFailure,
			fmt.Sprintf("Published table %s is not valid CSV", filepath.Base(path)))
	}
	return records, nil
}

func renderResult(name string, records [][]string) {
	if reportMarkdown {
		fmt.Printf("## %s\n\n", name)
		fmt.Print(markdownTable(records))
		fmt.Println()
		return
	}

	fmt.Printf("\n%s\n", ui.ColorBold(name))
	if len(records) == 0 {
		fmt.Println("  (empty)")
		return
	}

	table := ui.NewTable()
	table.AddHeader(records[0]...)
	for _, row := range records[1:] {
		table.AddRow(row...)
	}
	table.Render()
}

// markdownTable renders CSV records as a markdown pipe table. Empty
// cells stay empty, which reads as null in the published tables.
func markdownTable(records [][]string) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, cell := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(cell, "|", "\\|"))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(records[0])
	b.WriteString("|")
	for range records[0] {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, row := range records[1:] {
		writeRow(row)
	}
	return b.String()
}
