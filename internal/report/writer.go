package report

import (
	"fmt"
	"os"
	"path/filepath"

	"surveyforge/internal/common"
	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/inventory"
	"surveyforge/internal/kpi"
	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
)

// Output file names
const (
	FileHarmonized = "harmonized.csv"
	FileSelections = "selections.csv"
	FileInsights   = "insights.md"
	FileInventory  = "data_inventory.md"
	FileInvJSON    = "data_inventory.json"
)

// Writer materializes run artifacts into a directory. It never writes
// to the final output location itself; the pipeline points it at a
// staging directory and publishes atomically.
type Writer struct {
	formats map[string]bool
	logger  *observability.Logger
}

// NewWriter creates a writer for the configured output formats
func NewWriter(formats []string, logger *observability.Logger) *Writer {
	enabled := make(map[string]bool, len(formats))
	for _, f := range formats {
		enabled[f] = true
	}
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Writer{formats: enabled, logger: logger}
}

// WriteAll writes every enabled artifact into dir
func (w *Writer) WriteAll(dir string, table *harmonize.Table, selections []explode.Selection, results *kpi.Results, inv *inventory.Inventory) error {
	if err := common.EnsureDir(dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "Failed to create output directory").
			WithContext("dir", dir)
	}

	written := 0
	if w.formats["csv"] {
		n, err := w.writeCSVs(dir, table, selections, results)
		if err != nil {
			return err
		}
		written += n
	}
	if w.formats["markdown"] {
		n, err := w.writeMarkdown(dir, results, inv)
		if err != nil {
			return err
		}
		written += n
	}
	if w.formats["json"] {
		if err := w.writeInventoryJSON(dir, inv); err != nil {
			return err
		}
		written++
	}

	w.logger.InfoWithFields("Wrote output artifacts", map[string]interface{}{
		"dir":   dir,
		"files": written,
	})
	return nil
}

func (w *Writer) writeCSVs(dir string, table *harmonize.Table, selections []explode.Selection, results *kpi.Results) (int, error) {
	written := 0

	if err := w.writeFile(dir, FileHarmonized, func(f *os.File) error {
		return WriteHarmonizedCSV(f, table)
	}); err != nil {
		return written, err
	}
	written++

	if err := w.writeFile(dir, FileSelections, func(f *os.File) error {
		return WriteSelectionsCSV(f, selections)
	}); err != nil {
		return written, err
	}
	written++

	for _, result := range results.Tables {
		result := result
		if err := w.writeFile(dir, result.Name+".csv", func(f *os.File) error {
			return WriteResultCSV(f, result)
		}); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (w *Writer) writeMarkdown(dir string, results *kpi.Results, inv *inventory.Inventory) (int, error) {
	written := 0

	insights := NewInsightsReport(results).Generate()
	if err := os.WriteFile(filepath.Join(dir, FileInsights), []byte(insights), common.FilePermissionNormal); err != nil {
		return written, errors.Wrap(err, errors.ErrCodeOutputWrite, "Failed to write insights report").
			WithContext("file", FileInsights)
	}
	written++

	if inv != nil {
		md, err := inventory.NewReporter(inv).GenerateReport(inventory.ReportFormatMarkdown)
		if err != nil {
			return written, errors.Wrap(err, errors.ErrCodeOutputWrite, "Failed to render inventory report")
		}
		if err := os.WriteFile(filepath.Join(dir, FileInventory), []byte(md), common.FilePermissionNormal); err != nil {
			return written, errors.Wrap(err, errors.ErrCodeOutputWrite, "Failed to write inventory report").
				WithContext("file", FileInventory)
		}
		written++
	}
	return written, nil
}

func (w *Writer) writeInventoryJSON(dir string, inv *inventory.Inventory) error {
	if inv == nil {
		return nil
	}
	raw, err := inventory.NewReporter(inv).GenerateReport(inventory.ReportFormatJSON)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "Failed to render inventory JSON")
	}
	if err := os.WriteFile(filepath.Join(dir, FileInvJSON), []byte(raw), common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "Failed to write inventory JSON").
			WithContext("file", FileInvJSON)
	}
	return nil
}

func (w *Writer) writeFile(dir, name string, fn func(*os.File) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path) // #nosec G304 - path is under the managed output dir
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, fmt.Sprintf("Failed to create %s", name))
	}
	if err := fn(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrCodeOutputWrite, fmt.Sprintf("Failed to write %s", name))
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, fmt.Sprintf("Failed to flush %s", name))
	}
	return nil
}
