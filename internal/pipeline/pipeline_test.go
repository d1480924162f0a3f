package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/config"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
	"surveyforge/internal/runledger"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

const survey2022 = `Respondent,Country,YearsCode,YearsCodingProf,Salary,LanguageWorkedWith
r1,Germany,10,8,65000,Go;Python
r2,India,3,2,12000,Python
r3,United States of America,Less than 1 year,NA,NA,JavaScript;NA
`

const survey2023 = `ResponseId,Country,YearsCode,YearsCodePro,ConvertedCompYearly,AISelect,AISent,LanguageHaveWorkedWith
a1,Germany,12,10,78000,Yes,Favorable,Go;Rust
a2,Brazil,6,4,30000,"No, and I don't plan to",Unfavorable,JavaScript
a3,Germany,2,1,NA,"No, but I plan to soon",Indifferent,Python;SQL
`

const survey2024 = `ResponseId,Country,YearsCode,YearsCodePro,ConvertedCompYearly,AISelect,AISent,LanguageHaveWorkedWith
b1,France,More than 50 years,25,95000,Yes,Very favorable,Go;Python;SQL
b2,India,5,3,2500000,Yes,Favorable,Python
b3,Canada,8,6,88000,No,Unfavorable,TypeScript;JavaScript
b4,Germany,1,0,15000,Yes,Favorable,Go
ragged,extra,row
`

func writeDatasets(t *testing.T, dir string) []models.Dataset {
	t.Helper()

	files := map[int]string{
		2022: survey2022,
		2023: survey2023,
		2024: survey2024,
	}

	var datasets []models.Dataset
	for _, year := range []int{2022, 2023, 2024} {
		path := filepath.Join(dir, fmt.Sprintf("survey_%d.csv", year))
		require.NoError(t, os.WriteFile(path, []byte(files[year]), 0o644))
		datasets = append(datasets, models.Dataset{Year: year, Path: path})
	}
	return datasets
}

func newTestConfig(t *testing.T, dir string) *models.Config {
	t.Helper()

	cfg := &models.Config{
		Datasets: writeDatasets(t, dir),
		Output: models.Output{
			Directory: filepath.Join(dir, "out"),
			Formats:   []string{"csv", "markdown"},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func newTestPipeline(t *testing.T, cfg *models.Config, dir string) *Pipeline {
	t.Helper()

	handler, err := errors.NewErrorHandler(errors.ErrorHandlerConfig{Quiet: true})
	require.NoError(t, err)

	p := New(cfg, nil, handler)
	p.SetLedger(runledger.NewAtPath(filepath.Join(dir, "runs.json")))
	return p
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	var stages []string
	result, err := p.Run(context.Background(), Options{
		Progress: func(stage string, current, total int) {
			stages = append(stages, stage)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2022, 2023, 2024}, result.Years)
	assert.Equal(t, 10, result.Records)
	assert.False(t, result.DryRun)
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.StorePath)

	assert.Equal(t,
		[]string{"ingest", "inventory", "harmonize", "derive", "explode", "aggregate", "write", "publish"},
		stages)

	// 2022 predates the usage question, so its fields drifted
	assert.Contains(t, result.Drifts, harmonize.Drift{Year: 2022, Field: models.FieldAISelect})
	assert.NotContains(t, result.Drifts, harmonize.Drift{Year: 2023, Field: models.FieldAISelect})

	// The ragged 2024 line and the out-of-window compensation are
	// recovered incidents, not failures
	assert.Equal(t, 1.0, result.Metrics["ragged_rows"])
	assert.Equal(t, 1.0, result.Metrics["outliers_rejected"])
	assert.Greater(t, result.Warnings, 2)

	outDir := cfg.Output.Directory
	for _, name := range []string{
		"harmonized.csv",
		"selections.csv",
		kpi.TableAdoptionByYear + ".csv",
		kpi.TableAdoptionByRegion + ".csv",
		kpi.TableSentimentByYear + ".csv",
		kpi.TableMedianCompByUse + ".csv",
		kpi.TableExperienceDist + ".csv",
		kpi.TableTopSelections + ".csv",
		"insights.md",
		"data_inventory.md",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, "expected %s to be published", name)
	}

	// The rejected outlier is excluded from the median input, not from
	// the harmonized data itself
	harmonized := readCSV(t, filepath.Join(outDir, "harmonized.csv"))
	outlierKept := false
	for _, rec := range harmonized {
		for _, cell := range rec {
			if cell == "2500000" {
				outlierKept = true
			}
		}
	}
	assert.True(t, outlierKept, "outlier compensation should stay in harmonized.csv")

	// No staging or backup residue
	leftovers, err := filepath.Glob(filepath.Join(dir, ".staging-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	_, err = os.Stat(outDir + ".previous")
	assert.True(t, os.IsNotExist(err))

	// Every stage got timed
	assert.NotEmpty(t, result.Stages)
}

func TestRunAdoptionRates(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	_, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	records := readCSV(t, filepath.Join(cfg.Output.Directory, kpi.TableAdoptionByYear+".csv"))
	require.Len(t, records, 4)
	assert.Equal(t, []string{"year", "respondents", "adopters", "adoption_rate"}, records[0])

	// 2022 has no classified respondents at all: counts are zero and
	// the rate cell is blank, never a zero
	assert.Equal(t, []string{"2022", "0", "0", ""}, records[1])
	assert.Equal(t, []string{"2023", "3", "1", "0.3333"}, records[2])
	assert.Equal(t, []string{"2024", "4", "3", "0.75"}, records[3])
}

func TestRunReplacesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	_, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	// A file from an older run must not survive the next publish
	stale := filepath.Join(cfg.Output.Directory, "stale_table.csv")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err = p.Run(context.Background(), Options{})
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Output.Directory, "harmonized.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(cfg.Output.Directory + ".previous")
	assert.True(t, os.IsNotExist(err))
}

func TestRunFailureKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	_, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	before, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "harmonized.csv"))
	require.NoError(t, err)

	// A missing source file is fatal and must abort before anything is
	// published
	cfg.Datasets = append(cfg.Datasets, models.Dataset{
		Year: 2025,
		Path: filepath.Join(dir, "survey_2025.csv"),
	})

	_, err = p.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	after, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "harmonized.csv"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	result, err := p.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 10, result.Records)
	require.NotNil(t, result.Results)
	assert.NotNil(t, result.Results.ByName(kpi.TableAdoptionByYear))

	// Nothing written, nothing recorded
	_, err = os.Stat(cfg.Output.Directory)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "runs.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunYearFilter(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	result, err := p.Run(context.Background(), Options{Years: []int{2023}})
	require.NoError(t, err)

	assert.Equal(t, []int{2023}, result.Years)
	assert.Equal(t, 3, result.Records)

	records := readCSV(t, filepath.Join(cfg.Output.Directory, "harmonized.csv"))
	for _, rec := range records[1:] {
		assert.Equal(t, "2023", rec[0])
	}
}

func TestRunUnknownYear(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	_, err := p.Run(context.Background(), Options{Years: []int{2030}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No dataset configured")
}

func TestRunLedgerEntries(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	ledger := runledger.NewAtPath(filepath.Join(dir, "runs.json"))

	handler, err := errors.NewErrorHandler(errors.ErrorHandlerConfig{Quiet: true})
	require.NoError(t, err)
	p := New(cfg, nil, handler)
	p.SetLedger(ledger)

	result, err := p.Run(context.Background(), Options{})
	require.NoError(t, err)

	cfg.Datasets = append(cfg.Datasets, models.Dataset{
		Year: 2025,
		Path: filepath.Join(dir, "missing.csv"),
	})
	_, err = p.Run(context.Background(), Options{})
	require.Error(t, err)

	entries, err := ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first: the failed run, then the completed one
	assert.Equal(t, runledger.StatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].Error, "not found")
	assert.Equal(t, runledger.StatusCompleted, entries[1].Status)
	assert.Equal(t, result.RunID, entries[1].RunID)
	assert.Equal(t, 10, entries[1].Records)
	assert.Equal(t, []int{2022, 2023, 2024}, entries[1].Years)
}

func TestRunNoDatasets(t *testing.T) {
	dir := t.TempDir()
	cfg := &models.Config{}
	config.ApplyDefaults(cfg)
	p := newTestPipeline(t, cfg, dir)

	_, err := p.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No datasets configured")
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	p := newTestPipeline(t, cfg, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Options{})
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "cancel")

	// The aborted run still must not publish anything
	_, statErr := os.Stat(cfg.Output.Directory)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFilterDatasets(t *testing.T) {
	datasets := []models.Dataset{
		{Year: 2022, Path: "a.csv"},
		{Year: 2023, Path: "b.csv"},
		{Year: 2024, Path: "c.csv"},
	}

	t.Run("no filter keeps all", func(t *testing.T) {
		out, err := filterDatasets(datasets, nil)
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("subset", func(t *testing.T) {
		out, err := filterDatasets(datasets, []int{2024, 2022})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 2022, out[0].Year)
		assert.Equal(t, 2024, out[1].Year)
	})

	t.Run("unknown year", func(t *testing.T) {
		_, err := filterDatasets(datasets, []int{2023, 2031})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2031")
	})
}
