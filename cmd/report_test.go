package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/config"
	"surveyforge/internal/kpi"
	"surveyforge/pkg/models"
)

// captureStdout runs fn and returns what it printed
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestKnownTable(t *testing.T) {
	assert.True(t, knownTable(kpi.TableAdoptionByYear))
	assert.True(t, knownTable(kpi.TableTopSelections))
	assert.False(t, knownTable("adoption"))
	assert.False(t, knownTable(""))
}

func TestMarkdownTable(t *testing.T) {
	records := [][]string{
		{"year", "respondents", "adoption_rate"},
		{"2023", "65437", "0.62"},
		{"2022", "0", ""},
	}

	expected := "| year | respondents | adoption_rate |\n" +
		"|---|---|---|\n" +
		"| 2023 | 65437 | 0.62 |\n" +
		"| 2022 | 0 |  |\n"

	assert.Equal(t, expected, markdownTable(records))
	assert.Equal(t, "", markdownTable(nil))
}

func TestMarkdownTableEscapesPipes(t *testing.T) {
	records := [][]string{
		{"field", "token"},
		{"languages", "F#|OCaml"},
	}
	out := markdownTable(records)
	assert.Contains(t, out, `F#\|OCaml`)
}

func TestReadResultCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adoption_by_year.csv")
	require.NoError(t, os.WriteFile(path, []byte("year,respondents\n2023,65437\n"), 0o644))

	records, err := readResultCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"year", "respondents"}, records[0])
	assert.Equal(t, []string{"2023", "65437"}, records[1])
}

func TestReadResultCSVMissing(t *testing.T) {
	_, err := readResultCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read published table")
}

func TestRunReportRendersTable(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("SURVEYFORGE_CONFIG", filepath.Join(tempDir, "config.yaml"))

	outDir := filepath.Join(tempDir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(outDir, kpi.TableAdoptionByYear+".csv"),
		[]byte("year,respondents,adopters,adoption_rate\n2023,65437,40571,0.62\n"),
		0o644))

	require.NoError(t, config.Save(&models.Config{
		Datasets: []models.Dataset{{Year: 2023, Path: "survey_2023.csv"}},
		Output:   models.Output{Directory: outDir},
	}))

	oldTable, oldMarkdown := reportTable, reportMarkdown
	reportTable, reportMarkdown = kpi.TableAdoptionByYear, false
	defer func() { reportTable, reportMarkdown = oldTable, oldMarkdown }()

	output := captureStdout(t, func() {
		runReport(nil, []string{})
	})

	assert.Contains(t, output, kpi.TableAdoptionByYear)
	assert.Contains(t, output, "adoption_rate")
	assert.Contains(t, output, "65437")
	assert.Contains(t, output, "0.62")
}

func TestRunReportMarkdown(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("SURVEYFORGE_CONFIG", filepath.Join(tempDir, "config.yaml"))

	outDir := filepath.Join(tempDir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(outDir, kpi.TableSentimentByYear+".csv"),
		[]byte("year,sentiment,respondents,share\n2024,Positive,31002,0.7021\n"),
		0o644))

	require.NoError(t, config.Save(&models.Config{
		Datasets: []models.Dataset{{Year: 2024, Path: "survey_2024.csv"}},
		Output:   models.Output{Directory: outDir},
	}))

	oldTable, oldMarkdown := reportTable, reportMarkdown
	reportTable, reportMarkdown = kpi.TableSentimentByYear, true
	defer func() { reportTable, reportMarkdown = oldTable, oldMarkdown }()

	output := captureStdout(t, func() {
		runReport(nil, []string{})
	})

	assert.Contains(t, output, "## "+kpi.TableSentimentByYear)
	assert.Contains(t, output, "| year | sentiment | respondents | share |")
	assert.Contains(t, output, "| 2024 | Positive | 31002 | 0.7021 |")
}
