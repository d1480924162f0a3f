package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
	"surveyforge/pkg/models"
)

func sampleResults() *kpi.Results {
	return &kpi.Results{
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Tables: []*kpi.ResultTable{
			{
				Name:    kpi.TableAdoptionByYear,
				Columns: []string{"year", "respondents", "adopters", "adoption_rate"},
				Rows: [][]harmonize.Value{
					{harmonize.Number(2023), harmonize.Number(100), harmonize.Number(60), harmonize.Number(0.6)},
					{harmonize.Number(2024), harmonize.Number(120), harmonize.Number(90), harmonize.Number(0.75)},
				},
			},
			{
				Name:    kpi.TableMedianCompByUse,
				Columns: []string{"year", "ai_use_category", "respondents", "median_comp"},
				Rows: [][]harmonize.Value{
					{harmonize.Number(2024), harmonize.Text("Yes"), harmonize.Number(50), harmonize.Number(72500)},
					{harmonize.Number(2024), harmonize.Text("No"), harmonize.Number(0), harmonize.Null()},
				},
			},
			{
				Name:    kpi.TableTopSelections,
				Columns: []string{"year", "field", "token", "respondents", "rank"},
				Rows: [][]harmonize.Value{
					{harmonize.Number(2024), harmonize.Text(models.FieldLanguages), harmonize.Text("Python"), harmonize.Number(80), harmonize.Number(1)},
				},
			},
		},
	}
}

func sampleTable() *harmonize.Table {
	return &harmonize.Table{
		Fields: []models.FieldSpec{
			{Name: models.FieldResponseID, Type: models.FieldTypeText, Aliases: []string{"ResponseId"}},
			{Name: models.FieldCountry, Type: models.FieldTypeText, Aliases: []string{"Country"}},
			{Name: models.FieldCompTotal, Type: models.FieldTypeNumber, Aliases: []string{"CompTotal"}},
		},
		Derived: []string{models.CategoryAIUse},
		Records: []harmonize.Record{
			{
				Year:       2024,
				ResponseID: "1",
				Values: map[string]harmonize.Value{
					models.FieldResponseID: harmonize.Text("1"),
					models.FieldCountry:    harmonize.Text("Germany"),
					models.FieldCompTotal:  harmonize.Number(85000),
					models.CategoryAIUse:   harmonize.Text("Yes"),
				},
			},
			{
				Year:       2024,
				ResponseID: "2",
				Values: map[string]harmonize.Value{
					models.FieldResponseID: harmonize.Text("2"),
					models.CategoryAIUse:   harmonize.Text("Unknown"),
				},
			},
		},
	}
}

func TestWriteResultCSVNullsAreEmptyCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultCSV(&buf, sampleResults().ByName(kpi.TableMedianCompByUse)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "year,ai_use_category,respondents,median_comp", lines[0])
	assert.Equal(t, "2024,Yes,50,72500", lines[1])
	// the empty group's median is an empty cell, not 0
	assert.Equal(t, "2024,No,0,", lines[2])
}

func TestWriteHarmonizedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHarmonizedCSV(&buf, sampleTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "survey_year,response_id,country,comp_total,ai_use_category", lines[0])
	assert.Equal(t, "2024,1,Germany,85000,Yes", lines[1])
	// fields without values stay blank
	assert.Equal(t, "2024,2,,,Unknown", lines[2])
}

func TestWriteSelectionsCSV(t *testing.T) {
	var buf bytes.Buffer
	selections := []explode.Selection{
		{Year: 2024, ResponseID: "1", Field: models.FieldLanguages, Token: "Go"},
		{Year: 2024, ResponseID: "1", Field: models.FieldLanguages, Token: "Python"},
	}
	require.NoError(t, WriteSelectionsCSV(&buf, selections))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "survey_year,response_id,field,token", lines[0])
	assert.Equal(t, "2024,1,languages,Go", lines[1])
}

func TestInsightsReport(t *testing.T) {
	doc := NewInsightsReport(sampleResults()).Generate()

	assert.Contains(t, doc, "# Survey Insights")
	assert.Contains(t, doc, "## Highlights")
	assert.Contains(t, doc, "**75.0%**")
	assert.Contains(t, doc, "+15.0 pts vs 2023")
	assert.Contains(t, doc, "**Python** was the most used language")
	assert.Contains(t, doc, "## AI Adoption by Year")
	// null median renders as n/a in markdown
	assert.Contains(t, doc, "| n/a |")
}

func TestWriterWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter([]string{"csv", "markdown"}, nil)

	err := w.WriteAll(dir, sampleTable(), []explode.Selection{
		{Year: 2024, ResponseID: "1", Field: models.FieldLanguages, Token: "Go"},
	}, sampleResults(), nil)
	require.NoError(t, err)

	expected := []string{
		FileHarmonized,
		FileSelections,
		FileInsights,
		kpi.TableAdoptionByYear + ".csv",
		kpi.TableMedianCompByUse + ".csv",
		kpi.TableTopSelections + ".csv",
	}
	for _, name := range expected {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}

	// markdown-only inventory file is skipped when no inventory given
	_, err = os.Stat(filepath.Join(dir, FileInventory))
	assert.True(t, os.IsNotExist(err))
}

func TestWriterRespectsFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter([]string{"markdown"}, nil)

	require.NoError(t, w.WriteAll(dir, sampleTable(), nil, sampleResults(), nil))

	_, err := os.Stat(filepath.Join(dir, FileInsights))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, FileHarmonized))
	assert.True(t, os.IsNotExist(err))
}
