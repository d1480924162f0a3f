package explode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/harmonize"
	"surveyforge/internal/observability"
	"surveyforge/pkg/models"
)

func TestTokens(t *testing.T) {
	e := NewExploder("NA", nil, nil)

	tests := []struct {
		name     string
		value    harmonize.Value
		expected []string
	}{
		{
			name:     "plain list",
			value:    harmonize.Text("Python;JavaScript;SQL"),
			expected: []string{"Python", "JavaScript", "SQL"},
		},
		{
			name:     "whitespace around tokens",
			value:    harmonize.Text("Python;JavaScript; SQL "),
			expected: []string{"Python", "JavaScript", "SQL"},
		},
		{
			name:     "single selection no delimiter",
			value:    harmonize.Text("Go"),
			expected: []string{"Go"},
		},
		{
			name:     "null yields nothing",
			value:    harmonize.Null(),
			expected: nil,
		},
		{
			name:     "missing placeholder dropped",
			value:    harmonize.Text("NA"),
			expected: nil,
		},
		{
			name:     "missing placeholder case-insensitive",
			value:    harmonize.Text("na"),
			expected: nil,
		},
		{
			name:     "consecutive delimiters dropped",
			value:    harmonize.Text(";;"),
			expected: nil,
		},
		{
			name:     "empties between real tokens dropped",
			value:    harmonize.Text("Go;;Rust; ;NA"),
			expected: []string{"Go", "Rust"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Tokens(tt.value))
		})
	}
}

func TestExplode(t *testing.T) {
	table := &harmonize.Table{
		Fields: []models.FieldSpec{
			{Name: models.FieldCountry, Type: models.FieldTypeText, Aliases: []string{"Country"}},
			{Name: models.FieldLanguages, Type: models.FieldTypeMultiselect, Aliases: []string{"LanguageHaveWorkedWith"}},
			{Name: models.FieldDatabases, Type: models.FieldTypeMultiselect, Aliases: []string{"DatabaseHaveWorkedWith"}},
		},
		Records: []harmonize.Record{
			{
				Year:       2024,
				ResponseID: "1",
				Values: map[string]harmonize.Value{
					models.FieldCountry:   harmonize.Text("Germany"),
					models.FieldLanguages: harmonize.Text("Go;Python"),
					models.FieldDatabases: harmonize.Text("PostgreSQL"),
				},
			},
			{
				Year:       2024,
				ResponseID: "2",
				Values: map[string]harmonize.Value{
					models.FieldLanguages: harmonize.Null(),
					models.FieldDatabases: harmonize.Text("NA"),
				},
			},
		},
	}

	metrics := observability.NewRunMetrics()
	selections := NewExploder("NA", nil, metrics).Explode(table)

	require.Len(t, selections, 3)
	assert.Equal(t, Selection{Year: 2024, ResponseID: "1", Field: models.FieldLanguages, Token: "Go"}, selections[0])
	assert.Equal(t, Selection{Year: 2024, ResponseID: "1", Field: models.FieldLanguages, Token: "Python"}, selections[1])
	assert.Equal(t, Selection{Year: 2024, ResponseID: "1", Field: models.FieldDatabases, Token: "PostgreSQL"}, selections[2])

	// respondent 2 contributes zero selections but is still a record
	assert.Len(t, table.Records, 2)
	assert.Equal(t, float64(3), metrics.SelectionsExploded.Value())
}
