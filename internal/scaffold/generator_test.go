package scaffold

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"surveyforge/internal/config"
	"surveyforge/pkg/models"
)

func TestGenerateProject(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(dir, &Config{
		ProjectName:   "dev-survey-analytics",
		Years:         []int{2023, 2024},
		WithWarehouse: true,
		WithSample:    true,
	})

	written, err := gen.GenerateProject()
	require.NoError(t, err)

	expected := []string{
		"surveyforge.yaml",
		"mappings.yaml",
		"regions.yaml",
		".gitignore",
		"README.md",
		filepath.Join("data", "raw", "survey_2023.csv"),
		filepath.Join("data", "raw", "survey_2024.csv"),
	}
	assert.Equal(t, expected, written)

	for _, rel := range written {
		_, err := os.Stat(filepath.Join(dir, rel))
		assert.NoError(t, err, "expected %s to exist", rel)
	}

	// Output directory is part of the layout even before the first run
	info, err := os.Stat(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGeneratedConfigParses(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(dir, &Config{
		ProjectName:   "dev-survey-analytics",
		Years:         []int{2022, 2023, 2024},
		WithWarehouse: true,
	})

	_, err := gen.GenerateConfig()
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "surveyforge.yaml"))
	require.NoError(t, err)

	var cfg models.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	require.Len(t, cfg.Datasets, 3)
	assert.Equal(t, 2022, cfg.Datasets[0].Year)
	assert.Equal(t, "data/raw/survey_2022.csv", cfg.Datasets[0].Path)
	assert.Equal(t, "out", cfg.Output.Directory)
	assert.Equal(t, "surveyforge.duckdb", cfg.Output.Store)
	assert.Equal(t, []string{"csv", "markdown"}, cfg.Output.Formats)
	assert.Equal(t, "mappings.yaml", cfg.Pipeline.Mappings)
	assert.Equal(t, 10, cfg.Pipeline.TopN)
	assert.Equal(t, models.DefaultCompensationCeiling, cfg.Pipeline.Compensation.Ceiling)
	assert.Equal(t, "SURVEYS", cfg.Snowflake.Database)
	assert.Equal(t, "keyring:warehouse-password", cfg.Snowflake.Password)
}

func TestGeneratedConfigWithoutWarehouse(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(dir, &Config{
		ProjectName: "local-only",
		Years:       []int{2024},
	})

	_, err := gen.GenerateConfig()
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "surveyforge.yaml"))
	require.NoError(t, err)

	var cfg models.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	assert.Empty(t, cfg.Snowflake.Account)
	assert.NotContains(t, string(data), "snowflake:")
}

func TestGeneratedMappingsValidate(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(dir, &Config{ProjectName: "p", Years: []int{2024}})

	_, err := gen.GenerateMappings()
	require.NoError(t, err)

	// The scaffolded document must load through the same path real
	// mapping files do
	mapping, err := config.LoadMappings(filepath.Join(dir, "mappings.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMappings().Fields, mapping.Fields)
	assert.Equal(t, config.DefaultMappings().Categories, mapping.Categories)
}

func TestGeneratedRegionsLoad(t *testing.T) {
	dir := t.TempDir()

	gen := NewGenerator(dir, &Config{ProjectName: "p", Years: []int{2024}})

	_, err := gen.GenerateRegions()
	require.NoError(t, err)

	rc, err := config.LoadRegions(filepath.Join(dir, "regions.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Other", rc.Fallback)
	assert.Equal(t, "Europe", rc.Regions["Germany"])
}

func TestGeneratedSampleDataIsWellFormed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "raw"), 0o755))

	gen := NewGenerator(dir, &Config{ProjectName: "p", Years: []int{2024}})

	rel, err := gen.GenerateSampleData(2024)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, rel))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Greater(t, len(records), 1, "sample needs a header and data rows")
	width := len(records[0])
	for i, rec := range records[1:] {
		assert.Len(t, rec, width, "row %d has a ragged width", i+1)
	}

	// The sample must exercise the phrase-coded numeric answers
	assert.Contains(t, string(mustRead(t, filepath.Join(dir, rel))), "Less than 1 year")
	assert.Contains(t, string(mustRead(t, filepath.Join(dir, rel))), "More than 50 years")
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
