//go:build integration
// +build integration

package test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationCLIWorkflow builds the surveyforge binary and exercises
// the scaffold-to-report workflow end to end through the real CLI.
func TestIntegrationCLIWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tempDir, err := os.MkdirTemp("", "surveyforge-integration")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	// Isolate the ledger and config from the real home directory
	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tempDir)
	defer os.Setenv("HOME", originalHome)

	buildCmd := exec.Command("go", "build", "-o", filepath.Join(tempDir, "surveyforge"), ".")
	buildCmd.Dir = ".."
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "Failed to build CLI: %s", string(output))

	cliPath := filepath.Join(tempDir, "surveyforge")
	projectDir := filepath.Join(tempDir, "study")

	t.Run("ShowHelp", func(t *testing.T) {
		cmd := exec.Command(cliPath, "--help")
		output, err := cmd.CombinedOutput()
		assert.NoError(t, err)
		assert.Contains(t, string(output), "surveyforge")
		assert.Contains(t, string(output), "run")
		assert.Contains(t, string(output), "inventory")
		assert.Contains(t, string(output), "repo")
	})

	t.Run("InitScaffoldsProject", func(t *testing.T) {
		cmd := exec.Command(cliPath, "init", "--years", "2023,2024", projectDir)
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, string(output))

		for _, file := range []string{
			"surveyforge.yaml",
			"mappings.yaml",
			"regions.yaml",
			filepath.Join("data", "raw", "survey_2023.csv"),
			filepath.Join("data", "raw", "survey_2024.csv"),
		} {
			_, err := os.Stat(filepath.Join(projectDir, file))
			assert.NoError(t, err, "expected %s to exist", file)
		}
	})

	t.Run("InventoryProfilesDatasets", func(t *testing.T) {
		cmd := exec.Command(cliPath, "inventory", "--json")
		cmd.Dir = projectDir
		// Log lines go to stderr, so only stdout carries the JSON document.
		output, err := cmd.Output()
		require.NoError(t, err, string(output))

		var inv struct {
			Datasets []struct {
				Year int `json:"year"`
				Rows int `json:"rows"`
			} `json:"datasets"`
		}
		require.NoError(t, json.Unmarshal(output, &inv))
		require.Len(t, inv.Datasets, 2)
		assert.Equal(t, 2023, inv.Datasets[0].Year)
		assert.Greater(t, inv.Datasets[0].Rows, 0)
	})

	t.Run("RunPublishesOutputs", func(t *testing.T) {
		cmd := exec.Command(cliPath, "run", "--no-store")
		cmd.Dir = projectDir
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, string(output))
		assert.Contains(t, string(output), "SUCCESS")

		for _, file := range []string{
			"harmonized.csv",
			"selections.csv",
			"adoption_by_year.csv",
			"insights.md",
			"data_inventory.md",
		} {
			_, err := os.Stat(filepath.Join(projectDir, "out", file))
			assert.NoError(t, err, "expected out/%s to exist", file)
		}
	})

	t.Run("RunsShowsLedger", func(t *testing.T) {
		cmd := exec.Command(cliPath, "runs")
		cmd.Dir = projectDir
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, string(output))
		assert.Contains(t, string(output), "completed")
		assert.Contains(t, string(output), "2023,2024")
	})

	t.Run("ReportRendersTable", func(t *testing.T) {
		cmd := exec.Command(cliPath, "report", "--table", "adoption_by_year")
		cmd.Dir = projectDir
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, string(output))
		assert.Contains(t, string(output), "adoption_by_year")
		assert.Contains(t, string(output), "adoption_rate")
	})

	t.Run("SecondRunReplacesOutputs", func(t *testing.T) {
		stale := filepath.Join(projectDir, "out", "stale_table.csv")
		require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

		cmd := exec.Command(cliPath, "run", "--no-store")
		cmd.Dir = projectDir
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, string(output))

		_, err = os.Stat(stale)
		assert.True(t, os.IsNotExist(err))
	})
}
