package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"surveyforge/internal/common"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

func GetConfigPath() string {
	// Check for environment variable first
	if configPath := os.Getenv("SURVEYFORGE_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".surveyforge")
}

func GetConfigFile() string {
	// Check for environment variable first
	if configFile := os.Getenv("SURVEYFORGE_CONFIG"); configFile != "" {
		// Validate the path to prevent directory traversal
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			// Fall back to default if invalid
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

func Load() (*models.Config, error) {
	return LoadFile(GetConfigFile())
}

// LoadFile reads a config file, applying defaults for unset values.
// A missing file yields an empty config so first-run commands still work.
func LoadFile(path string) (*models.Config, error) {
	cleanedPath, err := common.CleanPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		cfg := &models.Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&config)
	return &config, nil
}

func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := GetConfigFile()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// ApplyDefaults fills unset pipeline and output values
func ApplyDefaults(cfg *models.Config) {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "out"
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"csv", "markdown"}
	}
	if cfg.Pipeline.MissingToken == "" {
		cfg.Pipeline.MissingToken = models.DefaultMissingToken
	}
	if cfg.Pipeline.TopN <= 0 {
		cfg.Pipeline.TopN = models.DefaultTopN
	}
	if cfg.Pipeline.Compensation.Ceiling <= 0 {
		cfg.Pipeline.Compensation.Ceiling = models.DefaultCompensationCeiling
	}
}

// ValidateForRun checks the config holds everything a pipeline run needs
func ValidateForRun(cfg *models.Config) error {
	if len(cfg.Datasets) == 0 {
		return errors.New(errors.ErrCodeConfigMissing, "No datasets configured").
			WithSeverity(errors.SeverityCritical).
			WithSuggestions(
				"Add dataset entries to the config file",
				"Run 'surveyforge setup' to configure datasets",
			)
	}

	seen := make(map[int]bool, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		if ds.Year <= 0 {
			return errors.ConfigError("Dataset entry is missing a survey year", "datasets.year")
		}
		if ds.Path == "" {
			return errors.ConfigError(
				fmt.Sprintf("Dataset for year %d is missing a path", ds.Year), "datasets.path")
		}
		if seen[ds.Year] {
			return errors.ConfigError(
				fmt.Sprintf("Duplicate dataset entry for year %d", ds.Year), "datasets.year")
		}
		seen[ds.Year] = true
	}

	return nil
}
