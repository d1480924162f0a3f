package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"surveyforge/pkg/models"
)

// SetupResult carries the wizard output. The password is returned raw;
// the caller decides whether to file it in the credential manager and
// rewrite the config reference.
type SetupResult struct {
	Config          *models.Config
	KeyringPassword bool
}

// SetupWizard walks a first-time user through a working configuration
type SetupWizard struct {
	currentStep int
	totalSteps  int
}

// NewSetupWizard creates a new setup wizard
func NewSetupWizard() *SetupWizard {
	return &SetupWizard{
		currentStep: 1,
		totalSteps:  5,
	}
}

// Run executes the setup wizard
func (w *SetupWizard) Run() (*SetupResult, error) {
	ShowHeader("SurveyForge - Project Setup")

	result := &SetupResult{Config: &models.Config{}}

	steps := []func(*SetupResult) error{
		w.configureDatasetsStep,
		w.configureOutputStep,
		w.configureWarehouseStep,
		w.configureRepositoryStep,
		w.reviewConfiguration,
	}
	for _, step := range steps {
		if err := step(result); err != nil {
			if err == terminal.InterruptErr {
				return nil, fmt.Errorf("setup cancelled")
			}
			return nil, err
		}
	}

	return result, nil
}

func (w *SetupWizard) configureDatasetsStep(result *SetupResult) error {
	w.showProgress("Survey Datasets")

	for {
		questions := []*survey.Question{
			{
				Name: "year",
				Prompt: &survey.Input{
					Message: "Survey year:",
					Help:    "The year this export covers (e.g., 2024)",
				},
				Validate: validateYear,
			},
			{
				Name: "path",
				Prompt: &survey.Input{
					Message: "CSV path:",
					Help:    "Path to the raw survey export for this year",
				},
				Validate: survey.Required,
			},
			{
				Name: "label",
				Prompt: &survey.Input{
					Message: "Label (optional):",
					Help:    "Display label, e.g. \"Developer Survey 2024\"",
				},
			},
		}

		answers := struct {
			Year  string
			Path  string
			Label string
		}{}

		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}

		year, _ := strconv.Atoi(strings.TrimSpace(answers.Year))
		result.Config.Datasets = append(result.Config.Datasets, models.Dataset{
			Year:  year,
			Path:  answers.Path,
			Label: answers.Label,
		})

		more := false
		prompt := &survey.Confirm{
			Message: "Add another survey year?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &more); err != nil {
			return err
		}
		if !more {
			break
		}
	}

	w.currentStep++
	return nil
}

func (w *SetupWizard) configureOutputStep(result *SetupResult) error {
	w.showProgress("Output Settings")

	questions := []*survey.Question{
		{
			Name: "directory",
			Prompt: &survey.Input{
				Message: "Output directory:",
				Default: "out",
				Help:    "Published KPI tables and reports land here",
			},
			Validate: survey.Required,
		},
		{
			Name: "formats",
			Prompt: &survey.MultiSelect{
				Message: "Output formats:",
				Options: []string{"csv", "markdown"},
				Default: []string{"csv", "markdown"},
				Help:    "Formats written for each result table",
			},
		},
		{
			Name: "store",
			Prompt: &survey.Confirm{
				Message: "Keep a local DuckDB store of runs?",
				Default: true,
				Help:    "Enables ad hoc SQL over harmonized rows and past runs",
			},
		},
	}

	answers := struct {
		Directory string
		Formats   []string
		Store     bool
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	result.Config.Output = models.Output{
		Directory: answers.Directory,
		Formats:   answers.Formats,
	}
	if answers.Store {
		storePath := "surveyforge.duckdb"
		prompt := &survey.Input{
			Message: "Store file:",
			Default: storePath,
		}
		if err := survey.AskOne(prompt, &storePath); err != nil {
			return err
		}
		result.Config.Output.Store = storePath
	}

	w.currentStep++
	return nil
}

func (w *SetupWizard) configureWarehouseStep(result *SetupResult) error {
	w.showProgress("Warehouse (optional)")

	useWarehouse := false
	prompt := &survey.Confirm{
		Message: "Publish result tables to Snowflake?",
		Default: false,
	}
	if err := survey.AskOne(prompt, &useWarehouse); err != nil {
		return err
	}
	if !useWarehouse {
		w.currentStep++
		return nil
	}

	questions := []*survey.Question{
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Snowflake Account:",
				Help:    "Your Snowflake account identifier (e.g., xy12345.us-east-1)",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
				Help:    "Can be stored in the system keyring in the next step",
			},
			Validate: survey.Required,
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Database:",
				Default: "SURVEYS",
			},
			Validate: survey.Required,
		},
		{
			Name: "schema",
			Prompt: &survey.Input{
				Message: "Schema:",
				Default: "ANALYTICS",
			},
			Validate: survey.Required,
		},
		{
			Name: "warehouse",
			Prompt: &survey.Input{
				Message: "Warehouse:",
				Default: "COMPUTE_WH",
			},
			Validate: survey.Required,
		},
		{
			Name: "role",
			Prompt: &survey.Input{
				Message: "Role:",
				Default: "SYSADMIN",
			},
			Validate: survey.Required,
		},
	}

	answers := struct {
		Account   string
		Username  string
		Password  string
		Database  string
		Schema    string
		Warehouse string
		Role      string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	result.Config.Snowflake = models.Snowflake{
		Account:   answers.Account,
		Username:  answers.Username,
		Password:  answers.Password,
		Database:  answers.Database,
		Schema:    answers.Schema,
		Warehouse: answers.Warehouse,
		Role:      answers.Role,
	}

	useKeyring := true
	keyringPrompt := &survey.Confirm{
		Message: "Store the password in the system keyring?",
		Default: true,
		Help:    "The config file then references the keyring instead of the raw value",
	}
	if err := survey.AskOne(keyringPrompt, &useKeyring); err != nil {
		return err
	}
	result.KeyringPassword = useKeyring

	w.currentStep++
	return nil
}

func (w *SetupWizard) configureRepositoryStep(result *SetupResult) error {
	w.showProgress("Dataset Repository (optional)")

	useRepo := false
	prompt := &survey.Confirm{
		Message: "Sync raw datasets from a git repository?",
		Default: false,
	}
	if err := survey.AskOne(prompt, &useRepo); err != nil {
		return err
	}
	if !useRepo {
		w.currentStep++
		return nil
	}

	questions := []*survey.Question{
		{
			Name: "url",
			Prompt: &survey.Input{
				Message: "Git URL:",
				Help:    "SSH or HTTPS URL of the repository holding raw CSVs",
			},
			Validate: survey.Required,
		},
		{
			Name: "name",
			Prompt: &survey.Input{
				Message: "Repository name:",
				Help:    "Cache directory name; derived from the URL when empty",
			},
		},
		{
			Name: "branch",
			Prompt: &survey.Input{
				Message: "Branch:",
				Default: "main",
			},
			Validate: survey.Required,
		},
		{
			Name: "path",
			Prompt: &survey.Input{
				Message: "Data subdirectory:",
				Default: "data/raw",
				Help:    "Subdirectory within the repository holding data files",
			},
		},
	}

	answers := struct {
		URL    string
		Name   string
		Branch string
		Path   string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	result.Config.Repositories = append(result.Config.Repositories, models.Repository{
		Name:   answers.Name,
		GitURL: answers.URL,
		Branch: answers.Branch,
		Path:   answers.Path,
	})

	w.currentStep++
	return nil
}

func (w *SetupWizard) reviewConfiguration(result *SetupResult) error {
	w.showProgress("Review Configuration")

	config := result.Config

	fmt.Println("\n" + ColorInfo("Configuration Summary:"))
	fmt.Println(strings.Repeat("-", 50))

	fmt.Println(ColorBold("\nDatasets:"))
	for _, d := range config.Datasets {
		fmt.Printf("  %d: %s\n", d.Year, d.Path)
	}

	fmt.Println(ColorBold("\nOutput:"))
	fmt.Printf("  Directory: %s\n", config.Output.Directory)
	fmt.Printf("  Formats:   %s\n", strings.Join(config.Output.Formats, ", "))
	if config.Output.Store != "" {
		fmt.Printf("  Store:     %s\n", config.Output.Store)
	}

	if config.Snowflake.Account != "" {
		fmt.Println(ColorBold("\nWarehouse:"))
		fmt.Printf("  Account:   %s\n", config.Snowflake.Account)
		fmt.Printf("  Username:  %s\n", config.Snowflake.Username)
		fmt.Printf("  Database:  %s.%s\n", config.Snowflake.Database, config.Snowflake.Schema)
		fmt.Printf("  Warehouse: %s\n", config.Snowflake.Warehouse)
	}

	if len(config.Repositories) > 0 {
		fmt.Println(ColorBold("\nDataset Repositories:"))
		for _, r := range config.Repositories {
			fmt.Printf("  %s (%s)\n", r.GitURL, r.Branch)
		}
	}

	fmt.Println(strings.Repeat("-", 50))

	confirm := false
	prompt := &survey.Confirm{
		Message: "Save this configuration?",
		Default: true,
	}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled")
	}

	return nil
}

func (w *SetupWizard) showProgress(step string) {
	fmt.Printf("\n%s [Step %d/%d] %s\n\n",
		ColorProgress("►"),
		w.currentStep,
		w.totalSteps,
		ColorBold(step),
	)
}

// validateYear accepts four-digit survey years
func validateYear(val interface{}) error {
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("year must be a string")
	}
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("year must be a number")
	}
	if year < 2000 || year > 2100 {
		return fmt.Errorf("year %d is outside the expected range", year)
	}
	return nil
}
