package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"surveyforge/internal/config"
	"surveyforge/internal/gitrepo"
	"surveyforge/internal/security"
	"surveyforge/internal/ui"
)

// warehouseCredentialName is the credential the config references as
// "keyring:warehouse-password"
const warehouseCredentialName = "warehouse-password"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-run configuration",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	ui.ShowLogo()

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	result, err := ui.NewSetupWizard().Run()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	cfg := result.Config

	// Cache names default to the repository name in the URL
	for i, repo := range cfg.Repositories {
		if repo.Name == "" {
			cfg.Repositories[i].Name = gitrepo.RepoNameFromURL(repo.GitURL)
		}
	}

	if result.KeyringPassword && cfg.Snowflake.Password != "" {
		if err := storeWarehousePassword(cfg.Snowflake.Password, cfg.Snowflake.Account, cfg.Snowflake.Username); err != nil {
			ui.ShowWarning(fmt.Sprintf("Could not store the password securely: %v", err))
			ui.ShowWarning("The password will be kept in the config file instead")
		} else {
			cfg.Snowflake.Password = "keyring:" + warehouseCredentialName
			ui.ShowInfo("Password stored in the system keyring")
		}
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("✅ Configuration saved to:", config.GetConfigFile())
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  surveyforge inventory    profile the configured exports")
	fmt.Println("  surveyforge run          execute the full pipeline")
	if cfg.Snowflake.Account != "" {
		fmt.Println("  surveyforge publish      push KPI tables to Snowflake")
	}
	if len(cfg.Repositories) > 0 {
		fmt.Println("  surveyforge repo sync    fetch the dataset repositories")
	}
}

func storeWarehousePassword(password, account, username string) error {
	manager, err := security.NewCredentialManager()
	if err != nil {
		return err
	}
	return manager.StoreCredential(warehouseCredentialName, "password", password, map[string]string{
		"account":  account,
		"username": username,
	})
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
