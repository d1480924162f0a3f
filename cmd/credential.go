package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"surveyforge/internal/common"
	"surveyforge/internal/security"
	"surveyforge/internal/ui"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage warehouse secrets",
	Long: "Store and manage secrets in the system keyring, falling back to an " +
		"encrypted file under ~/.surveyforge when no keyring is available. The " +
		"config references stored secrets as keyring:<name>.",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Store a secret",
	Args:  cobra.ExactArgs(1),
	Run:   runCredentialSet,
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored secret names",
	Run:   runCredentialList,
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a stored secret",
	Args:  cobra.ExactArgs(1),
	Run:   runCredentialDelete,
}

var credentialExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export secrets to an encrypted backup file",
	Args:  cobra.ExactArgs(1),
	Run:   runCredentialExport,
}

var credentialImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import secrets from an encrypted backup file",
	Args:  cobra.ExactArgs(1),
	Run:   runCredentialImport,
}

func newCredentialManager() *security.CredentialManager {
	manager, err := security.NewCredentialManager()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	return manager
}

func runCredentialSet(cmd *cobra.Command, args []string) {
	name := args[0]
	manager := newCredentialManager()

	var value string
	prompt := &survey.Password{
		Message: fmt.Sprintf("Value for '%s':", name),
	}
	if err := survey.AskOne(prompt, &value, survey.WithValidator(survey.Required)); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
		return
	}

	if err := manager.StoreCredential(name, "password", value, nil); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess(fmt.Sprintf("Secret '%s' stored", name))
	fmt.Printf("Reference it from the config as keyring:%s\n", name)
}

func runCredentialList(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()

	names, err := manager.ListCredentials()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored.")
		fmt.Fprintln(cmd.OutOrStdout(), "Use 'surveyforge credential set <name>' to add one")
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Stored secrets:")
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}

func runCredentialDelete(cmd *cobra.Command, args []string) {
	name := args[0]
	manager := newCredentialManager()

	var confirm bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Delete secret '%s'?", name),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
		return
	}
	if !confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
		return
	}

	if err := manager.DeleteCredential(name); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess(fmt.Sprintf("Secret '%s' deleted", name))
}

func runCredentialExport(cmd *cobra.Command, args []string) {
	file := args[0]
	manager := newCredentialManager()

	password, err := askExportPassword(true)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
		return
	}

	data, err := manager.ExportCredentials(password)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if err := os.WriteFile(file, data, common.FilePermissionSecure); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess(fmt.Sprintf("Secrets exported to %s", file))
}

func runCredentialImport(cmd *cobra.Command, args []string) {
	file := args[0]
	manager := newCredentialManager()

	data, err := os.ReadFile(file)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	password, err := askExportPassword(false)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
		return
	}

	if err := manager.ImportCredentials(data, password); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess("Secrets imported")
}

// askExportPassword prompts for the backup password, with confirmation
// when creating a new backup.
func askExportPassword(confirm bool) (string, error) {
	var password string
	prompt := &survey.Password{Message: "Backup password:"}
	if err := survey.AskOne(prompt, &password, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}

	if confirm {
		var again string
		repeat := &survey.Password{Message: "Confirm password:"}
		if err := survey.AskOne(repeat, &again); err != nil {
			return "", err
		}
		if password != again {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	return password, nil
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialSetCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialDeleteCmd)
	credentialCmd.AddCommand(credentialExportCmd)
	credentialCmd.AddCommand(credentialImportCmd)
}
