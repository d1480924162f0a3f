package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"surveyforge/internal/config"
	"surveyforge/internal/gitrepo"
	"surveyforge/internal/ui"
	"surveyforge/pkg/models"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage dataset repositories",
	Long: "Dataset repositories are git repositories holding survey exports or " +
		"mapping files. Synced repositories are cached under ~/.surveyforge and " +
		"their files can be referenced from dataset paths.",
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured dataset repositories",
	Run:   runRepoList,
}

var repoAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a dataset repository",
	Run:   runRepoAdd,
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a dataset repository",
	Args:  cobra.ExactArgs(1),
	Run:   runRepoRemove,
}

var repoSyncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Clone or update dataset repositories",
	Long:  "Sync the named repository, or all configured repositories when no name is given",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRepoSync,
}

func runRepoList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error loading configuration: %v\n", err)
		fmt.Fprintln(cmd.OutOrStderr(), "Run 'surveyforge setup' to create initial configuration")
		return
	}

	if len(cfg.Repositories) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No dataset repositories configured.")
		fmt.Fprintln(cmd.OutOrStdout(), "Use 'surveyforge repo add' to add one")
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configured Dataset Repositories:")
	fmt.Fprintln(cmd.OutOrStdout())

	service := gitrepo.NewService()
	cached, _ := service.CachedRepositories()
	lastFetched := make(map[string]string, len(cached))
	for _, c := range cached {
		lastFetched[c.RepoName] = ui.FormatRelativeTime(c.LastFetched)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGIT URL\tBRANCH\tPATH\tSYNCED")
	fmt.Fprintln(w, "----\t-------\t------\t----\t------")

	for _, repo := range cfg.Repositories {
		synced := lastFetched[repo.Name]
		if synced == "" {
			synced = "never"
		}
		path := repo.Path
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			repo.Name, repo.GitURL, repo.Branch, path, synced)
	}
	_ = w.Flush()
}

func runRepoAdd(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error loading configuration: %v\n", err)
		fmt.Fprintln(cmd.OutOrStderr(), "Run 'surveyforge setup' first")
		return
	}

	qs := []*survey.Question{
		{
			Name: "name",
			Prompt: &survey.Input{
				Message: "Repository name (identifier for CLI):",
			},
			Validate: func(val interface{}) error {
				name, ok := val.(string)
				if !ok || name == "" {
					return fmt.Errorf("name is required")
				}
				for _, r := range cfg.Repositories {
					if r.Name == name {
						return fmt.Errorf("repository '%s' already exists", name)
					}
				}
				return nil
			},
		},
		{
			Name: "giturl",
			Prompt: &survey.Input{
				Message: "Git URL:",
			},
			Validate: survey.Required,
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
				Message: "Data subdirectory (empty for repository root):",
			},
		},
	}

	answers := struct {
		Name   string
		GitURL string `survey:"giturl"`
		Branch string
		Path   string
	}{}

	if err := survey.Ask(qs, &answers); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
		return
	}

	cfg.Repositories = append(cfg.Repositories, models.Repository{
		Name:   answers.Name,
		GitURL: answers.GitURL,
		Branch: answers.Branch,
		Path:   answers.Path,
	})

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error saving configuration: %v\n", err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Repository '%s' added\n", answers.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'surveyforge repo sync %s' to fetch it\n", answers.Name)
}

func runRepoRemove(cmd *cobra.Command, args []string) {
	name := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error loading configuration: %v\n", err)
		return
	}

	found := false
	newRepos := []models.Repository{}

	for _, repo := range cfg.Repositories {
		if repo.Name == name {
			found = true
			continue
		}
		newRepos = append(newRepos, repo)
	}

	if !found {
		fmt.Fprintf(cmd.OutOrStderr(), "Repository '%s' not found\n", name)
		return
	}

	var confirm bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Remove repository '%s'?", name),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
		return
	}

	if !confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "Removal cancelled")
		return
	}

	cfg.Repositories = newRepos

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error saving configuration: %v\n", err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Repository '%s' removed\n", name)
}

func runRepoSync(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error loading configuration: %v\n", err)
		return
	}

	repos := cfg.Repositories
	if len(args) == 1 {
		repos = nil
		for _, repo := range cfg.Repositories {
			if repo.Name == args[0] {
				repos = []models.Repository{repo}
				break
			}
		}
		if repos == nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Repository '%s' not found\n", args[0])
			return
		}
	}

	if len(repos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No dataset repositories configured.")
		return
	}

	service := gitrepo.NewService()
	failed := 0

	for _, repo := range repos {
		fmt.Fprintf(cmd.OutOrStdout(), "Syncing %s (%s)...\n", repo.Name, repo.GitURL)
		if err := service.SyncRepository(repo); err != nil {
			failed++
			ui.ShowError(err)
			continue
		}

		files, err := service.DataFiles(repo)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  synced, but listing data files failed: %v\n", err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  ✅ %s: %d data files under %s\n",
			repo.Name, len(files), service.LocalPath(repo.Name))
	}

	if failed > 0 {
		fmt.Fprintf(cmd.OutOrStderr(), "%d of %d repositories failed to sync\n", failed, len(repos))
	}
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	repoCmd.AddCommand(repoSyncCmd)
}
