package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"surveyforge/internal/scaffold"
	"surveyforge/internal/ui"
)

var (
	initYears     []int
	initWarehouse bool
	initNoSample  bool
	initAuthor    string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a starter survey analytics project",
	Long: "Create a ready-to-run project: a config file, the default field " +
		"mappings and region groupings, and optionally sample survey exports " +
		"so the pipeline can be tried immediately.",
	Args: cobra.MaximumNArgs(1),
	Run:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().IntSliceVar(&initYears, "years", nil, "survey years to scaffold (default: the current year)")
	initCmd.Flags().BoolVar(&initWarehouse, "warehouse", false, "include a Snowflake section in the generated config")
	initCmd.Flags().BoolVar(&initNoSample, "no-sample", false, "skip generating sample survey data")
	initCmd.Flags().StringVar(&initAuthor, "author", "", "author name for the generated README")
}

func runInit(cmd *cobra.Command, args []string) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	years := initYears
	if len(years) == 0 {
		years = []int{time.Now().Year()}
	}

	generator := scaffold.NewGenerator(dir, &scaffold.Config{
		ProjectName:   filepath.Base(abs),
		Author:        initAuthor,
		Years:         years,
		WithWarehouse: initWarehouse,
		WithSample:    !initNoSample,
	})

	files, err := generator.GenerateProject()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess(fmt.Sprintf("Project scaffolded in %s", dir))
	for _, file := range files {
		fmt.Printf("  created %s\n", file)
	}

	fmt.Println()
	fmt.Println("Next steps:")
	if dir != "." {
		fmt.Printf("  cd %s\n", dir)
	}
	fmt.Println("  surveyforge inventory    profile the scaffolded exports")
	fmt.Println("  surveyforge run          execute the pipeline")
}
