package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"surveyforge/internal/config"
	"surveyforge/pkg/models"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "surveyforge",
		Short: "Turn raw developer-survey exports into publishable KPI tables",
		Long: "SurveyForge - A batch pipeline for multi-year developer survey data: " +
			"harmonizes heterogeneous CSV exports, derives analysis categories, " +
			"computes adoption and sentiment KPIs, and publishes them to files, " +
			"a local DuckDB store, and optionally a Snowflake warehouse",
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./surveyforge.yaml, then ~/.surveyforge/config.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("surveyforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.surveyforge")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// Missing config is fine; commands that need one say so themselves
	}
}

// loadConfig resolves the configuration the same way for every command:
// the --config flag wins, then ./surveyforge.yaml, then the file under
// ~/.surveyforge.
func loadConfig() (*models.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	if _, err := os.Stat("surveyforge.yaml"); err == nil {
		return config.LoadFile("surveyforge.yaml")
	}
	return config.Load()
}
