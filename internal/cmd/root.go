package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vietanh2810/jobshadow-api/cmd/app"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jobshadow",
	Short: "Job shadow lottery API",
	Long: `jobshadow assigns students to job shadow positions by lottery.

Without a subcommand it serves the HTTP API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", app.DefaultConfigPath, "config file")
}
