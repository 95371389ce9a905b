package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vietanh2810/jobshadow-api/cmd/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.Bootstrap(configPath)
		if err != nil {
			return err
		}

		return a.Migrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
