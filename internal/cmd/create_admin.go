package cmd

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/spf13/cobra"

	"github.com/vietanh2810/jobshadow-api/cmd/app"
	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Create an admin account. Admins are the only users allowed to start
lotteries and edit pins, quotas and results.`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "display name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	if err := validation.Validate(adminEmail, validation.Required, is.Email); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := request.ValidatePassword(adminPassword); err != nil {
		return err
	}

	a, err := app.Bootstrap(configPath)
	if err != nil {
		return err
	}
	if err = a.Migrate(); err != nil {
		return err
	}

	admin, err := a.AuthService().CreateAdmin(cmd.Context(), domain.User{
		Email:    adminEmail,
		Name:     adminName,
		Password: adminPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin -> %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created admin %d (%s)\n", admin.ID, admin.Email)

	return nil
}
