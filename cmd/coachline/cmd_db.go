package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/coachline/coachline/internal/app"
	"github.com/spf13/cobra"
)

// coachline migrate: create or update the schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Migrate(cmd.Context(), appConfig); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var adminParams app.CreateAdminParams

// coachline create-admin: bootstrap a back-office account.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminParams.Password == "" {
			adminParams.Password = os.Getenv("COACHLINE_ADMIN_PASSWORD")
		}
		if adminParams.Password == "" {
			return errors.New("--password or COACHLINE_ADMIN_PASSWORD is required")
		}
		user, err := app.CreateAdmin(cmd.Context(), appConfig, adminParams)
		if err != nil {
			return err
		}
		fmt.Printf("admin %q created (id=%d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVarP(&adminParams.Username, "username", "u", "", "admin username")
	createAdminCmd.Flags().StringVarP(&adminParams.Password, "password", "p", "", "admin password")
	createAdminCmd.Flags().StringVar(&adminParams.Name, "name", "", "display name")
	createAdminCmd.Flags().StringVar(&adminParams.Email, "email", "", "contact email")
	_ = createAdminCmd.MarkFlagRequired("username")
}
