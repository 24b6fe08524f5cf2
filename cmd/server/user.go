package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/conference-cms/internal/config"
	"github.com/iliyamo/conference-cms/internal/database"
	"github.com/iliyamo/conference-cms/internal/repository"
	"github.com/iliyamo/conference-cms/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts from the command line",
}

// userCreateCmd bootstraps the first super_admin, which the API cannot do.
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")

		cfg := config.Load()
		db, err := database.Open(cfg)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		users := &service.UserService{Users: repository.NewUserRepo(db), BcryptCost: cfg.BcryptCost}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		u, err := users.Create(ctx, service.NewUser{Email: email, Password: password, AccountType: role})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (id=%d, role=%s)\n", u.Email, u.ID, u.AccountType)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().String("email", "", "account email")
	userCreateCmd.Flags().String("password", "", "initial password (min 6 characters)")
	userCreateCmd.Flags().String("role", "super_admin", "organizer, admin or super_admin")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
}
