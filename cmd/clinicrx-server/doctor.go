package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinicrx/clinicrx/internal/domain/account"
	"github.com/clinicrx/clinicrx/internal/server"
)

func doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctor accounts",
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Mark a doctor's email as verified without the emailed link",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.Env, cfg.LogLevel)

			ctx := context.Background()
			stores, err := server.OpenStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := account.NewService(stores.Users, account.ServiceConfig{Logger: logger})
			u, err := svc.VerifyByEmail(ctx, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Verified %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	verifyCmd.Flags().String("email", "", "Email address of the doctor")
	cmd.AddCommand(verifyCmd)

	adminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.Env, cfg.LogLevel)

			ctx := context.Background()
			stores, err := server.OpenStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := account.NewService(stores.Users, account.ServiceConfig{Logger: logger})
			u, err := svc.CreateAdmin(ctx, &account.RegisterRequest{Name: name, Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	adminCmd.Flags().String("name", "Administrator", "Display name of the admin")
	adminCmd.Flags().String("email", "", "Email address of the admin")
	adminCmd.Flags().String("password", "", "Initial password (min 8 characters)")
	cmd.AddCommand(adminCmd)

	return cmd
}
