package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"library-backend/internal/auth"
	"library-backend/internal/config"
	"library-backend/internal/store"
)

type createUserOptions struct {
	*rootOptions
	Name     string
	Email    string
	Password string
	Roles    []string
}

func newCreateUserCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &createUserOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Long: `Create an active user with the given roles.

Example:
  library-backend create-user --name "Ana" --email ana@library.test --password s3cret --role cataloger`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := store.New(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			id, err := auth.CreateUser(ctx, db, opts.Name, opts.Email, opts.Password, opts.Roles)
			if err != nil {
				return err
			}
			log.Printf("Created user %d (%s) with roles %v", id, opts.Email, opts.Roles)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "initial password (required)")
	cmd.Flags().StringSliceVar(&opts.Roles, "role", nil, "role to grant; repeatable (admin, cataloger)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
