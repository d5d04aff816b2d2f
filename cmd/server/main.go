package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "library-backend",
		Short: "Library catalog REST API",
		Long: `Serves authors, publishers, catalogs and copies over a JSON API with
filtering, sorting, field selection, eager loading and pagination.

Running without a subcommand starts the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (default ./app.yaml)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newCreateUserCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}
