package main

import (
	"fmt"

	"github.com/andreyxaxa/crm-payments/config"
	"github.com/andreyxaxa/crm-payments/internal/app"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending goose migrations embedded into the binary.

Only PG_URL is read from the environment.

Examples:
  app migrate
  app migrate --down`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewPG()
			if err != nil {
				return fmt.Errorf("Config error: %w", err)
			}

			if err := app.Migrate(cmd.Context(), cfg, down); err != nil {
				return err
			}

			if down {
				fmt.Fprintln(cmd.OutOrStdout(), "latest migration rolled back")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the latest migration")

	return cmd
}
