package main

import (
	"fmt"

	"github.com/andreyxaxa/crm-payments/config"
	"github.com/andreyxaxa/crm-payments/internal/app"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, bus consumers and export workers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("Config error: %w", err)
	}

	// Run
	app.Run(cfg)

	return nil
}
