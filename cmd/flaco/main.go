package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flaco-inc/flaco/internal/interfaces/cli/client"
	"github.com/flaco-inc/flaco/internal/interfaces/cli/license"
	"github.com/flaco-inc/flaco/internal/interfaces/cli/migrate"
	"github.com/flaco-inc/flaco/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "flaco",
		Short:        "Flaco - license server for paid desktop tiers",
		Long:         `Flaco issues license keys from billing webhooks, verifies them for client apps and ships the operator and client tooling around them.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		license.NewCommand(),
		client.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
