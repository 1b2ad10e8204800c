package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "market-sdk",
	Short: "Client SDK and operator CLI for MARKET-style derivative contracts",
	Long: `Builds, hashes and signs orders, checks how much of an order can still be
filled, and submits trade, cancel and settle transactions after running the
same checks the contracts run on chain.

Configuration comes from the environment (and a .env file if present).
The serve command runs an HTTP API with an order event watcher.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
