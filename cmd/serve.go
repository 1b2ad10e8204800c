package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP order API",
	Long: `Starts the HTTP server with health, readiness, metrics and the order API.

When WATCH_CONTRACTS is set, OrderFilled and OrderCancelled events from those
contracts (via ETH_WS_URL) invalidate cached filled quantities. When
WALLET_ADDRESS or PRIVATE_KEY is set, the account's balances are exported as
metrics.`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
