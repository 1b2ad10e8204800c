package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Fill a signed order as taker",
	Long: `Reads a signed order as JSON and fills --qty of it from the PRIVATE_KEY
account. The quantity carries the order's sign: negative to fill a sell.

Every check the market contract runs is done first; nothing is submitted if
one fails. The chain can still change between the checks and the
transaction being mined.`,
	RunE: runTrade,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().StringP("order", "o", "-", "Signed order JSON file, - for stdin")
	tradeCmd.Flags().StringP("qty", "q", "", "Quantity to fill, signed like the order")
	_ = tradeCmd.MarkFlagRequired("qty")
}

func runTrade(cmd *cobra.Command, args []string) error {
	rawQty, _ := cmd.Flags().GetString("qty")
	fillQty, err := parseBig("qty", rawQty)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("order")
	order, err := readSignedOrder(path)
	if err != nil {
		return err
	}

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := cmd.Context()

	sdk, err := app.NewSDK(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer sdk.Close()

	tx, err := sdk.Pipeline.TradeOrder(ctx, order, fillQty, sdk.Sender)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), tx)
}
