package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/internal/app"
	"github.com/mselser95/market-sdk/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel part or all of one of your orders",
	Long: `Reads an order as JSON and cancels --qty of it from the PRIVATE_KEY
account, which must be the order's maker. The quantity carries the order's
sign.`,
	RunE: runCancel,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cancelCmd)
	cancelCmd.Flags().StringP("order", "o", "-", "Order JSON file, - for stdin")
	cancelCmd.Flags().StringP("qty", "q", "", "Quantity to cancel, signed like the order")
	_ = cancelCmd.MarkFlagRequired("qty")
}

func runCancel(cmd *cobra.Command, args []string) error {
	rawQty, _ := cmd.Flags().GetString("qty")
	cancelQty, err := parseBig("qty", rawQty)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("order")
	var order types.Order
	err = readOrderFile(path, &order)
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

	tx, err := sdk.Pipeline.CancelOrder(ctx, &order, cancelQty, sdk.Sender)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), tx)
}
