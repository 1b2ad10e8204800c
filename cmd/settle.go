package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Close all positions in a settled contract",
	Long: `Settles and closes every position the PRIVATE_KEY account holds in
--contract, returning collateral to the pool. The contract must have settled.`,
	RunE: runSettle,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(settleCmd)
	settleCmd.Flags().StringP("contract", "c", "", "Market contract address")
	_ = settleCmd.MarkFlagRequired("contract")
}

func runSettle(cmd *cobra.Command, args []string) error {
	rawContract, _ := cmd.Flags().GetString("contract")
	if !common.IsHexAddress(rawContract) {
		return fmt.Errorf("--contract is not a valid address: %q", rawContract)
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

	receipt, err := sdk.Pipeline.SettleAndClose(ctx, common.HexToAddress(rawContract), sdk.Sender)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "settled %s in tx %s (block %d)\n",
		rawContract, receipt.TxHash.Hex(), receipt.BlockNumber)
	return err
}
