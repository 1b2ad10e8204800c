package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/internal/app"
	"github.com/mselser95/market-sdk/internal/fillable"
	"github.com/mselser95/market-sdk/pkg/signing"
)

//nolint:gochecknoglobals // Cobra boilerplate
var fillableCmd = &cobra.Command{
	Use:   "fillable",
	Short: "Show how much of a signed order can still be filled",
	Long: `Reads a signed order as JSON and prints the quantity its maker can still
fill, and the quantity a taker can fill against it, given current fee token
balances, collateral pool balances and the filled/cancelled counter.`,
	RunE: runFillable,
}

// fillableOutput is the printed result.
type fillableOutput struct {
	OrderHash     string `json:"orderHash"`
	MakerFillable string `json:"makerFillable"`
	TakerFillable string `json:"takerFillable"`
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(fillableCmd)
	fillableCmd.Flags().StringP("order", "o", "-", "Signed order JSON file, - for stdin")
}

func runFillable(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	path, _ := cmd.Flags().GetString("order")
	order, err := readSignedOrder(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	sdk, err := app.NewSDK(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sdk.Close()

	orderHash := signing.HashOrder(&order.Order)

	calc, err := fillable.New(&fillable.Config{
		Reader:   sdk.Backend,
		Ledger:   sdk.Ledger,
		FeeToken: sdk.FeeToken,
		Logger:   logger,
	}, order, orderHash)
	if err != nil {
		return err
	}

	makerFillable, err := calc.ComputeRemainingMakerFillable(ctx)
	if err != nil {
		return fmt.Errorf("maker fillable: %w", err)
	}

	takerFillable, err := calc.ComputeRemainingTakerFillable(ctx)
	if err != nil {
		return fmt.Errorf("taker fillable: %w", err)
	}

	return printJSON(cmd.OutOrStdout(), fillableOutput{
		OrderHash:     orderHash.Hex(),
		MakerFillable: makerFillable.String(),
		TakerFillable: takerFillable.String(),
	})
}
