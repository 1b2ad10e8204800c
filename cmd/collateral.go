package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/internal/app"
	"github.com/mselser95/market-sdk/pkg/collateral"
	"github.com/mselser95/market-sdk/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var collateralCmd = &cobra.Command{
	Use:   "collateral",
	Short: "Compute the collateral a position needs",
	Long: `Prints the collateral needed to open --qty at --price. The contract's
terms are read from chain via --contract, or given directly with --floor,
--cap and --multiplier to compute offline.`,
	RunE: runCollateral,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(collateralCmd)
	collateralCmd.Flags().StringP("contract", "c", "", "Market contract address")
	collateralCmd.Flags().StringP("qty", "q", "", "Signed position quantity")
	collateralCmd.Flags().StringP("price", "p", "", "Entry price")
	collateralCmd.Flags().String("floor", "", "Price floor (offline)")
	collateralCmd.Flags().String("cap", "", "Price cap (offline)")
	collateralCmd.Flags().String("multiplier", "", "Quantity multiplier (offline)")
	_ = collateralCmd.MarkFlagRequired("qty")
	_ = collateralCmd.MarkFlagRequired("price")
}

func runCollateral(cmd *cobra.Command, args []string) error {
	flags := map[string]string{}
	for _, name := range []string{"contract", "qty", "price", "floor", "cap", "multiplier"} {
		flags[name], _ = cmd.Flags().GetString(name)
	}

	qty, err := parseBig("qty", flags["qty"])
	if err != nil {
		return err
	}
	price, err := parseBig("price", flags["price"])
	if err != nil {
		return err
	}

	terms, err := offlineTerms(flags)
	if err != nil {
		return err
	}

	if terms == nil {
		terms, err = fetchTerms(cmd, flags["contract"])
		if err != nil {
			return err
		}
	}

	needed := collateral.NeededCollateralForTerms(terms, qty, price)
	_, err = fmt.Fprintln(cmd.OutOrStdout(), needed.String())
	return err
}

// offlineTerms returns nil when none of the term flags are set.
func offlineTerms(flags map[string]string) (*types.ContractTerms, error) {
	if flags["floor"] == "" && flags["cap"] == "" && flags["multiplier"] == "" {
		return nil, nil
	}

	floor, err := parseBig("floor", flags["floor"])
	if err != nil {
		return nil, err
	}
	capPrice, err := parseBig("cap", flags["cap"])
	if err != nil {
		return nil, err
	}
	multiplier, err := parseBig("multiplier", flags["multiplier"])
	if err != nil {
		return nil, err
	}

	return &types.ContractTerms{
		PriceFloor:    floor,
		PriceCap:      capPrice,
		QtyMultiplier: multiplier,
	}, nil
}

func fetchTerms(cmd *cobra.Command, rawContract string) (*types.ContractTerms, error) {
	if !common.IsHexAddress(rawContract) {
		return nil, fmt.Errorf("--contract is required without --floor, --cap and --multiplier")
	}

	cfg, logger, err := loadEnv()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = logger.Sync()
	}()

	sdk, err := app.NewSDK(cmd.Context(), cfg, logger, false)
	if err != nil {
		return nil, err
	}
	defer sdk.Close()

	terms, err := sdk.Backend.ContractTerms(cmd.Context(), common.HexToAddress(rawContract))
	if err != nil {
		return nil, fmt.Errorf("read contract terms: %w", err)
	}
	return terms, nil
}
