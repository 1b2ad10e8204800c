package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/pkg/signing"
	"github.com/mselser95/market-sdk/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var signOrderCmd = &cobra.Command{
	Use:   "sign-order",
	Short: "Sign an order with PRIVATE_KEY",
	Long: `Reads an unsigned order as JSON, fills in the maker and a random salt when
they are missing, and prints the signed order. The maker, if set, must match
PRIVATE_KEY. No RPC connection is made.`,
	RunE: runSignOrder,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(signOrderCmd)
	signOrderCmd.Flags().StringP("order", "o", "-", "Order JSON file, - for stdin")
}

func runSignOrder(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadEnv()
	if err != nil {
		return err
	}

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("order")

	var order types.Order
	err = readOrderFile(path, &order)
	if err != nil {
		return err
	}

	signed, _, err := signing.NewSignedOrder(order, key)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), signed)
}
