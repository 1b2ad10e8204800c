package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/market-sdk/pkg/signing"
	"github.com/mselser95/market-sdk/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var hashOrderCmd = &cobra.Command{
	Use:   "hash-order",
	Short: "Print the hash of an order",
	Long: `Reads an order as JSON and prints the keccak256 hash the market contract
computes for it. Signature fields, if present, are ignored.`,
	RunE: runHashOrder,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(hashOrderCmd)
	hashOrderCmd.Flags().StringP("order", "o", "-", "Order JSON file, - for stdin")
}

func runHashOrder(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("order")

	var order types.Order
	err := readOrderFile(path, &order)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), signing.HashOrder(&order).Hex())
	return err
}
