// Package collateral implements the contract payout formula used to size the
// collateral a position must lock.
package collateral

import (
	"math/big"

	"github.com/mselser95/market-sdk/pkg/types"
	"github.com/shopspring/decimal"
)

// NeededCollateral returns the collateral required to open qty at price.
//
// A long position (qty > 0) can lose at most price - priceFloor per unit, a
// short position (qty < 0) at most priceCap - price. Losses below zero are
// clamped. The result is maxLoss * |qty| * qtyMultiplier.
func NeededCollateral(priceFloor, priceCap, qtyMultiplier, qty, price decimal.Decimal) decimal.Decimal {
	var maxLoss decimal.Decimal
	switch qty.Sign() {
	case 1:
		maxLoss = price.Sub(priceFloor)
	case -1:
		maxLoss = priceCap.Sub(price)
	default:
		return decimal.Zero
	}

	if maxLoss.IsNegative() {
		maxLoss = decimal.Zero
	}

	return maxLoss.Mul(qty.Abs()).Mul(qtyMultiplier)
}

// NeededCollateralForTerms applies NeededCollateral to on-chain integer values.
func NeededCollateralForTerms(terms *types.ContractTerms, qty, price *big.Int) decimal.Decimal {
	return NeededCollateral(
		FromBig(terms.PriceFloor),
		FromBig(terms.PriceCap),
		FromBig(terms.QtyMultiplier),
		FromBig(qty),
		FromBig(price),
	)
}

// FromBig converts an on-chain integer to a decimal. nil maps to zero.
func FromBig(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}
