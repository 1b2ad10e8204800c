// Package fillable computes how much of a signed order can still be filled,
// replicating the collateral, fee and fill-ledger checks the market contract
// enforces on chain.
package fillable

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/market-sdk/pkg/collateral"
	"github.com/mselser95/market-sdk/pkg/types"
	"go.uber.org/zap"
)

// ChainReader is the slice of the execution backend the calculator reads.
type ChainReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	ContractTerms(ctx context.Context, contract common.Address) (*types.ContractTerms, error)
	UnallocatedCollateral(ctx context.Context, contract, user common.Address) (*big.Int, error)
}

// FilledQtyLookup returns the filled-or-cancelled quantity of an order.
// *ledger.Store implements it.
type FilledQtyLookup interface {
	GetFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error)
}

// Config holds the collaborators shared by calculators.
type Config struct {
	Reader   ChainReader
	Ledger   FilledQtyLookup
	FeeToken common.Address
	Logger   *zap.Logger
}

// Calculator evaluates a single signed order.
type Calculator struct {
	reader    ChainReader
	ledger    FilledQtyLookup
	feeToken  common.Address
	order     *types.SignedOrder
	orderHash common.Hash
	logger    *zap.Logger
}

// New creates a calculator for order, whose hash the caller has computed.
func New(cfg *Config, order *types.SignedOrder, orderHash common.Hash) (*Calculator, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if order == nil || order.OrderQty == nil {
		return nil, errors.New("order quantity cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Calculator{
		reader:    cfg.Reader,
		ledger:    cfg.Ledger,
		feeToken:  cfg.FeeToken,
		order:     order,
		orderHash: orderHash,
		logger:    logger,
	}, nil
}

// ComputeRemainingMakerFillable returns the largest quantity the maker can
// still have filled: the smaller of what the maker's collateral supports for
// the order and what the fill ledger says is left. The result carries the
// sign of the order quantity.
func (c *Calculator) ComputeRemainingMakerFillable(ctx context.Context) (*big.Int, error) {
	order := c.order

	if order.ChargesFees() {
		err := CheckFeeFunds(ctx, c.reader, c.feeToken, order.Maker, order.FeeRecipient, order.MakerFee, c.orderHash)
		if err != nil {
			return nil, err
		}
	}

	available, err := c.reader.UnallocatedCollateral(ctx, order.ContractAddress, order.Maker)
	if err != nil {
		return nil, fmt.Errorf("get maker collateral: %w", err)
	}

	terms, err := c.reader.ContractTerms(ctx, order.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("get contract terms: %w", err)
	}
	needed := collateral.NeededCollateralForTerms(terms, order.OrderQty, order.Price)

	filled, err := c.ledger.GetFilledOrCancelled(ctx, order.ContractAddress, c.orderHash)
	if err != nil {
		return nil, err
	}

	absQty := new(big.Int).Abs(order.OrderQty)
	remaining := RemainingToFill(order.OrderQty, filled)
	byCollateral := FillableForCollateral(available, needed.BigInt(), absQty)

	fillable := minBig(byCollateral, remaining)

	c.logger.Debug("maker-fillable-computed",
		zap.String("order-hash", c.orderHash.Hex()),
		zap.String("available-collateral", available.String()),
		zap.String("needed-collateral", needed.String()),
		zap.String("remaining", remaining.String()),
		zap.String("fillable", fillable.String()))

	return withSign(fillable, order.OrderQty), nil
}

// ComputeRemainingTakerFillable returns the largest quantity a fill against
// the order can have, bounded by both maker and taker. Open orders have no
// known taker, so only the maker bound applies.
func (c *Calculator) ComputeRemainingTakerFillable(ctx context.Context) (*big.Int, error) {
	makerFillable, err := c.ComputeRemainingMakerFillable(ctx)
	if err != nil {
		return nil, err
	}

	order := c.order
	if order.IsOpen() {
		return makerFillable, nil
	}

	if order.ChargesFees() {
		err = CheckFeeFunds(ctx, c.reader, c.feeToken, order.Taker, order.FeeRecipient, order.TakerFee, c.orderHash)
		if err != nil {
			return nil, err
		}
	}

	available, err := c.reader.UnallocatedCollateral(ctx, order.ContractAddress, order.Taker)
	if err != nil {
		return nil, fmt.Errorf("get taker collateral: %w", err)
	}

	terms, err := c.reader.ContractTerms(ctx, order.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("get contract terms: %w", err)
	}

	// the taker holds the opposite side of the order
	takerQty := new(big.Int).Neg(order.OrderQty)
	needed := collateral.NeededCollateralForTerms(terms, takerQty, order.Price)

	absQty := new(big.Int).Abs(order.OrderQty)
	takerFillable := FillableForCollateral(available, needed.BigInt(), absQty)

	fillable := minBig(new(big.Int).Abs(makerFillable), takerFillable)

	c.logger.Debug("taker-fillable-computed",
		zap.String("order-hash", c.orderHash.Hex()),
		zap.String("taker", order.Taker.Hex()),
		zap.String("maker-fillable", makerFillable.String()),
		zap.String("taker-fillable", takerFillable.String()))

	return withSign(fillable, order.OrderQty), nil
}

// CheckFeeFunds verifies account can pay fee to recipient in feeToken.
// The allowance is checked before the balance, and the whole fee is required
// regardless of how much of the order is being filled.
func CheckFeeFunds(
	ctx context.Context,
	reader ChainReader,
	feeToken common.Address,
	account common.Address,
	recipient common.Address,
	fee *big.Int,
	orderHash common.Hash,
) error {
	required := fee
	if required == nil {
		required = new(big.Int)
	}

	allowance, err := reader.TokenAllowance(ctx, feeToken, account, recipient)
	if err != nil {
		return fmt.Errorf("get fee allowance: %w", err)
	}
	if allowance.Cmp(required) < 0 {
		return types.NewOrderError(types.ErrInsufficientAllowanceForTransfer, orderHash.Hex(),
			fmt.Sprintf("%s allowed %s, fee %s", account.Hex(), allowance, required))
	}

	balance, err := reader.TokenBalance(ctx, feeToken, account)
	if err != nil {
		return fmt.Errorf("get fee balance: %w", err)
	}
	if balance.Cmp(required) < 0 {
		return types.NewOrderError(types.ErrInsufficientBalanceForTransfer, orderHash.Hex(),
			fmt.Sprintf("%s holds %s, fee %s", account.Hex(), balance, required))
	}

	return nil
}

// RemainingToFill returns |orderQty| - |filled|, floored at zero.
func RemainingToFill(orderQty, filled *big.Int) *big.Int {
	remaining := new(big.Int).Abs(orderQty)
	if filled != nil {
		remaining.Sub(remaining, new(big.Int).Abs(filled))
	}
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}

// FillableForCollateral scales absQty by available/needed, truncating toward
// zero. Zero needed collateral means collateral does not limit the fill.
func FillableForCollateral(available, needed, absQty *big.Int) *big.Int {
	if needed.Sign() <= 0 {
		return new(big.Int).Set(absQty)
	}
	if available.Sign() <= 0 {
		return new(big.Int)
	}

	scaled := new(big.Int).Mul(available, absQty)
	return scaled.Quo(scaled, needed)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func withSign(abs, like *big.Int) *big.Int {
	if like.Sign() < 0 {
		return new(big.Int).Neg(abs)
	}
	return abs
}
