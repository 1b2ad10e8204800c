// Package chain is the execution backend the order pipeline calls into:
// read access to balances, allowances, contract state and per-order fill
// counters, and write access for trade, cancel and settle transactions.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/market-sdk/pkg/types"
)

// Reader exposes the on-chain state the pre-trade checks depend on.
type Reader interface {
	// TokenBalance returns owner's balance of an ERC20 token.
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// TokenAllowance returns what spender may transfer out of owner's balance.
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// IsSettled reports whether the market contract has settled.
	IsSettled(ctx context.Context, contract common.Address) (bool, error)

	// ContractTerms returns the immutable floor, cap, multiplier and pool.
	ContractTerms(ctx context.Context, contract common.Address) (*types.ContractTerms, error)

	// QtyFilledOrCancelled returns the cumulative filled or cancelled quantity.
	QtyFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error)

	// IsUserEnabled reports whether user may trade contract.
	IsUserEnabled(ctx context.Context, contract, user common.Address) (bool, error)

	// UnallocatedCollateral returns user's free balance in contract's pool.
	UnallocatedCollateral(ctx context.Context, contract, user common.Address) (*big.Int, error)

	// PositionCount returns the number of open positions user holds.
	PositionCount(ctx context.Context, contract, user common.Address) (*big.Int, error)
}

// Writer submits transactions and waits for them to be mined.
type Writer interface {
	TradeOrder(ctx context.Context, from common.Address, order *types.SignedOrder, fillQty *big.Int) (*types.TxReceipt, error)
	CancelOrder(ctx context.Context, from common.Address, order *types.Order, cancelQty *big.Int) (*types.TxReceipt, error)
	SettleAndClose(ctx context.Context, from common.Address, contract common.Address) (*types.TxReceipt, error)
}

// Backend is the full execution backend.
type Backend interface {
	Reader
	Writer
}
