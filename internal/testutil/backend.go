package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/market-sdk/pkg/chain"
	"github.com/mselser95/market-sdk/pkg/types"
)

var _ chain.Backend = (*FakeBackend)(nil)

type pair struct {
	a common.Address
	b common.Address
}

type orderKey struct {
	contract common.Address
	hash     common.Hash
}

type triple struct {
	a common.Address
	b common.Address
	c common.Address
}

// FakeTrade records a submitted tradeOrder call.
type FakeTrade struct {
	From    common.Address
	Order   *types.SignedOrder
	FillQty *big.Int
}

// FakeCancel records a submitted cancelOrder call.
type FakeCancel struct {
	From      common.Address
	Order     *types.Order
	CancelQty *big.Int
}

// FakeBackend is an in-memory chain.Backend that counts every call.
// Unset balances, allowances and counters read as zero; unset flags as false.
type FakeBackend struct {
	mu sync.Mutex

	balances    map[pair]*big.Int   // token, owner
	allowances  map[triple]*big.Int // token, owner, spender
	settled     map[common.Address]bool
	terms       map[common.Address]*types.ContractTerms
	filled      map[orderKey]*big.Int
	enabled     map[pair]bool     // contract, user
	collateral  map[pair]*big.Int // contract, user
	positions   map[pair]*big.Int // contract, user
	errors      map[string]error
	calls       map[string]int
	nextBlock   uint64
	trades      []FakeTrade
	cancels     []FakeCancel
	settlements []pair
}

// NewFakeBackend creates an empty fake backend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		balances:   make(map[pair]*big.Int),
		allowances: make(map[triple]*big.Int),
		settled:    make(map[common.Address]bool),
		terms:      make(map[common.Address]*types.ContractTerms),
		filled:     make(map[orderKey]*big.Int),
		enabled:    make(map[pair]bool),
		collateral: make(map[pair]*big.Int),
		positions:  make(map[pair]*big.Int),
		errors:     make(map[string]error),
		calls:      make(map[string]int),
		nextBlock:  100,
	}
}

// SetBalance sets owner's balance of token.
func (f *FakeBackend) SetBalance(token, owner common.Address, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[pair{token, owner}] = big.NewInt(v)
}

// SetAllowance sets what spender may move out of owner's token balance.
func (f *FakeBackend) SetAllowance(token, owner, spender common.Address, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[triple{token, owner, spender}] = big.NewInt(v)
}

// SetSettled sets a contract's settlement flag.
func (f *FakeBackend) SetSettled(contract common.Address, settled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[contract] = settled
}

// SetTerms sets a contract's floor, cap and multiplier.
func (f *FakeBackend) SetTerms(contract common.Address, floor, capPrice, multiplier int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms[contract] = &types.ContractTerms{
		PriceFloor:    big.NewInt(floor),
		PriceCap:      big.NewInt(capPrice),
		QtyMultiplier: big.NewInt(multiplier),
	}
}

// SetFilled sets the filled-or-cancelled counter for an order.
func (f *FakeBackend) SetFilled(contract common.Address, orderHash common.Hash, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled[orderKey{contract, orderHash}] = big.NewInt(v)
}

// SetEnabled sets whether user may trade contract.
func (f *FakeBackend) SetEnabled(contract, user common.Address, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[pair{contract, user}] = enabled
}

// SetCollateral sets user's unallocated collateral for contract.
func (f *FakeBackend) SetCollateral(contract, user common.Address, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collateral[pair{contract, user}] = big.NewInt(v)
}

// SetPositions sets user's open position count for contract.
func (f *FakeBackend) SetPositions(contract, user common.Address, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[pair{contract, user}] = big.NewInt(v)
}

// FailOn makes every call to method return err.
func (f *FakeBackend) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = err
}

// Calls returns how many times method was invoked.
func (f *FakeBackend) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Trades returns the submitted trades.
func (f *FakeBackend) Trades() []FakeTrade {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeTrade, len(f.trades))
	copy(out, f.trades)
	return out
}

// Cancels returns the submitted cancels.
func (f *FakeBackend) Cancels() []FakeCancel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCancel, len(f.cancels))
	copy(out, f.cancels)
	return out
}

// Settlements returns how many settleAndClose calls were submitted.
func (f *FakeBackend) Settlements() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settlements)
}

func (f *FakeBackend) record(method string) error {
	f.calls[method]++
	return f.errors[method]
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// TokenBalance implements chain.Reader.
func (f *FakeBackend) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TokenBalance"); err != nil {
		return nil, err
	}
	return valueOrZero(f.balances[pair{token, owner}]), nil
}

// TokenAllowance implements chain.Reader.
func (f *FakeBackend) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TokenAllowance"); err != nil {
		return nil, err
	}
	return valueOrZero(f.allowances[triple{token, owner, spender}]), nil
}

// IsSettled implements chain.Reader.
func (f *FakeBackend) IsSettled(ctx context.Context, contract common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("IsSettled"); err != nil {
		return false, err
	}
	return f.settled[contract], nil
}

// ContractTerms implements chain.Reader.
func (f *FakeBackend) ContractTerms(ctx context.Context, contract common.Address) (*types.ContractTerms, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ContractTerms"); err != nil {
		return nil, err
	}
	terms, ok := f.terms[contract]
	if !ok {
		return nil, fmt.Errorf("no terms for %s", contract.Hex())
	}
	return terms, nil
}

// QtyFilledOrCancelled implements chain.Reader.
func (f *FakeBackend) QtyFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("QtyFilledOrCancelled"); err != nil {
		return nil, err
	}
	return valueOrZero(f.filled[orderKey{contract, orderHash}]), nil
}

// IsUserEnabled implements chain.Reader.
func (f *FakeBackend) IsUserEnabled(ctx context.Context, contract, user common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("IsUserEnabled"); err != nil {
		return false, err
	}
	return f.enabled[pair{contract, user}], nil
}

// UnallocatedCollateral implements chain.Reader.
func (f *FakeBackend) UnallocatedCollateral(ctx context.Context, contract, user common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UnallocatedCollateral"); err != nil {
		return nil, err
	}
	return valueOrZero(f.collateral[pair{contract, user}]), nil
}

// PositionCount implements chain.Reader.
func (f *FakeBackend) PositionCount(ctx context.Context, contract, user common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PositionCount"); err != nil {
		return nil, err
	}
	return valueOrZero(f.positions[pair{contract, user}]), nil
}

// TradeOrder implements chain.Writer.
func (f *FakeBackend) TradeOrder(ctx context.Context, from common.Address, order *types.SignedOrder, fillQty *big.Int) (*types.TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TradeOrder"); err != nil {
		return nil, err
	}
	f.trades = append(f.trades, FakeTrade{From: from, Order: order, FillQty: new(big.Int).Set(fillQty)})
	return f.receipt(), nil
}

// CancelOrder implements chain.Writer.
func (f *FakeBackend) CancelOrder(ctx context.Context, from common.Address, order *types.Order, cancelQty *big.Int) (*types.TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CancelOrder"); err != nil {
		return nil, err
	}
	f.cancels = append(f.cancels, FakeCancel{From: from, Order: order, CancelQty: new(big.Int).Set(cancelQty)})
	return f.receipt(), nil
}

// SettleAndClose implements chain.Writer.
func (f *FakeBackend) SettleAndClose(ctx context.Context, from common.Address, contract common.Address) (*types.TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SettleAndClose"); err != nil {
		return nil, err
	}
	f.settlements = append(f.settlements, pair{contract, from})
	return f.receipt(), nil
}

func (f *FakeBackend) receipt() *types.TxReceipt {
	f.nextBlock++
	return &types.TxReceipt{
		TxHash:      crypto.Keccak256Hash(new(big.Int).SetUint64(f.nextBlock).Bytes()),
		BlockNumber: f.nextBlock,
	}
}
