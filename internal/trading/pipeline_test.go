package trading

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/market-sdk/internal/ledger"
	"github.com/mselser95/market-sdk/internal/storage"
	"github.com/mselser95/market-sdk/internal/testutil"
	"github.com/mselser95/market-sdk/pkg/signing"
	"github.com/mselser95/market-sdk/pkg/types"
)

var (
	contract     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	taker        = common.HexToAddress("0x3000000000000000000000000000000000000003")
	feeRecipient = common.HexToAddress("0x4000000000000000000000000000000000000004")
	feeToken     = common.HexToAddress("0x5000000000000000000000000000000000000005")
	fixedNow     = time.Unix(1700000000, 0)
)

type memJournal struct {
	mu      sync.Mutex
	records []*storage.TxRecord
	err     error
}

func (m *memJournal) RecordTransaction(ctx context.Context, rec *storage.TxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memJournal) Close() error { return nil }

func (m *memJournal) Records() []*storage.TxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*storage.TxRecord(nil), m.records...)
}

type fixture struct {
	backend  *testutil.FakeBackend
	ledger   *ledger.Store
	journal  *memJournal
	pipeline *Pipeline
	key      *ecdsa.PrivateKey
	maker    common.Address
}

// newFixture wires a pipeline whose default state lets a 10 lot fill of a
// 100 lot open buy at 50 on a 0..100 contract pass every check.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	maker := crypto.PubkeyToAddress(key.PublicKey)

	logger := zaptest.NewLogger(t)
	backend := testutil.NewFakeBackend()
	backend.SetTerms(contract, 0, 100, 1)
	backend.SetEnabled(contract, maker, true)
	backend.SetEnabled(contract, taker, true)
	backend.SetCollateral(contract, maker, 1000000)
	backend.SetCollateral(contract, taker, 1000000)

	store := ledger.New(backend, logger)
	journal := &memJournal{}

	pipeline, err := New(&Config{
		Backend:  backend,
		Ledger:   store,
		FeeToken: feeToken,
		Journal:  journal,
		Logger:   logger,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return &fixture{
		backend:  backend,
		ledger:   store,
		journal:  journal,
		pipeline: pipeline,
		key:      key,
		maker:    maker,
	}
}

func (f *fixture) sign(t *testing.T, mutate func(o *types.Order)) *types.SignedOrder {
	t.Helper()

	order := types.Order{
		ContractAddress:     contract,
		Maker:               f.maker,
		Taker:               types.NullAddress,
		FeeRecipient:        types.NullAddress,
		MakerFee:            big.NewInt(0),
		TakerFee:            big.NewInt(0),
		Price:               big.NewInt(50),
		ExpirationTimestamp: big.NewInt(fixedNow.Add(time.Hour).Unix()),
		Salt:                big.NewInt(42),
		OrderQty:            big.NewInt(100),
	}
	if mutate != nil {
		mutate(&order)
	}

	signed, _, err := signing.NewSignedOrder(order, f.key)
	require.NoError(t, err)
	return signed
}

func TestNew_Validation(t *testing.T) {
	backend := testutil.NewFakeBackend()

	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Ledger: ledger.New(backend, nil)})
	assert.Error(t, err)

	_, err = New(&Config{Backend: backend})
	assert.Error(t, err)

	p, err := New(&Config{Backend: backend, Ledger: ledger.New(backend, nil)})
	require.NoError(t, err)
	assert.NotNil(t, p.now)
	assert.Len(t, p.checks, 9)
}

func TestTradeOrder_HappyPath(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, nil)
	ctx := context.Background()

	tx, err := f.pipeline.TradeOrder(ctx, order, big.NewInt(10), taker)
	require.NoError(t, err)

	assert.Equal(t, uint64(101), tx.BlockNumber)
	assert.Equal(t, order, tx.Order)
	assert.Equal(t, int64(10), tx.FillQty.Int64())

	trades := f.backend.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, taker, trades[0].From)
	assert.Equal(t, int64(10), trades[0].FillQty.Int64())

	records := f.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, storage.KindTrade, records[0].Kind)
	assert.Equal(t, tx.TxHash.Hex(), records[0].TxHash)
	assert.Equal(t, "10", records[0].Qty)
	assert.Equal(t, signing.HashOrder(&order.Order).Hex(), records[0].OrderHash)
}

func TestTradeOrder_InvalidatesLedgerAfterSubmit(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, nil)
	order.RemainingQty = nil
	ctx := context.Background()
	orderHash := signing.HashOrder(&order.Order)

	_, err := f.pipeline.TradeOrder(ctx, order, big.NewInt(10), taker)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls("QtyFilledOrCancelled"))

	f.backend.SetFilled(contract, orderHash, 10)

	filled, err := f.ledger.GetFilledOrCancelled(ctx, contract, orderHash)
	require.NoError(t, err)
	assert.Equal(t, int64(10), filled.Int64(), "stale entry must not survive the trade")
	assert.Equal(t, 2, f.backend.Calls("QtyFilledOrCancelled"))
}

func TestTradeOrder_CheckFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		mutate  func(o *types.Order)
		fillQty int64
		want    *types.OrderError
	}{
		{
			name:    "settled",
			setup:   func(f *fixture) { f.backend.SetSettled(contract, true) },
			fillQty: 10,
			want:    types.ErrContractAlreadySettled,
		},
		{
			name:    "wrong_taker",
			mutate:  func(o *types.Order) { o.Taker = common.HexToAddress("0x99") },
			fillQty: 10,
			want:    types.ErrInvalidTaker,
		},
		{
			name:    "expired",
			mutate:  func(o *types.Order) { o.ExpirationTimestamp = big.NewInt(fixedNow.Unix() - 1) },
			fillQty: 10,
			want:    types.ErrOrderExpired,
		},
		{
			name:    "direction",
			fillQty: -10,
			want:    types.ErrBuySellMismatch,
		},
		{
			name:    "maker_not_enabled",
			setup:   func(f *fixture) { f.backend.SetEnabled(contract, f.maker, false) },
			fillQty: 10,
			want:    types.ErrUserNotEnabledForContract,
		},
		{
			name:    "taker_not_enabled",
			setup:   func(f *fixture) { f.backend.SetEnabled(contract, taker, false) },
			fillQty: 10,
			want:    types.ErrUserNotEnabledForContract,
		},
		{
			name: "maker_fee_allowance",
			setup: func(f *fixture) {
				f.backend.SetAllowance(feeToken, f.maker, feeRecipient, 5)
				f.backend.SetBalance(feeToken, f.maker, 100)
			},
			mutate: func(o *types.Order) {
				o.FeeRecipient = feeRecipient
				o.MakerFee = big.NewInt(10)
			},
			fillQty: 10,
			want:    types.ErrInsufficientAllowanceForTransfer,
		},
		{
			name: "taker_fee_balance",
			setup: func(f *fixture) {
				f.backend.SetAllowance(feeToken, f.maker, feeRecipient, 10)
				f.backend.SetBalance(feeToken, f.maker, 10)
				f.backend.SetAllowance(feeToken, taker, feeRecipient, 10)
				f.backend.SetBalance(feeToken, taker, 9)
			},
			mutate: func(o *types.Order) {
				o.FeeRecipient = feeRecipient
				o.MakerFee = big.NewInt(10)
				o.TakerFee = big.NewInt(10)
			},
			fillQty: 10,
			want:    types.ErrInsufficientBalanceForTransfer,
		},
		{
			// a 10 lot long at 50 over a floor of 0 needs 500
			name:    "maker_collateral",
			setup:   func(f *fixture) { f.backend.SetCollateral(contract, f.maker, 499) },
			fillQty: 10,
			want:    types.ErrInsufficientCollateralBalance,
		},
		{
			name:    "taker_collateral",
			setup:   func(f *fixture) { f.backend.SetCollateral(contract, taker, 499) },
			fillQty: 10,
			want:    types.ErrInsufficientCollateralBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			order := f.sign(t, tt.mutate)

			_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(tt.fillQty), taker)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %s", err, tt.want.Code)
			assert.Equal(t, 0, f.backend.Calls("TradeOrder"))
			assert.Empty(t, f.journal.Records())
		})
	}
}

func TestTradeOrder_ExactCollateralPasses(t *testing.T) {
	f := newFixture(t)
	f.backend.SetCollateral(contract, f.maker, 500)
	f.backend.SetCollateral(contract, taker, 500)
	order := f.sign(t, nil)

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.NoError(t, err)
}

func TestTradeOrder_BuySellMismatchNeverSubmits(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, nil)

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(-5), taker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBuySellMismatch))

	assert.Equal(t, 0, f.backend.Calls("TradeOrder"))
	assert.Equal(t, 0, f.backend.Calls("IsUserEnabled"), "later checks must not run")
}

func TestTradeOrder_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	f.backend.SetAllowance(feeToken, f.maker, feeRecipient, 0)
	order := f.sign(t, func(o *types.Order) {
		o.FeeRecipient = feeRecipient
		o.MakerFee = big.NewInt(10)
	})
	order.Signature.R[5] ^= 0x01

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidSignature))

	assert.Equal(t, 0, f.backend.Calls("IsUserEnabled"))
	assert.Equal(t, 0, f.backend.Calls("TokenAllowance"))
	assert.Equal(t, 0, f.backend.Calls("TokenBalance"))
	assert.Equal(t, 0, f.backend.Calls("UnallocatedCollateral"))
	assert.Equal(t, 0, f.backend.Calls("TradeOrder"))
}

func TestTradeOrder_RawRecoveryIDRejected(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, nil)
	order.Signature.V -= 27

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidSignature))

	assert.Equal(t, 0, f.backend.Calls("IsUserEnabled"))
	assert.Equal(t, 0, f.backend.Calls("TradeOrder"))
}

func TestTradeOrder_TamperedOrderField(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, nil)
	order.Price = big.NewInt(51)

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidSignature))
}

func TestTradeOrder_FirstFailureWins(t *testing.T) {
	f := newFixture(t)
	f.backend.SetSettled(contract, true)
	order := f.sign(t, func(o *types.Order) {
		o.ExpirationTimestamp = big.NewInt(1)
	})

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(-10), taker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrContractAlreadySettled))
}

func TestTradeOrder_RemainingQty(t *testing.T) {
	t.Run("caller_zero", func(t *testing.T) {
		f := newFixture(t)
		order := f.sign(t, nil)
		order.RemainingQty = big.NewInt(0)

		_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrOrderFilledOrCancelled))
		assert.Equal(t, 0, f.backend.Calls("QtyFilledOrCancelled"), "caller value is trusted")
	})

	t.Run("ledger_filled", func(t *testing.T) {
		f := newFixture(t)
		order := f.sign(t, nil)
		order.RemainingQty = nil
		f.backend.SetFilled(contract, signing.HashOrder(&order.Order), 100)

		_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrOrderFilledOrCancelled))
	})

	t.Run("ledger_partial", func(t *testing.T) {
		f := newFixture(t)
		order := f.sign(t, nil)
		order.RemainingQty = nil
		f.backend.SetFilled(contract, signing.HashOrder(&order.Order), 40)

		_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
		require.NoError(t, err)
	})
}

func TestTradeOrder_ConcreteTaker(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, func(o *types.Order) { o.Taker = taker })

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.NoError(t, err)
}

func TestTradeOrder_SellOrder(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, func(o *types.Order) { o.OrderQty = big.NewInt(-100) })

	tx, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(-10), taker)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), tx.FillQty.Int64())
}

func TestTradeOrder_SubmitError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("nonce too low")
	f.backend.FailOn("TradeOrder", boom)
	order := f.sign(t, nil)

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.journal.Records())
}

func TestTradeOrder_BackendErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("rpc down")
	f.backend.FailOn("IsSettled", boom)
	order := f.sign(t, nil)

	_, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var orderErr *types.OrderError
	assert.False(t, errors.As(err, &orderErr))
}

func TestTradeOrder_JournalFailureDoesNotFailTrade(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("db down")
	order := f.sign(t, nil)

	tx, err := f.pipeline.TradeOrder(context.Background(), order, big.NewInt(10), taker)
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.Equal(t, 1, f.backend.Calls("TradeOrder"))
}

func TestTradeOrder_NilArguments(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.TradeOrder(context.Background(), nil, big.NewInt(1), taker)
	assert.Error(t, err)

	_, err = f.pipeline.TradeOrder(context.Background(), f.sign(t, nil), nil, taker)
	assert.Error(t, err)
	assert.Equal(t, 0, f.backend.TotalCalls())
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, nil)
	ctx := context.Background()
	orderHash := signing.HashOrder(&order.Order)

	_, err := f.ledger.GetFilledOrCancelled(ctx, contract, orderHash)
	require.NoError(t, err)

	tx, err := f.pipeline.CancelOrder(ctx, &order.Order, big.NewInt(30), f.maker)
	require.NoError(t, err)
	assert.Equal(t, int64(30), tx.CancelQty.Int64())

	cancels := f.backend.Cancels()
	require.Len(t, cancels, 1)
	assert.Equal(t, f.maker, cancels[0].From)

	assert.Equal(t, 0, f.ledger.Len(), "cancel must invalidate the ledger entry")

	records := f.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, storage.KindCancel, records[0].Kind)
}

func TestCancelOrder_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture, order *types.SignedOrder)
		cancelQty int64
		sender    func(f *fixture) common.Address
		wantErr   error
	}{
		{
			name:      "settled",
			setup:     func(f *fixture, _ *types.SignedOrder) { f.backend.SetSettled(contract, true) },
			cancelQty: 10,
			wantErr:   types.ErrContractAlreadySettled,
		},
		{
			name:      "not_maker",
			cancelQty: 10,
			sender:    func(*fixture) common.Address { return taker },
			wantErr:   ErrNotOrderMaker,
		},
		{
			name: "fully_filled",
			setup: func(f *fixture, order *types.SignedOrder) {
				f.backend.SetFilled(contract, signing.HashOrder(&order.Order), 100)
			},
			cancelQty: 10,
			wantErr:   types.ErrOrderFilledOrCancelled,
		},
		{
			name:      "direction",
			cancelQty: -10,
			wantErr:   types.ErrBuySellMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.sign(t, nil)
			if tt.setup != nil {
				tt.setup(f, order)
			}
			sender := f.maker
			if tt.sender != nil {
				sender = tt.sender(f)
			}

			_, err := f.pipeline.CancelOrder(context.Background(), &order.Order, big.NewInt(tt.cancelQty), sender)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.backend.Calls("CancelOrder"))
		})
	}
}

func TestSettleAndClose(t *testing.T) {
	t.Run("not_settled", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SetPositions(contract, taker, 1)

		_, err := f.pipeline.SettleAndClose(context.Background(), contract, taker)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrContractNotSettled))
		assert.Equal(t, 0, f.backend.Settlements())
	})

	t.Run("no_positions", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SetSettled(contract, true)

		_, err := f.pipeline.SettleAndClose(context.Background(), contract, taker)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrUserHasNoAssociatedPositions))
		assert.Equal(t, 0, f.backend.Settlements())
	})

	t.Run("settles", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SetSettled(contract, true)
		f.backend.SetPositions(contract, taker, 2)

		receipt, err := f.pipeline.SettleAndClose(context.Background(), contract, taker)
		require.NoError(t, err)
		assert.Equal(t, uint64(101), receipt.BlockNumber)
		assert.Equal(t, 1, f.backend.Settlements())

		records := f.journal.Records()
		require.Len(t, records, 1)
		assert.Equal(t, storage.KindSettle, records[0].Kind)
		assert.Empty(t, records[0].OrderHash)
	})
}

func TestRemainingQty(t *testing.T) {
	f := newFixture(t)
	order := f.sign(t, func(o *types.Order) { o.OrderQty = big.NewInt(-100) })
	f.backend.SetFilled(contract, signing.HashOrder(&order.Order), -35)

	remaining, err := f.pipeline.RemainingQty(context.Background(), &order.Order)
	require.NoError(t, err)
	assert.Equal(t, int64(65), remaining.Int64())
}
