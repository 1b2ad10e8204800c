// Package trading runs the local pre-trade checks that mirror the market
// contract's own validation and submits trade, cancel and settle
// transactions once they pass.
//
// The checks read chain state that can change before the transaction is
// mined. A competing fill or cancel landing in between can still make the
// contract reject a trade that passed every local check; callers see that as
// a failed submission, not as an OrderError.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/market-sdk/internal/fillable"
	"github.com/mselser95/market-sdk/internal/storage"
	"github.com/mselser95/market-sdk/pkg/chain"
	"github.com/mselser95/market-sdk/pkg/collateral"
	"github.com/mselser95/market-sdk/pkg/signing"
	"github.com/mselser95/market-sdk/pkg/types"
	"go.uber.org/zap"
)

// ErrNotOrderMaker is returned when someone other than the maker cancels.
var ErrNotOrderMaker = errors.New("sender is not the order maker")

// Ledger is the filled/cancelled quantity cache the pipeline reads and
// invalidates. *ledger.Store implements it.
type Ledger interface {
	GetFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error)
	Invalidate(contract common.Address, orderHash common.Hash)
}

// Config holds pipeline configuration.
type Config struct {
	Backend  chain.Backend
	Ledger   Ledger
	FeeToken common.Address
	Journal  storage.Storage // optional
	Logger   *zap.Logger
	Now      func() time.Time // defaults to time.Now
}

// Pipeline validates and submits order transactions.
type Pipeline struct {
	backend  chain.Backend
	ledger   Ledger
	feeToken common.Address
	journal  storage.Storage
	logger   *zap.Logger
	now      func() time.Time
	checks   []tradeCheck
}

// tradeRequest is the state threaded through the trade checks.
type tradeRequest struct {
	order     *types.SignedOrder
	fillQty   *big.Int
	taker     common.Address
	orderHash common.Hash
}

type tradeCheck struct {
	name string
	run  func(ctx context.Context, req *tradeRequest) error
}

// New creates a new pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	p := &Pipeline{
		backend:  cfg.Backend,
		ledger:   cfg.Ledger,
		feeToken: cfg.FeeToken,
		journal:  cfg.Journal,
		logger:   logger,
		now:      now,
	}

	// Order matters: later checks assume earlier ones passed.
	p.checks = []tradeCheck{
		{name: "settlement", run: p.checkNotSettled},
		{name: "taker", run: p.checkTaker},
		{name: "expiration", run: p.checkNotExpired},
		{name: "remaining", run: p.checkRemaining},
		{name: "direction", run: p.checkDirection},
		{name: "signature", run: p.checkSignature},
		{name: "enablement", run: p.checkEnabled},
		{name: "fees", run: p.checkFees},
		{name: "collateral", run: p.checkCollateral},
	}

	return p, nil
}

// TradeOrder fills fillQty of order on behalf of sender, who becomes the
// taker. Every check runs in order and the first failure is returned; the
// trade is only submitted once all of them pass.
func (p *Pipeline) TradeOrder(
	ctx context.Context,
	order *types.SignedOrder,
	fillQty *big.Int,
	sender common.Address,
) (*types.OrderTransaction, error) {
	if order == nil || order.OrderQty == nil || fillQty == nil {
		return nil, errors.New("order and fill quantity are required")
	}

	req := &tradeRequest{
		order:     order,
		fillQty:   fillQty,
		taker:     sender,
		orderHash: signing.HashOrder(&order.Order),
	}

	start := time.Now()
	for _, check := range p.checks {
		err := check.run(ctx, req)
		if err != nil {
			CheckDurationSeconds.WithLabelValues("trade").Observe(time.Since(start).Seconds())
			p.reject("trade", req.orderHash, check.name, err)
			return nil, err
		}
	}
	CheckDurationSeconds.WithLabelValues("trade").Observe(time.Since(start).Seconds())

	receipt, err := p.backend.TradeOrder(ctx, sender, order, fillQty)
	if err != nil {
		SubmissionsTotal.WithLabelValues("trade", "failed").Inc()
		return nil, fmt.Errorf("submit trade: %w", err)
	}
	SubmissionsTotal.WithLabelValues("trade", "mined").Inc()

	p.ledger.Invalidate(order.ContractAddress, req.orderHash)

	p.logger.Info("trade-mined",
		zap.String("order-hash", req.orderHash.Hex()),
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.String("fill-qty", fillQty.String()))

	p.record(ctx, storage.KindTrade, receipt, order.ContractAddress, req.orderHash, sender, fillQty)

	return &types.OrderTransaction{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		Order:       order,
		FillQty:     new(big.Int).Set(fillQty),
	}, nil
}

// CancelOrder cancels cancelQty of the maker's own order.
func (p *Pipeline) CancelOrder(
	ctx context.Context,
	order *types.Order,
	cancelQty *big.Int,
	sender common.Address,
) (*types.CancelTransaction, error) {
	if order == nil || order.OrderQty == nil || cancelQty == nil {
		return nil, errors.New("order and cancel quantity are required")
	}

	orderHash := signing.HashOrder(order)

	err := p.checkCancel(ctx, order, orderHash, cancelQty, sender)
	if err != nil {
		p.reject("cancel", orderHash, "cancel", err)
		return nil, err
	}

	receipt, err := p.backend.CancelOrder(ctx, sender, order, cancelQty)
	if err != nil {
		SubmissionsTotal.WithLabelValues("cancel", "failed").Inc()
		return nil, fmt.Errorf("submit cancel: %w", err)
	}
	SubmissionsTotal.WithLabelValues("cancel", "mined").Inc()

	p.ledger.Invalidate(order.ContractAddress, orderHash)

	p.logger.Info("cancel-mined",
		zap.String("order-hash", orderHash.Hex()),
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.String("cancel-qty", cancelQty.String()))

	p.record(ctx, storage.KindCancel, receipt, order.ContractAddress, orderHash, sender, cancelQty)

	return &types.CancelTransaction{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		Order:       order,
		CancelQty:   new(big.Int).Set(cancelQty),
	}, nil
}

func (p *Pipeline) checkCancel(
	ctx context.Context,
	order *types.Order,
	orderHash common.Hash,
	cancelQty *big.Int,
	sender common.Address,
) error {
	settled, err := p.backend.IsSettled(ctx, order.ContractAddress)
	if err != nil {
		return fmt.Errorf("get settlement state: %w", err)
	}
	if settled {
		return types.NewOrderError(types.ErrContractAlreadySettled, orderHash.Hex(), "")
	}

	if sender != order.Maker {
		return fmt.Errorf("%w: %s", ErrNotOrderMaker, sender.Hex())
	}

	if p.expired(order) {
		return types.NewOrderError(types.ErrOrderExpired, orderHash.Hex(), "")
	}

	remaining, err := p.RemainingQty(ctx, order)
	if err != nil {
		return err
	}
	if remaining.Sign() == 0 {
		return types.NewOrderError(types.ErrOrderFilledOrCancelled, orderHash.Hex(), "")
	}

	if order.OrderQty.Sign() != cancelQty.Sign() {
		return types.NewOrderError(types.ErrBuySellMismatch, orderHash.Hex(),
			fmt.Sprintf("order %s, cancel %s", order.OrderQty, cancelQty))
	}

	return nil
}

// SettleAndClose closes sender's positions in a settled contract and returns
// the collateral to the pool.
func (p *Pipeline) SettleAndClose(ctx context.Context, contract, sender common.Address) (*types.TxReceipt, error) {
	settled, err := p.backend.IsSettled(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("get settlement state: %w", err)
	}
	if !settled {
		err = types.NewOrderError(types.ErrContractNotSettled, "", contract.Hex())
		p.reject("settle", common.Hash{}, "settlement", err)
		return nil, err
	}

	count, err := p.backend.PositionCount(ctx, contract, sender)
	if err != nil {
		return nil, fmt.Errorf("get position count: %w", err)
	}
	if count.Sign() == 0 {
		err = types.NewOrderError(types.ErrUserHasNoAssociatedPositions, "", sender.Hex())
		p.reject("settle", common.Hash{}, "positions", err)
		return nil, err
	}

	receipt, err := p.backend.SettleAndClose(ctx, sender, contract)
	if err != nil {
		SubmissionsTotal.WithLabelValues("settle", "failed").Inc()
		return nil, fmt.Errorf("submit settle: %w", err)
	}
	SubmissionsTotal.WithLabelValues("settle", "mined").Inc()

	p.logger.Info("settle-mined",
		zap.String("contract", contract.Hex()),
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.String("positions", count.String()))

	p.record(ctx, storage.KindSettle, receipt, contract, common.Hash{}, sender, nil)

	return receipt, nil
}

// RemainingQty returns the unsigned quantity of order not yet filled or
// cancelled, according to the ledger.
func (p *Pipeline) RemainingQty(ctx context.Context, order *types.Order) (*big.Int, error) {
	orderHash := signing.HashOrder(order)

	filled, err := p.ledger.GetFilledOrCancelled(ctx, order.ContractAddress, orderHash)
	if err != nil {
		return nil, err
	}

	return fillable.RemainingToFill(order.OrderQty, filled), nil
}

func (p *Pipeline) checkNotSettled(ctx context.Context, req *tradeRequest) error {
	settled, err := p.backend.IsSettled(ctx, req.order.ContractAddress)
	if err != nil {
		return fmt.Errorf("get settlement state: %w", err)
	}
	if settled {
		return types.NewOrderError(types.ErrContractAlreadySettled, req.orderHash.Hex(), "")
	}
	return nil
}

func (p *Pipeline) checkTaker(ctx context.Context, req *tradeRequest) error {
	if !req.order.IsOpen() && req.order.Taker != req.taker {
		return types.NewOrderError(types.ErrInvalidTaker, req.orderHash.Hex(),
			fmt.Sprintf("order taker %s, sender %s", req.order.Taker.Hex(), req.taker.Hex()))
	}
	return nil
}

func (p *Pipeline) checkNotExpired(ctx context.Context, req *tradeRequest) error {
	if p.expired(&req.order.Order) {
		return types.NewOrderError(types.ErrOrderExpired, req.orderHash.Hex(),
			fmt.Sprintf("expired at %s", req.order.ExpirationTimestamp))
	}
	return nil
}

func (p *Pipeline) checkRemaining(ctx context.Context, req *tradeRequest) error {
	remaining := req.order.RemainingQty
	if remaining == nil {
		filled, err := p.ledger.GetFilledOrCancelled(ctx, req.order.ContractAddress, req.orderHash)
		if err != nil {
			return err
		}
		remaining = fillable.RemainingToFill(req.order.OrderQty, filled)
	}

	if remaining.Sign() == 0 {
		return types.NewOrderError(types.ErrOrderFilledOrCancelled, req.orderHash.Hex(), "")
	}
	return nil
}

func (p *Pipeline) checkDirection(ctx context.Context, req *tradeRequest) error {
	if req.order.OrderQty.Sign() != req.fillQty.Sign() {
		return types.NewOrderError(types.ErrBuySellMismatch, req.orderHash.Hex(),
			fmt.Sprintf("order %s, fill %s", req.order.OrderQty, req.fillQty))
	}
	return nil
}

func (p *Pipeline) checkSignature(ctx context.Context, req *tradeRequest) error {
	if !signing.IsValidSignature(req.orderHash, req.order.Signature, req.order.Maker) {
		return types.NewOrderError(types.ErrInvalidSignature, req.orderHash.Hex(), "")
	}
	return nil
}

func (p *Pipeline) checkEnabled(ctx context.Context, req *tradeRequest) error {
	for _, user := range []common.Address{req.order.Maker, req.taker} {
		enabled, err := p.backend.IsUserEnabled(ctx, req.order.ContractAddress, user)
		if err != nil {
			return fmt.Errorf("get enablement: %w", err)
		}
		if !enabled {
			return types.NewOrderError(types.ErrUserNotEnabledForContract, req.orderHash.Hex(), user.Hex())
		}
	}
	return nil
}

func (p *Pipeline) checkFees(ctx context.Context, req *tradeRequest) error {
	order := req.order
	if !order.ChargesFees() {
		return nil
	}

	err := fillable.CheckFeeFunds(ctx, p.backend, p.feeToken, order.Maker, order.FeeRecipient, order.MakerFee, req.orderHash)
	if err != nil {
		return err
	}

	return fillable.CheckFeeFunds(ctx, p.backend, p.feeToken, req.taker, order.FeeRecipient, order.TakerFee, req.orderHash)
}

func (p *Pipeline) checkCollateral(ctx context.Context, req *tradeRequest) error {
	order := req.order

	terms, err := p.backend.ContractTerms(ctx, order.ContractAddress)
	if err != nil {
		return fmt.Errorf("get contract terms: %w", err)
	}

	sides := []struct {
		user common.Address
		qty  *big.Int
	}{
		{user: order.Maker, qty: req.fillQty},
		{user: req.taker, qty: new(big.Int).Neg(req.fillQty)},
	}

	for _, side := range sides {
		available, err := p.backend.UnallocatedCollateral(ctx, order.ContractAddress, side.user)
		if err != nil {
			return fmt.Errorf("get collateral: %w", err)
		}

		needed := collateral.NeededCollateralForTerms(terms, side.qty, order.Price)
		if collateral.FromBig(available).LessThan(needed) {
			return types.NewOrderError(types.ErrInsufficientCollateralBalance, req.orderHash.Hex(),
				fmt.Sprintf("%s has %s, needs %s", side.user.Hex(), available, needed))
		}
	}
	return nil
}

func (p *Pipeline) expired(order *types.Order) bool {
	if order.ExpirationTimestamp == nil {
		return true
	}
	return order.ExpirationTimestamp.Cmp(big.NewInt(p.now().Unix())) < 0
}

func (p *Pipeline) reject(operation string, orderHash common.Hash, check string, err error) {
	code := "backend"
	var orderErr *types.OrderError
	if errors.As(err, &orderErr) {
		code = orderErr.Code
	} else if errors.Is(err, ErrNotOrderMaker) {
		code = "NOT_ORDER_MAKER"
	}

	RejectionsTotal.WithLabelValues(operation, code).Inc()

	p.logger.Warn("order-rejected",
		zap.String("operation", operation),
		zap.String("order-hash", orderHash.Hex()),
		zap.String("check", check),
		zap.String("code", code),
		zap.Error(err))
}

// record journals a mined transaction. The transaction is already on chain,
// so a journal failure is logged rather than returned.
func (p *Pipeline) record(
	ctx context.Context,
	kind string,
	receipt *types.TxReceipt,
	contract common.Address,
	orderHash common.Hash,
	sender common.Address,
	qty *big.Int,
) {
	if p.journal == nil {
		return
	}

	rec := storage.NewTxRecord(kind)
	rec.TxHash = receipt.TxHash.Hex()
	rec.BlockNumber = receipt.BlockNumber
	rec.Contract = contract.Hex()
	rec.Sender = sender.Hex()
	if qty != nil {
		rec.OrderHash = orderHash.Hex()
		rec.Qty = qty.String()
	}

	err := p.journal.RecordTransaction(ctx, rec)
	if err != nil {
		JournalErrorsTotal.Inc()
		p.logger.Error("journal-record-failed",
			zap.String("tx-hash", rec.TxHash),
			zap.Error(err))
	}
}
