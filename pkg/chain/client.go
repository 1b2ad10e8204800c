package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/market-sdk/pkg/cache"
	"github.com/mselser95/market-sdk/pkg/types"
	"go.uber.org/zap"
)

// EthBackend is the subset of *ethclient.Client the Client needs.
type EthBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client implements Backend over an Ethereum JSON-RPC endpoint.
type Client struct {
	eth         EthBackend
	terms       cache.Cache
	registry    common.Address
	key         *ecdsa.PrivateKey
	sender      common.Address
	chainID     *big.Int
	mineTimeout time.Duration
	logger      *zap.Logger
}

// ClientConfig holds configuration for the chain client.
type ClientConfig struct {
	Backend EthBackend
	// TermsCache memoizes ContractTerms. Optional.
	TermsCache cache.Cache
	// EnablementRegistry is the token contract answering isUserEnabledForContract.
	EnablementRegistry common.Address
	// PrivateKey signs transactions. Optional for read-only use.
	PrivateKey  *ecdsa.PrivateKey
	ChainID     *big.Int
	MineTimeout time.Duration
	Logger      *zap.Logger
}

// Dial connects to an Ethereum node over HTTP or websocket.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	return client, nil
}

// NewClient creates a new chain client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.PrivateKey != nil && cfg.ChainID == nil {
		return nil, errors.New("chain ID is required when a private key is set")
	}

	mineTimeout := cfg.MineTimeout
	if mineTimeout <= 0 {
		mineTimeout = 2 * time.Minute
	}

	c := &Client{
		eth:         cfg.Backend,
		terms:       cfg.TermsCache,
		registry:    cfg.EnablementRegistry,
		key:         cfg.PrivateKey,
		chainID:     cfg.ChainID,
		mineTimeout: mineTimeout,
		logger:      cfg.Logger,
	}

	if cfg.PrivateKey != nil {
		c.sender = crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey)
	}

	return c, nil
}

// Sender returns the address transactions are sent from, or the zero address
// for a read-only client.
func (c *Client) Sender() common.Address {
	return c.sender
}

// TokenBalance fetches an ERC20 balance.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, FeeTokenABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return bigResult(out)
}

// TokenAllowance fetches an ERC20 allowance.
func (c *Client) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, FeeTokenABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return bigResult(out)
}

// IsSettled reads the contract's settlement flag.
func (c *Client) IsSettled(ctx context.Context, contract common.Address) (bool, error) {
	out, err := c.call(ctx, MarketContractABI, contract, "isSettled")
	if err != nil {
		return false, err
	}
	return boolResult(out)
}

// ContractTerms reads the contract's floor, cap, multiplier and collateral
// pool. Terms never change after deployment, so they are cached without TTL.
func (c *Client) ContractTerms(ctx context.Context, contract common.Address) (*types.ContractTerms, error) {
	cacheKey := "terms:" + contract.Hex()
	if c.terms != nil {
		if cached, ok := c.terms.Get(cacheKey); ok {
			if terms, ok := cached.(*types.ContractTerms); ok {
				return terms, nil
			}
		}
	}

	terms := &types.ContractTerms{}
	var err error

	terms.PriceFloor, err = c.callBig(ctx, MarketContractABI, contract, "PRICE_FLOOR")
	if err != nil {
		return nil, err
	}
	terms.PriceCap, err = c.callBig(ctx, MarketContractABI, contract, "PRICE_CAP")
	if err != nil {
		return nil, err
	}
	terms.QtyMultiplier, err = c.callBig(ctx, MarketContractABI, contract, "QTY_MULTIPLIER")
	if err != nil {
		return nil, err
	}

	out, err := c.call(ctx, MarketContractABI, contract, "MARKET_COLLATERAL_POOL_ADDRESS")
	if err != nil {
		return nil, err
	}
	terms.CollateralPool, err = addressResult(out)
	if err != nil {
		return nil, err
	}

	if c.terms != nil && c.terms.Set(cacheKey, terms, 0) {
		// Terms are usually read again straight away by the collateral check.
		c.terms.Wait()
	}

	c.logger.Debug("contract-terms-fetched",
		zap.String("contract", contract.Hex()),
		zap.String("price-floor", terms.PriceFloor.String()),
		zap.String("price-cap", terms.PriceCap.String()),
		zap.String("qty-multiplier", terms.QtyMultiplier.String()))

	return terms, nil
}

// QtyFilledOrCancelled reads the per-order fill/cancel counter.
func (c *Client) QtyFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	return c.callBig(ctx, MarketContractABI, contract, "getQtyFilledOrCancelledFromOrder", [32]byte(orderHash))
}

// IsUserEnabled asks the enablement registry whether user may trade contract.
func (c *Client) IsUserEnabled(ctx context.Context, contract, user common.Address) (bool, error) {
	out, err := c.call(ctx, FeeTokenABI, c.registry, "isUserEnabledForContract", contract, user)
	if err != nil {
		return false, err
	}
	return boolResult(out)
}

// UnallocatedCollateral reads user's free balance from the contract's pool.
func (c *Client) UnallocatedCollateral(ctx context.Context, contract, user common.Address) (*big.Int, error) {
	terms, err := c.ContractTerms(ctx, contract)
	if err != nil {
		return nil, err
	}
	return c.callBig(ctx, CollateralPoolABI, terms.CollateralPool, "getUserUnallocatedBalance", user)
}

// PositionCount reads how many open positions user holds in contract.
func (c *Client) PositionCount(ctx context.Context, contract, user common.Address) (*big.Int, error) {
	terms, err := c.ContractTerms(ctx, contract)
	if err != nil {
		return nil, err
	}
	return c.callBig(ctx, CollateralPoolABI, terms.CollateralPool, "getUserPositionCount", user)
}

// TradeOrder submits tradeOrder for fillQty of order and waits for it to be mined.
func (c *Client) TradeOrder(ctx context.Context, from common.Address, order *types.SignedOrder, fillQty *big.Int) (*types.TxReceipt, error) {
	addresses, values := orderTuple(&order.Order)
	return c.transact(ctx, from, MarketContractABI, order.ContractAddress, "tradeOrder",
		addresses,
		values,
		orZero(order.OrderQty),
		orZero(fillQty),
		order.Signature.V,
		[32]byte(order.Signature.R),
		[32]byte(order.Signature.S),
	)
}

// CancelOrder submits cancelOrder for cancelQty of order and waits for it to be mined.
func (c *Client) CancelOrder(ctx context.Context, from common.Address, order *types.Order, cancelQty *big.Int) (*types.TxReceipt, error) {
	addresses, values := orderTuple(order)
	return c.transact(ctx, from, MarketContractABI, order.ContractAddress, "cancelOrder",
		addresses,
		values,
		orZero(order.OrderQty),
		orZero(cancelQty),
	)
}

// SettleAndClose closes all of from's positions in a settled contract.
func (c *Client) SettleAndClose(ctx context.Context, from common.Address, contract common.Address) (*types.TxReceipt, error) {
	terms, err := c.ContractTerms(ctx, contract)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, from, CollateralPoolABI, terms.CollateralPool, "settleAndClose")
}

func (c *Client) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	start := time.Now()
	defer func() {
		ChainCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	bound := bind.NewBoundContract(to, parsed, c.eth, c.eth, c.eth)

	var out []interface{}
	err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		ChainCallErrorsTotal.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("%s call on %s: %w", method, to.Hex(), err)
	}

	return out, nil
}

func (c *Client) callBig(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, parsed, to, method, args...)
	if err != nil {
		return nil, err
	}
	return bigResult(out)
}

func (c *Client) transact(ctx context.Context, from common.Address, parsed abi.ABI, to common.Address, method string, args ...interface{}) (*types.TxReceipt, error) {
	if c.key == nil {
		return nil, errors.New("client has no signing key")
	}
	if from != c.sender {
		return nil, fmt.Errorf("sender %s does not match signing key %s", from.Hex(), c.sender.Hex())
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	opts.Context = ctx

	bound := bind.NewBoundContract(to, parsed, c.eth, c.eth, c.eth)

	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		TransactionsTotal.WithLabelValues(method, "send_error").Inc()
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	c.logger.Info("transaction-sent",
		zap.String("method", method),
		zap.String("to", to.Hex()),
		zap.String("tx-hash", tx.Hash().Hex()))

	waitCtx, cancel := context.WithTimeout(ctx, c.mineTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		TransactionsTotal.WithLabelValues(method, "wait_error").Inc()
		return nil, fmt.Errorf("wait for %s %s: %w", method, tx.Hash().Hex(), err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		TransactionsTotal.WithLabelValues(method, "reverted").Inc()
		return nil, fmt.Errorf("%s transaction %s reverted", method, receipt.TxHash.Hex())
	}

	TransactionsTotal.WithLabelValues(method, "mined").Inc()

	c.logger.Info("transaction-mined",
		zap.String("method", method),
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return &types.TxReceipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// orderTuple splits an order into the (address[3], uint256[5]) arguments the
// market contract takes.
func orderTuple(order *types.Order) ([3]common.Address, [5]*big.Int) {
	addresses := [3]common.Address{order.Maker, order.Taker, order.FeeRecipient}
	values := [5]*big.Int{
		orZero(order.MakerFee),
		orZero(order.TakerFee),
		orZero(order.Price),
		orZero(order.ExpirationTimestamp),
		orZero(order.Salt),
	}
	return addresses, values
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bigResult(out []interface{}) (*big.Int, error) {
	if len(out) == 0 {
		return nil, errors.New("empty call result")
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", out[0])
	}
	return v, nil
}

func boolResult(out []interface{}) (bool, error) {
	if len(out) == 0 {
		return false, errors.New("empty call result")
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type %T", out[0])
	}
	return v, nil
}

func addressResult(out []interface{}) (common.Address, error) {
	if len(out) == 0 {
		return common.Address{}, errors.New("empty call result")
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected result type %T", out[0])
	}
	return v, nil
}
