package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/market-sdk/internal/ledger"
	"github.com/mselser95/market-sdk/internal/storage"
	"github.com/mselser95/market-sdk/internal/trading"
	"github.com/mselser95/market-sdk/pkg/cache"
	"github.com/mselser95/market-sdk/pkg/chain"
	"github.com/mselser95/market-sdk/pkg/config"
	"go.uber.org/zap"
)

// SDK bundles the components every command needs: a chain backend, the
// filled/cancelled ledger in front of it, and the trade pipeline.
type SDK struct {
	Backend  chain.Backend
	Ledger   *ledger.Store
	Pipeline *trading.Pipeline
	Journal  storage.Storage
	FeeToken common.Address
	// Sender is the signing key's address, zero for read-only use.
	Sender common.Address

	eth    *ethclient.Client
	terms  cache.Cache
	logger *zap.Logger
}

// NewSDK dials ETH_RPC_URL and wires the SDK. requireKey fails early when
// PRIVATE_KEY is missing, for commands that send transactions.
func NewSDK(ctx context.Context, cfg *config.Config, logger *zap.Logger, requireKey bool) (*SDK, error) {
	var key *ecdsa.PrivateKey
	if cfg.PrivateKey != "" || requireKey {
		var err error
		key, err = cfg.SigningKey()
		if err != nil {
			return nil, err
		}
	}

	eth, err := chain.Dial(ctx, cfg.EthRPCURL)
	if err != nil {
		return nil, err
	}

	terms, err := setupTermsCache(cfg, logger)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("setup terms cache: %w", err)
	}

	client, err := chain.NewClient(&chain.ClientConfig{
		Backend:    eth,
		TermsCache: terms,
		// The fee token contract also answers isUserEnabledForContract.
		EnablementRegistry: cfg.FeeToken(),
		PrivateKey:         key,
		ChainID:            big.NewInt(cfg.ChainID),
		MineTimeout:        cfg.TxMineTimeout,
		Logger:             logger,
	})
	if err != nil {
		terms.Close()
		eth.Close()
		return nil, fmt.Errorf("create chain client: %w", err)
	}

	journal, err := setupStorage(cfg, logger)
	if err != nil {
		terms.Close()
		eth.Close()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	sdk, err := newSDK(cfg, logger, client, journal)
	if err != nil {
		_ = journal.Close()
		terms.Close()
		eth.Close()
		return nil, err
	}
	sdk.eth = eth
	sdk.terms = terms
	if key != nil {
		sdk.Sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	return sdk, nil
}

// newSDK wires the ledger and pipeline over any backend.
func newSDK(cfg *config.Config, logger *zap.Logger, backend chain.Backend, journal storage.Storage) (*SDK, error) {
	store := ledger.New(backend, logger)

	pipeline, err := trading.New(&trading.Config{
		Backend:  backend,
		Ledger:   store,
		FeeToken: cfg.FeeToken(),
		Journal:  journal,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	return &SDK{
		Backend:  backend,
		Ledger:   store,
		Pipeline: pipeline,
		Journal:  journal,
		FeeToken: cfg.FeeToken(),
		logger:   logger,
	}, nil
}

// ChainID asks the node for its chain ID.
func (s *SDK) ChainID(ctx context.Context) (*big.Int, error) {
	if s.eth == nil {
		return nil, fmt.Errorf("no RPC connection")
	}
	return s.eth.ChainID(ctx)
}

// Close releases the journal, terms cache and RPC connection.
func (s *SDK) Close() error {
	var err error
	if s.Journal != nil {
		err = s.Journal.Close()
	}
	if s.terms != nil {
		s.terms.Close()
	}
	if s.eth != nil {
		s.eth.Close()
	}
	return err
}

func setupTermsCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	maxItems := int64(cfg.TermsCacheMaxItems)
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10 * maxItems, // 10x expected max items
		MaxCost:     maxItems,
		BufferItems: 64, // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
