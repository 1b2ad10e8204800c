package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.EthRPCURL != "http://localhost:8545" {
		t.Errorf("EthRPCURL = %q", cfg.EthRPCURL)
	}
	if cfg.ChainID != 1 {
		t.Errorf("ChainID = %d, want 1", cfg.ChainID)
	}
	if cfg.TxMineTimeout != 2*time.Minute {
		t.Errorf("TxMineTimeout = %v, want 2m", cfg.TxMineTimeout)
	}
	if cfg.TermsCacheMaxItems != 10000 {
		t.Errorf("TermsCacheMaxItems = %d, want 10000", cfg.TermsCacheMaxItems)
	}
	if cfg.StorageMode != "console" {
		t.Errorf("StorageMode = %q, want console", cfg.StorageMode)
	}
	if len(cfg.WatchContracts) != 0 {
		t.Errorf("expected no watch contracts, got %v", cfg.WatchContracts)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	os.Setenv("CHAIN_ID", "1337")
	os.Setenv("ETH_WS_URL", "ws://localhost:8546")
	os.Setenv("WATCH_CONTRACTS", " 0x1000000000000000000000000000000000000001, ,0x2000000000000000000000000000000000000002")
	os.Setenv("TX_MINE_TIMEOUT", "45s")
	os.Setenv("FEE_TOKEN_ADDRESS", "0x5000000000000000000000000000000000000005")
	t.Cleanup(func() {
		os.Unsetenv("CHAIN_ID")
		os.Unsetenv("ETH_WS_URL")
		os.Unsetenv("WATCH_CONTRACTS")
		os.Unsetenv("TX_MINE_TIMEOUT")
		os.Unsetenv("FEE_TOKEN_ADDRESS")
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ChainID != 1337 {
		t.Errorf("ChainID = %d, want 1337", cfg.ChainID)
	}
	if cfg.TxMineTimeout != 45*time.Second {
		t.Errorf("TxMineTimeout = %v, want 45s", cfg.TxMineTimeout)
	}

	addrs := cfg.WatchAddresses()
	if len(addrs) != 2 {
		t.Fatalf("expected 2 watch addresses, got %d", len(addrs))
	}
	if addrs[1] != common.HexToAddress("0x2000000000000000000000000000000000000002") {
		t.Errorf("second address = %s", addrs[1].Hex())
	}
	if cfg.FeeToken() != common.HexToAddress("0x5000000000000000000000000000000000000005") {
		t.Errorf("fee token = %s", cfg.FeeToken().Hex())
	}
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHAIN_ID", "mainnet")
	t.Setenv("TX_MINE_TIMEOUT", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ChainID != 1 {
		t.Errorf("ChainID = %d, want default 1", cfg.ChainID)
	}
	if cfg.TxMineTimeout != 2*time.Minute {
		t.Errorf("TxMineTimeout = %v, want default", cfg.TxMineTimeout)
	}
}

func TestLoadFromEnv_ValidationError(t *testing.T) {
	t.Setenv("STORAGE_MODE", "s3")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "STORAGE_MODE") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty_port", mutate: func(c *Config) { c.HTTPPort = "" }, wantErr: "HTTP_PORT"},
		{name: "empty_rpc", mutate: func(c *Config) { c.EthRPCURL = "" }, wantErr: "ETH_RPC_URL"},
		{name: "zero_chain", mutate: func(c *Config) { c.ChainID = 0 }, wantErr: "CHAIN_ID"},
		{name: "bad_fee_token", mutate: func(c *Config) { c.FeeTokenAddress = "0x123" }, wantErr: "FEE_TOKEN_ADDRESS"},
		{
			name: "bad_watch_contract",
			mutate: func(c *Config) {
				c.EthWSURL = "ws://localhost:8546"
				c.WatchContracts = []string{"nope"}
			},
			wantErr: "WATCH_CONTRACTS",
		},
		{
			name:    "watch_without_ws",
			mutate:  func(c *Config) { c.WatchContracts = []string{"0x1000000000000000000000000000000000000001"} },
			wantErr: "ETH_WS_URL",
		},
		{name: "zero_cache", mutate: func(c *Config) { c.TermsCacheMaxItems = 0 }, wantErr: "TERMS_CACHE_MAX_ITEMS"},
		{
			name:    "zero_initial_delay",
			mutate:  func(c *Config) { c.WatcherReconnectInitialDelay = 0 },
			wantErr: "WATCHER_RECONNECT_INITIAL_DELAY",
		},
		{
			name:    "max_below_initial",
			mutate:  func(c *Config) { c.WatcherReconnectMaxDelay = time.Millisecond },
			wantErr: "WATCHER_RECONNECT_MAX_DELAY",
		},
		{name: "bad_wallet", mutate: func(c *Config) { c.WalletAddress = "wallet" }, wantErr: "WALLET_ADDRESS"},
		{name: "zero_wallet_poll", mutate: func(c *Config) { c.WalletPollInterval = 0 }, wantErr: "WALLET_POLL_INTERVAL"},
		{name: "bad_storage", mutate: func(c *Config) { c.StorageMode = "redis" }, wantErr: "STORAGE_MODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_SigningKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	cfg := validConfig()

	_, err = cfg.SigningKey()
	if err == nil {
		t.Error("expected error for missing key")
	}

	for _, raw := range []string{hexKey, "0x" + hexKey} {
		cfg.PrivateKey = raw
		parsed, err := cfg.SigningKey()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if crypto.PubkeyToAddress(parsed.PublicKey) != crypto.PubkeyToAddress(key.PublicKey) {
			t.Error("parsed key does not match")
		}
	}

	cfg.PrivateKey = "zz"
	_, err = cfg.SigningKey()
	if err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestConfig_TrackedAccount(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := validConfig()
	if _, ok := cfg.TrackedAccount(); ok {
		t.Error("expected no tracked account without key or wallet address")
	}

	cfg.PrivateKey = common.Bytes2Hex(crypto.FromECDSA(key))
	addr, ok := cfg.TrackedAccount()
	if !ok || addr != crypto.PubkeyToAddress(key.PublicKey) {
		t.Errorf("TrackedAccount = %s, %v; want key address", addr.Hex(), ok)
	}

	cfg.WalletAddress = "0x7000000000000000000000000000000000000007"
	addr, ok = cfg.TrackedAccount()
	if !ok || addr != common.HexToAddress(cfg.WalletAddress) {
		t.Errorf("TrackedAccount = %s, %v; want wallet address", addr.Hex(), ok)
	}
}

func TestNewLoggerWithLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := NewLoggerWithLevel(level)
		if err != nil {
			t.Errorf("level %q: unexpected error %v", level, err)
			continue
		}
		_ = logger.Sync()
	}

	_, err := NewLoggerWithLevel("verbose")
	if err == nil {
		t.Error("expected error for unknown level")
	}
}
