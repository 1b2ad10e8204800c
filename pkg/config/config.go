package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Ethereum
	EthRPCURL     string
	EthWSURL      string // log subscriptions; empty disables the watcher
	ChainID       int64
	PrivateKey    string // hex, only needed for transactions
	TxMineTimeout time.Duration

	// Protocol
	FeeTokenAddress string
	WatchContracts  []string

	// Contract terms cache
	TermsCacheMaxItems int

	// Event watcher
	WatcherReconnectInitialDelay time.Duration
	WatcherReconnectMaxDelay     time.Duration
	WatcherReconnectBackoffMult  float64

	// Account tracker
	WalletAddress      string // defaults to the signing key's address
	WalletPollInterval time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Ethereum defaults
		EthRPCURL:     getEnvOrDefault("ETH_RPC_URL", "http://localhost:8545"),
		EthWSURL:      os.Getenv("ETH_WS_URL"),
		ChainID:       getInt64OrDefault("CHAIN_ID", 1),
		PrivateKey:    os.Getenv("PRIVATE_KEY"),
		TxMineTimeout: getDurationOrDefault("TX_MINE_TIMEOUT", 2*time.Minute),

		// Protocol
		FeeTokenAddress: os.Getenv("FEE_TOKEN_ADDRESS"),
		WatchContracts:  getListOrDefault("WATCH_CONTRACTS", nil),

		TermsCacheMaxItems: getIntOrDefault("TERMS_CACHE_MAX_ITEMS", 10000),

		// Watcher defaults
		WatcherReconnectInitialDelay: getDurationOrDefault("WATCHER_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WatcherReconnectMaxDelay:     getDurationOrDefault("WATCHER_RECONNECT_MAX_DELAY", 30*time.Second),
		WatcherReconnectBackoffMult:  getFloat64OrDefault("WATCHER_RECONNECT_BACKOFF_MULTIPLIER", 2.0),

		WalletAddress:      os.Getenv("WALLET_ADDRESS"),
		WalletPollInterval: getDurationOrDefault("WALLET_POLL_INTERVAL", 30*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "market"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "market123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "market_sdk"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.EthRPCURL == "" {
		return fmt.Errorf("ETH_RPC_URL cannot be empty")
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}

	if c.FeeTokenAddress != "" && !common.IsHexAddress(c.FeeTokenAddress) {
		return fmt.Errorf("FEE_TOKEN_ADDRESS is not a valid address: %q", c.FeeTokenAddress)
	}

	for _, addr := range c.WatchContracts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("WATCH_CONTRACTS contains an invalid address: %q", addr)
		}
	}

	if len(c.WatchContracts) > 0 && c.EthWSURL == "" {
		return fmt.Errorf("ETH_WS_URL is required when WATCH_CONTRACTS is set")
	}

	if c.TermsCacheMaxItems <= 0 {
		return fmt.Errorf("TERMS_CACHE_MAX_ITEMS must be positive, got %d", c.TermsCacheMaxItems)
	}

	if c.WatcherReconnectInitialDelay <= 0 {
		return fmt.Errorf("WATCHER_RECONNECT_INITIAL_DELAY must be positive")
	}

	if c.WatcherReconnectMaxDelay < c.WatcherReconnectInitialDelay {
		return fmt.Errorf("WATCHER_RECONNECT_MAX_DELAY must be at least WATCHER_RECONNECT_INITIAL_DELAY")
	}

	if c.WalletAddress != "" && !common.IsHexAddress(c.WalletAddress) {
		return fmt.Errorf("WALLET_ADDRESS is not a valid address: %q", c.WalletAddress)
	}

	if c.WalletPollInterval <= 0 {
		return fmt.Errorf("WALLET_POLL_INTERVAL must be positive")
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

// FeeToken returns the fee token address, or the zero address if unset.
func (c *Config) FeeToken() common.Address {
	return common.HexToAddress(c.FeeTokenAddress)
}

// WatchAddresses returns WatchContracts as addresses.
func (c *Config) WatchAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.WatchContracts))
	for _, addr := range c.WatchContracts {
		out = append(out, common.HexToAddress(addr))
	}
	return out
}

// TrackedAccount returns WalletAddress, falling back to the signing key's
// address. ok is false when neither is configured.
func (c *Config) TrackedAccount() (addr common.Address, ok bool) {
	if c.WalletAddress != "" {
		return common.HexToAddress(c.WalletAddress), true
	}

	key, err := c.SigningKey()
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(key.PublicKey), true
}

// SigningKey parses PrivateKey. It fails when no key is configured.
func (c *Config) SigningKey() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, errors.New("PRIVATE_KEY is not set")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse PRIVATE_KEY: %w", err)
	}
	return key, nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getListOrDefault splits a comma separated value, dropping empty items.
func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
