package config

import (
	"os"
	"testing"
	"time"
)

// BenchmarkConfig_Validate benchmarks configuration validation
func BenchmarkConfig_Validate(b *testing.B) {
	cfg := validConfig()
	cfg.WatchContracts = []string{
		"0x1000000000000000000000000000000000000001",
		"0x2000000000000000000000000000000000000002",
	}
	cfg.EthWSURL = "ws://localhost:8546"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

// BenchmarkConfig_LoadFromEnv benchmarks environment variable loading
func BenchmarkConfig_LoadFromEnv(b *testing.B) {
	os.Setenv("CHAIN_ID", "1337")
	os.Setenv("TX_MINE_TIMEOUT", "30s")
	defer func() {
		os.Unsetenv("CHAIN_ID")
		os.Unsetenv("TX_MINE_TIMEOUT")
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = LoadFromEnv()
	}
}

func validConfig() *Config {
	return &Config{
		HTTPPort:                     "8080",
		EthRPCURL:                    "http://localhost:8545",
		ChainID:                      1,
		TermsCacheMaxItems:           100,
		WatcherReconnectInitialDelay: time.Second,
		WatcherReconnectMaxDelay:     30 * time.Second,
		WalletPollInterval:           30 * time.Second,
		StorageMode:                  "console",
	}
}
