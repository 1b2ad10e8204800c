package cmd

import (
	"fmt"
	"io"
	"math/big"
	"os"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mselser95/market-sdk/pkg/config"
	"github.com/mselser95/market-sdk/pkg/types"
)

// loadEnv reads .env if present and builds config and logger from the
// environment.
func loadEnv() (*config.Config, *zap.Logger, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

// readOrderFile decodes a JSON order from path, or stdin when path is "-".
func readOrderFile(path string, v interface{}) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read order: %w", err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	return nil
}

func readSignedOrder(path string) (*types.SignedOrder, error) {
	var order types.SignedOrder
	err := readOrderFile(path, &order)
	if err != nil {
		return nil, err
	}
	if order.OrderQty == nil {
		return nil, fmt.Errorf("order has no orderQty")
	}
	return &order, nil
}

// parseBig parses a base 10 integer flag value.
func parseBig(name, value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("--%s must be an integer, got %q", name, value)
	}
	return v, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
