package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by printing a summary per transaction.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    os.Stdout,
		logger: logger,
	}
}

// RecordTransaction prints a transaction summary.
func (c *ConsoleStorage) RecordTransaction(ctx context.Context, rec *TxRecord) error {
	fmt.Fprintln(c.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(c.out, "%s TRANSACTION MINED\n", kindLabel(rec.Kind))
	fmt.Fprintln(c.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(c.out, "ID:        %s\n", rec.ID)
	fmt.Fprintf(c.out, "Tx:        %s\n", rec.TxHash)
	fmt.Fprintf(c.out, "Block:     %d\n", rec.BlockNumber)
	fmt.Fprintf(c.out, "Contract:  %s\n", rec.Contract)
	fmt.Fprintf(c.out, "Sender:    %s\n", rec.Sender)
	if rec.OrderHash != "" {
		fmt.Fprintf(c.out, "Order:     %s\n", rec.OrderHash)
		fmt.Fprintf(c.out, "Qty:       %s\n", rec.Qty)
	}
	fmt.Fprintf(c.out, "Time:      %s\n", rec.RecordedAt.Format("2006-01-02 15:04:05"))

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

func kindLabel(kind string) string {
	switch kind {
	case KindTrade:
		return "TRADE"
	case KindCancel:
		return "CANCEL"
	case KindSettle:
		return "SETTLE"
	default:
		return "UNKNOWN"
	}
}
