package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record kinds.
const (
	KindTrade  = "trade"
	KindCancel = "cancel"
	KindSettle = "settle"
)

// TxRecord is a journal entry for a mined transaction sent by this process.
type TxRecord struct {
	ID          string
	Kind        string
	TxHash      string
	BlockNumber uint64
	Contract    string
	OrderHash   string // empty for settlements
	Sender      string
	Qty         string // signed decimal quantity; empty for settlements
	RecordedAt  time.Time
}

// NewTxRecord creates a record with a fresh ID and the current time.
func NewTxRecord(kind string) *TxRecord {
	return &TxRecord{
		ID:         uuid.New().String(),
		Kind:       kind,
		RecordedAt: time.Now(),
	}
}

// Storage is the interface for journaling submitted transactions.
type Storage interface {
	// RecordTransaction stores a mined transaction.
	RecordTransaction(ctx context.Context, rec *TxRecord) error

	// Close closes the storage connection.
	Close() error
}
