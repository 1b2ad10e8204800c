package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// RecordTransaction inserts a transaction into the tx_journal table.
// Quantities are stored as NUMERIC text to keep full int256 range.
func (p *PostgresStorage) RecordTransaction(ctx context.Context, rec *TxRecord) error {
	query := `
		INSERT INTO tx_journal (
			id, kind, tx_hash, block_number, contract_address,
			order_hash, sender, qty, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::NUMERIC, $9
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		rec.Kind,
		rec.TxHash,
		int64(rec.BlockNumber),
		rec.Contract,
		sql.NullString{String: rec.OrderHash, Valid: rec.OrderHash != ""},
		rec.Sender,
		rec.Qty,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	p.logger.Debug("transaction-recorded",
		zap.String("record-id", rec.ID),
		zap.String("kind", rec.Kind),
		zap.String("tx-hash", rec.TxHash))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
