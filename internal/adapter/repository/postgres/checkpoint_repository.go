package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

const checkpointsTableName = "archive_checkpoints"

// CheckpointRepository implements domain.CheckpointRepository as one row in PostgreSQL.
type CheckpointRepository struct {
	db     *sql.DB
	table  string
	name   string
	logger *slog.Logger
}

// NewCheckpointRepository creates a PostgreSQL checkpoint identified by name.
func NewCheckpointRepository(db *sql.DB, name string, logger *slog.Logger) *CheckpointRepository {
	return &CheckpointRepository{
		db:     db,
		table:  pq.QuoteIdentifier(checkpointsTableName),
		name:   name,
		logger: logger.With("component", "postgres_checkpoint_repository"),
	}
}

// EnsureSchema creates the checkpoints table if it does not exist.
func (r *CheckpointRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.table+` (
			name       TEXT PRIMARY KEY,
			tx_digest  TEXT NOT NULL,
			event_seq  BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", checkpointsTableName, err)
	}
	return nil
}

// Load returns the stored cursor, or nil if no row exists for this name.
func (r *CheckpointRepository) Load(ctx context.Context) (*domain.EventID, error) {
	var cursor domain.EventID
	err := r.db.QueryRowContext(ctx,
		`SELECT tx_digest, event_seq FROM `+r.table+` WHERE name = $1`, r.name,
	).Scan(&cursor.TxDigest, &cursor.EventSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", r.name, err)
	}
	return &cursor, nil
}

// Save upserts the cursor.
func (r *CheckpointRepository) Save(ctx context.Context, cursor domain.EventID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO `+r.table+` (name, tx_digest, event_seq, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO UPDATE SET
			tx_digest = EXCLUDED.tx_digest,
			event_seq = EXCLUDED.event_seq,
			updated_at = EXCLUDED.updated_at`,
		r.name, cursor.TxDigest, cursor.EventSeq)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			r.logger.Error("checkpoint upsert rejected", "code", pqErr.Code, "detail", pqErr.Detail)
		}
		return fmt.Errorf("failed to save checkpoint %s: %w", r.name, err)
	}
	return nil
}

// Clear deletes the row for this name.
func (r *CheckpointRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE name = $1`, r.name); err != nil {
		return fmt.Errorf("failed to clear checkpoint %s: %w", r.name, err)
	}
	r.logger.Info("Checkpoint cleared", "name", r.name)
	return nil
}
