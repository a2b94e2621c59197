package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

const checkpointKeyPrefix = "ledger_archiver:checkpoint:"

// CheckpointRepository implements domain.CheckpointRepository as a Redis hash.
type CheckpointRepository struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewCheckpointRepository creates a Redis-backed checkpoint stored under the given name.
func NewCheckpointRepository(client *redis.Client, name string, logger *slog.Logger) *CheckpointRepository {
	return &CheckpointRepository{
		client: client,
		key:    checkpointKeyPrefix + name,
		logger: logger.With("component", "redis_checkpoint_repository"),
	}
}

// Load returns the stored cursor, or nil if the hash does not exist.
func (r *CheckpointRepository) Load(ctx context.Context) (*domain.EventID, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to HGETALL checkpoint %s: %w", r.key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	seq, err := strconv.ParseInt(fields["event_seq"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid event_seq in checkpoint %s: %w", r.key, err)
	}
	return &domain.EventID{TxDigest: fields["tx_digest"], EventSeq: seq}, nil
}

// Save replaces the stored cursor.
func (r *CheckpointRepository) Save(ctx context.Context, cursor domain.EventID) error {
	err := r.client.HSet(ctx, r.key,
		"tx_digest", cursor.TxDigest,
		"event_seq", strconv.FormatInt(cursor.EventSeq, 10),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to HSET checkpoint %s: %w", r.key, err)
	}
	return nil
}

// Clear deletes the checkpoint hash.
func (r *CheckpointRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to DEL checkpoint %s: %w", r.key, err)
	}
	r.logger.Info("Checkpoint cleared", "key", r.key)
	return nil
}
