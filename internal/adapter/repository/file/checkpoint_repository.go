package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

const filePerm = 0644

// syncFile is the part of *os.File a checkpoint write needs.
type syncFile interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

type checkpoint struct {
	Cursor    domain.EventID `json:"cursor"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CheckpointRepository implements domain.CheckpointRepository as a JSON file on local disk.
type CheckpointRepository struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex

	// openFile opens the temporary checkpoint file for writing.
	openFile func(name string) (syncFile, error)
}

func openTempFile(name string) (syncFile, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewCheckpointRepository creates a file-backed checkpoint at path, creating its directory.
func NewCheckpointRepository(path string, logger *slog.Logger) (*CheckpointRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory for %s: %w", path, err)
	}
	return &CheckpointRepository{
		path:     path,
		logger:   logger.With("component", "file_checkpoint_repository"),
		openFile: openTempFile,
	}, nil
}

// Load returns the stored cursor, or nil if no checkpoint file exists.
func (r *CheckpointRepository) Load(ctx context.Context) (*domain.EventID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", r.path, err)
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", r.path, err)
	}
	return &cp.Cursor, nil
}

// Save writes the cursor to a temporary file and renames it over the checkpoint.
func (r *CheckpointRepository) Save(ctx context.Context, cursor domain.EventID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(checkpoint{Cursor: cursor, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp := r.path + ".tmp"
	f, err := r.openFile(tmp)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint %s: %w", tmp, err)
	}
	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write checkpoint %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint %s: %w", r.path, err)
	}

	r.logger.Debug("Saved checkpoint", "cursor", cursor)
	return nil
}

// Clear removes the checkpoint file.
func (r *CheckpointRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint %s: %w", r.path, err)
	}
	r.logger.Info("Checkpoint cleared")
	return nil
}
