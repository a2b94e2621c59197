package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/V4T54L/ledger-archiver/internal/adapter/metrics"
	"github.com/V4T54L/ledger-archiver/internal/domain"
)

const (
	filePrefix     = "events-"
	terminalSuffix = "-final"
	fileExt        = ".csv"
	filePerm       = 0644
)

// BatchWriter implements domain.BatchWriter, writing one CSV file per batch.
type BatchWriter struct {
	dir     string
	logger  *slog.Logger
	metrics *metrics.ArchiveMetrics
}

// NewBatchWriter creates a BatchWriter rooted at dir, creating the directory if needed.
func NewBatchWriter(dir string, logger *slog.Logger, m *metrics.ArchiveMetrics) (*BatchWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory %s: %w", dir, err)
	}
	return &BatchWriter{
		dir:     dir,
		logger:  logger.With("component", "csv_batch_writer"),
		metrics: m,
	}, nil
}

// FileName returns the batch file name for key: events-<txDigest>-<eventSeq>.csv,
// with a -final suffix before the extension for the terminal page.
func FileName(key domain.BatchKey) string {
	suffix := ""
	if key.Terminal {
		suffix = terminalSuffix
	}
	return fmt.Sprintf("%s%s-%d%s%s", filePrefix, key.Cursor.TxDigest, key.Cursor.EventSeq, suffix, fileExt)
}

// WriteBatch writes records to a temporary file and renames it into place,
// so a batch is either fully present under its final name or absent.
func (w *BatchWriter) WriteBatch(ctx context.Context, key domain.BatchKey, records []domain.FlattenedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := FileName(key)
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid batch key %s", key)
	}
	path := filepath.Join(w.dir, name)
	tmpPath := path + ".tmp-" + uuid.NewString()

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create batch file %s: %w", tmpPath, err)
	}

	n, err := encode(f, records)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write batch file %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move batch file into place %s: %w", path, err)
	}

	if w.metrics != nil {
		w.metrics.BatchFilesTotal.Inc()
		w.metrics.BatchBytesTotal.Add(float64(n))
	}
	w.logger.Info("wrote batch file", "path", path, "records", len(records), "bytes", n)
	return nil
}

// encode writes the header row followed by one row per record and returns the bytes written.
func encode(dst io.Writer, records []domain.FlattenedRecord) (int64, error) {
	cw := &countingWriter{w: dst}
	enc := csv.NewWriter(cw)

	if err := enc.Write(domain.FlattenedColumns); err != nil {
		return cw.n, err
	}

	var data bytes.Buffer
	for _, r := range records {
		data.Reset()
		if len(r.EventData) > 0 {
			if err := json.Compact(&data, r.EventData); err != nil {
				return cw.n, fmt.Errorf("event %s/%d: invalid event data: %w", r.TransactionID, r.EventSeq, err)
			}
		}
		row := []string{
			r.TransactionID,
			strconv.FormatInt(r.EventSeq, 10),
			r.EventName,
			data.String(),
			r.Timestamp,
		}
		if err := enc.Write(row); err != nil {
			return cw.n, err
		}
	}

	enc.Flush()
	return cw.n, enc.Error()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
