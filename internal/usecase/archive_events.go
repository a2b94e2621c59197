package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/ledger-archiver/internal/adapter/metrics"
	"github.com/V4T54L/ledger-archiver/internal/domain"
)

var errEmptyPage = errors.New("query service returned no page")

// RunState is the paginator state.
type RunState string

const (
	StateIdle     RunState = "idle"
	StateFetching RunState = "fetching"
	StateDone     RunState = "done"
	StateFailed   RunState = "failed"
)

// RunStats is a point-in-time snapshot of a run.
type RunStats struct {
	RunID      string          `json:"run_id"`
	State      RunState        `json:"state"`
	Pages      int             `json:"pages"`
	Events     int             `json:"events"`
	Files      int             `json:"files"`
	LastCursor *domain.EventID `json:"last_cursor,omitempty"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ArchiveOptions parameterizes a run.
type ArchiveOptions struct {
	Query json.RawMessage
	// Limit is passed to the query service as is; nil lets the service choose.
	Limit *int
	Order domain.Order
	// StartCursor is where the run begins when no checkpoint is stored. Nil is the start of the log.
	StartCursor *domain.EventID
	// SkipTerminalPage drops the last page instead of writing it.
	SkipTerminalPage bool
	// RequestsPerSecond paces page requests; 0 disables pacing.
	RequestsPerSecond float64
}

// ArchiveEventsUseCase pages through the remote event log and writes every page as a batch.
type ArchiveEventsUseCase struct {
	source      domain.EventSource
	writer      domain.BatchWriter
	checkpoints domain.CheckpointRepository
	limiter     *rate.Limiter
	metrics     *metrics.ArchiveMetrics
	logger      *slog.Logger
	opts        ArchiveOptions

	mu    sync.RWMutex
	stats RunStats
}

// NewArchiveEventsUseCase creates the paginator. checkpoints and m may be nil.
func NewArchiveEventsUseCase(source domain.EventSource, writer domain.BatchWriter, checkpoints domain.CheckpointRepository, m *metrics.ArchiveMetrics, logger *slog.Logger, opts ArchiveOptions) *ArchiveEventsUseCase {
	if len(opts.Query) == 0 {
		opts.Query = domain.QueryAll
	}
	if opts.Order == "" {
		opts.Order = domain.OrderAscending
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	runID := uuid.NewString()
	return &ArchiveEventsUseCase{
		source:      source,
		writer:      writer,
		checkpoints: checkpoints,
		limiter:     limiter,
		metrics:     m,
		logger:      logger.With("component", "paginator", "run_id", runID),
		opts:        opts,
		stats:       RunStats{RunID: runID, State: StateIdle},
	}
}

// Stats returns a snapshot of the run progress.
func (uc *ArchiveEventsUseCase) Stats() RunStats {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	s := uc.stats
	if s.LastCursor != nil {
		c := *s.LastCursor
		s.LastCursor = &c
	}
	return s
}

// Run fetches pages one at a time until the service reports there are no more.
// Any failure aborts the run; files written before the failure are kept.
func (uc *ArchiveEventsUseCase) Run(ctx context.Context) error {
	cursor, err := uc.startCursor(ctx)
	if err != nil {
		return uc.fail(err)
	}

	seen := make(map[domain.EventID]struct{})
	if cursor != nil {
		seen[*cursor] = struct{}{}
	}

	continuation := false
	uc.begin(cursor)
	uc.logger.Info("starting event archive", "cursor", cursor, "order", uc.opts.Order, "limit", uc.opts.Limit)

	for {
		if err := uc.wait(ctx); err != nil {
			return uc.fail(err)
		}

		page, err := uc.fetch(ctx, cursor, continuation)
		if err != nil {
			return uc.fail(fmt.Errorf("query events after cursor %v: %w", cursor, err))
		}

		records, err := flattenPage(page.Data)
		if err != nil {
			if uc.metrics != nil {
				uc.metrics.EventsTotal.WithLabelValues("malformed").Inc()
			}
			return uc.fail(err)
		}

		next := page.NextCursor
		if next != nil {
			if _, ok := seen[*next]; ok {
				return uc.fail(fmt.Errorf("%w: %s returned again after cursor %v", domain.ErrCursorCycle, next, cursor))
			}
			seen[*next] = struct{}{}
		}

		written, err := uc.persist(ctx, page, records)
		if err != nil {
			return uc.fail(err)
		}

		if next != nil && uc.checkpoints != nil {
			if err := uc.checkpoints.Save(ctx, *next); err != nil {
				return uc.fail(fmt.Errorf("save checkpoint %s: %w", next, err))
			}
		}

		uc.advance(len(records), written, next)
		uc.logger.Debug("processed page", "events", len(records), "written", written, "next_cursor", next)

		if next == nil {
			break
		}
		cursor = next
		continuation = true
	}

	if uc.checkpoints != nil {
		if err := uc.checkpoints.Clear(ctx); err != nil {
			return uc.fail(fmt.Errorf("clear checkpoint: %w", err))
		}
	}

	uc.finish(StateDone, nil)
	s := uc.Stats()
	uc.logger.Info("event archive completed", "pages", s.Pages, "events", s.Events, "files", s.Files)
	return nil
}

func (uc *ArchiveEventsUseCase) startCursor(ctx context.Context) (*domain.EventID, error) {
	if uc.checkpoints != nil {
		cursor, err := uc.checkpoints.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if cursor != nil {
			uc.logger.Info("resuming from checkpoint", "cursor", cursor)
			return cursor, nil
		}
	}
	return uc.opts.StartCursor, nil
}

func (uc *ArchiveEventsUseCase) wait(ctx context.Context) error {
	if uc.limiter != nil {
		return uc.limiter.Wait(ctx)
	}
	return ctx.Err()
}

func (uc *ArchiveEventsUseCase) fetch(ctx context.Context, cursor *domain.EventID, continuation bool) (*domain.EventPage, error) {
	req := domain.EventRequest{
		Query:        uc.opts.Query,
		Cursor:       cursor,
		Limit:        uc.opts.Limit,
		Order:        uc.opts.Order,
		Continuation: continuation,
	}

	start := time.Now()
	page, err := uc.source.QueryEvents(ctx, req)
	if uc.metrics != nil {
		uc.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errEmptyPage
	}
	if uc.metrics != nil {
		uc.metrics.PagesTotal.Inc()
	}
	return page, nil
}

// persist writes the page under the cursor that follows it. The terminal page has no
// following cursor and is keyed by its own last event instead.
func (uc *ArchiveEventsUseCase) persist(ctx context.Context, page *domain.EventPage, records []domain.FlattenedRecord) (bool, error) {
	var key domain.BatchKey
	switch {
	case page.NextCursor != nil:
		key = domain.BatchKey{Cursor: *page.NextCursor}
	case len(page.Data) == 0:
		return false, nil
	case uc.opts.SkipTerminalPage:
		uc.logger.Warn("dropping terminal page", "events", len(records))
		if uc.metrics != nil {
			uc.metrics.EventsTotal.WithLabelValues("dropped").Add(float64(len(records)))
		}
		return false, nil
	default:
		key = domain.BatchKey{Cursor: page.Data[len(page.Data)-1].ID, Terminal: true}
	}

	if err := uc.writer.WriteBatch(ctx, key, records); err != nil {
		return false, fmt.Errorf("write batch %s: %w", key, err)
	}
	if uc.metrics != nil {
		uc.metrics.EventsTotal.WithLabelValues("written").Add(float64(len(records)))
	}
	return true, nil
}

func flattenPage(data []domain.EventRecord) ([]domain.FlattenedRecord, error) {
	records := make([]domain.FlattenedRecord, 0, len(data))
	for _, r := range data {
		f, err := r.Flatten()
		if err != nil {
			return nil, err
		}
		records = append(records, f)
	}
	return records, nil
}

func (uc *ArchiveEventsUseCase) begin(cursor *domain.EventID) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.stats.State = StateFetching
	uc.stats.StartedAt = time.Now().UTC()
	uc.stats.LastCursor = cursor
	if uc.metrics != nil {
		uc.metrics.Running.Set(1)
	}
}

func (uc *ArchiveEventsUseCase) advance(events int, written bool, next *domain.EventID) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.stats.Pages++
	uc.stats.Events += events
	if written {
		uc.stats.Files++
	}
	if next != nil {
		uc.stats.LastCursor = next
	}
}

func (uc *ArchiveEventsUseCase) finish(state RunState, err error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.stats.State = state
	uc.stats.FinishedAt = time.Now().UTC()
	if err != nil {
		uc.stats.Error = err.Error()
	}
	if uc.metrics != nil {
		uc.metrics.Running.Set(0)
	}
}

func (uc *ArchiveEventsUseCase) fail(err error) error {
	uc.finish(StateFailed, err)
	uc.logger.Error("event archive failed", "error", err)
	return err
}
