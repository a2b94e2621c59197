package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

// ErrNoMorePages is returned by MockEventSource when asked for more pages than it was given.
var ErrNoMorePages = errors.New("mock event source: no more scripted pages")

// MockEventSource is a mock implementation of domain.EventSource that replays scripted pages.
type MockEventSource struct {
	mu       sync.Mutex
	Pages    []*domain.EventPage
	Requests []domain.EventRequest
	// FailAt makes the request with this zero-based index return Err.
	FailAt int
	Err    error
}

func (m *MockEventSource) QueryEvents(ctx context.Context, req domain.EventRequest) (*domain.EventPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.Requests)
	m.Requests = append(m.Requests, req)
	if m.Err != nil && idx == m.FailAt {
		return nil, m.Err
	}
	if idx >= len(m.Pages) {
		return nil, ErrNoMorePages
	}
	return m.Pages[idx], nil
}

// WrittenBatch is one call captured by MockBatchWriter.
type WrittenBatch struct {
	Key     domain.BatchKey
	Records []domain.FlattenedRecord
}

// MockBatchWriter is a mock implementation of domain.BatchWriter.
type MockBatchWriter struct {
	mu      sync.Mutex
	Batches []WrittenBatch
	Err     error
}

func (m *MockBatchWriter) WriteBatch(ctx context.Context, key domain.BatchKey, records []domain.FlattenedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Batches = append(m.Batches, WrittenBatch{Key: key, Records: records})
	return nil
}

// MockCheckpointRepository is a mock implementation of domain.CheckpointRepository.
type MockCheckpointRepository struct {
	mu      sync.Mutex
	Cursor  *domain.EventID
	Saved   []domain.EventID
	Cleared bool
	LoadErr error
	SaveErr error
}

func (m *MockCheckpointRepository) Load(ctx context.Context) (*domain.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Cursor, nil
}

func (m *MockCheckpointRepository) Save(ctx context.Context, cursor domain.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	c := cursor
	m.Cursor = &c
	m.Saved = append(m.Saved, cursor)
	return nil
}

func (m *MockCheckpointRepository) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cursor = nil
	m.Cleared = true
	return nil
}
