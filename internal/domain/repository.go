package domain

import "context"

// EventSource defines the remote event query service.
type EventSource interface {
	// QueryEvents fetches a single page of events.
	QueryEvents(ctx context.Context, req EventRequest) (*EventPage, error)
}

// BatchWriter defines durable storage for flattened event batches.
type BatchWriter interface {
	// WriteBatch persists records under a name derived from key.
	WriteBatch(ctx context.Context, key BatchKey, records []FlattenedRecord) error
}

// CheckpointRepository stores the last cursor a run has fully persisted.
type CheckpointRepository interface {
	// Load returns the stored cursor, or nil if there is none.
	Load(ctx context.Context) (*EventID, error)

	// Save replaces the stored cursor.
	Save(ctx context.Context, cursor EventID) error

	// Clear removes the stored cursor. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
