package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for flattened event timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// QueryAll is the event filter matching every event in the ledger.
var QueryAll = json.RawMessage(`"All"`)

// Order is the traversal direction of the event log.
type Order string

const (
	OrderAscending  Order = "ascending"
	OrderDescending Order = "descending"
)

// ParseOrder validates an order string. An empty string means ascending.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderAscending:
		return OrderAscending, nil
	case OrderDescending:
		return OrderDescending, nil
	default:
		return "", fmt.Errorf("unknown order %q", s)
	}
}

// EventID identifies one event in ledger order. It doubles as the pagination cursor.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq int64  `json:"eventSeq"`
}

// UnmarshalJSON accepts eventSeq encoded either as a JSON number or as a decimal string.
func (id *EventID) UnmarshalJSON(data []byte) error {
	var raw struct {
		TxDigest string      `json:"txDigest"`
		EventSeq json.Number `json:"eventSeq"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var seq int64
	if raw.EventSeq != "" {
		n, err := strconv.ParseInt(raw.EventSeq.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid eventSeq %q: %w", raw.EventSeq, err)
		}
		seq = n
	}

	id.TxDigest = raw.TxDigest
	id.EventSeq = seq
	return nil
}

func (id EventID) String() string {
	return fmt.Sprintf("%s/%d", id.TxDigest, id.EventSeq)
}

// EventRecord is one event as returned by the event query service.
type EventRecord struct {
	TxDigest  string                     `json:"txDigest"`
	ID        EventID                    `json:"id"`
	Event     map[string]json.RawMessage `json:"event"`
	Timestamp int64                      `json:"timestamp"`
}

// FlattenedRecord is the tabular form of an EventRecord.
type FlattenedRecord struct {
	TransactionID string          `json:"transactionId"`
	EventSeq      int64           `json:"eventSeq"`
	EventName     string          `json:"eventName"`
	EventData     json.RawMessage `json:"eventData"`
	Timestamp     string          `json:"timestamp"`
}

// FlattenedColumns names the FlattenedRecord fields in column order.
var FlattenedColumns = []string{"transactionId", "eventSeq", "eventName", "eventData", "timestamp"}

// Flatten lifts the single event variant of r to the top level.
// The event mapping must hold exactly one entry, otherwise ErrMalformedEvent is returned.
func (r EventRecord) Flatten() (FlattenedRecord, error) {
	if len(r.Event) != 1 {
		return FlattenedRecord{}, fmt.Errorf("%w: event %s has %d variants", ErrMalformedEvent, r.ID, len(r.Event))
	}

	var name string
	var data json.RawMessage
	for k, v := range r.Event {
		name, data = k, v
	}

	txID := r.TxDigest
	if txID == "" {
		txID = r.ID.TxDigest
	}

	return FlattenedRecord{
		TransactionID: txID,
		EventSeq:      r.ID.EventSeq,
		EventName:     name,
		EventData:     data,
		Timestamp:     time.UnixMilli(r.Timestamp).UTC().Format(TimestampLayout),
	}, nil
}

// EventRequest is one page request against the event query service.
// A nil Cursor starts from the beginning of the log; a nil Limit leaves the page size to the service.
// Continuation is set when Cursor was handed back by the previous page of the same run, as opposed
// to a start cursor taken from configuration or a checkpoint.
type EventRequest struct {
	Query        json.RawMessage
	Cursor       *EventID
	Limit        *int
	Order        Order
	Continuation bool
}

// EventPage is one page of events. A nil NextCursor marks the last page.
type EventPage struct {
	Data       []EventRecord `json:"data"`
	NextCursor *EventID      `json:"nextCursor"`
}

// BatchKey names a persisted page. A regular page is keyed by the cursor that follows it.
// The terminal page has no following cursor and is keyed by its own last event with Terminal
// set, which keeps it distinct from a regular key that happens to name the same event.
type BatchKey struct {
	Cursor   EventID
	Terminal bool
}

func (k BatchKey) String() string {
	if k.Terminal {
		return k.Cursor.String() + " (terminal)"
	}
	return k.Cursor.String()
}

// TimeRangeQuery builds an event filter selecting events with start <= timestamp < end.
func TimeRangeQuery(start, end time.Time) json.RawMessage {
	q := struct {
		TimeRange struct {
			StartTime int64 `json:"startTime"`
			EndTime   int64 `json:"endTime"`
		} `json:"TimeRange"`
	}{}
	q.TimeRange.StartTime = start.UnixMilli()
	q.TimeRange.EndTime = end.UnixMilli()

	data, _ := json.Marshal(q)
	return data
}
