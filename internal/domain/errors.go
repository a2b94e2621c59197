package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent is returned when an event record does not carry exactly one event variant.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrCursorCycle is returned when the query service hands back a cursor already seen in the run.
	ErrCursorCycle = errors.New("cursor cycle detected")
)

// QueryError is an error reported by the event query service itself.
type QueryError struct {
	Code    int
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query service error %d: %s", e.Code, e.Message)
}
