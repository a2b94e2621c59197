package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ybbus/jsonrpc/v3"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

const (
	// DefaultMethod is the full node method serving paginated event queries.
	DefaultMethod = "sui_getEvents"

	// codeInvalidParams is what the node answers when asked to page past the last event.
	codeInvalidParams = -32602
)

var errNoResult = errors.New("response carried neither result nor error")

// EventSource implements domain.EventSource over a full node's JSON-RPC API.
type EventSource struct {
	client jsonrpc.RPCClient
	method string
	logger *slog.Logger
}

// NewEventSource creates an EventSource for endpoint. A zero timeout disables the HTTP timeout.
func NewEventSource(endpoint, method string, timeout time.Duration, logger *slog.Logger) *EventSource {
	if method == "" {
		method = DefaultMethod
	}
	client := jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &EventSource{
		client: client,
		method: method,
		logger: logger.With("component", "rpc_event_source", "endpoint", endpoint),
	}
}

// QueryEvents requests one page. Parameters are sent positionally as
// [query, cursor, limit, descending]; nil cursor and limit are sent as null.
func (s *EventSource) QueryEvents(ctx context.Context, req domain.EventRequest) (*domain.EventPage, error) {
	query := req.Query
	if len(query) == 0 {
		query = domain.QueryAll
	}

	resp, err := s.client.Call(ctx, s.method, query, req.Cursor, req.Limit, req.Order == domain.OrderDescending)
	if resp != nil && resp.Error != nil {
		return s.rpcError(req, resp.Error)
	}
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", s.method, err)
	}
	if resp == nil || resp.Result == nil {
		return nil, fmt.Errorf("call %s: %w", s.method, errNoResult)
	}

	var page domain.EventPage
	if err := resp.GetObject(&page); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", s.method, err)
	}
	return &page, nil
}

// rpcError maps a node error. Invalid params on a continuation request means the cursor the
// node just returned was the last event, which is reported as an empty terminal page. On a
// start cursor the same code means the cursor is unknown and stays an error.
func (s *EventSource) rpcError(req domain.EventRequest, rpcErr *jsonrpc.RPCError) (*domain.EventPage, error) {
	if rpcErr.Code == codeInvalidParams && req.Cursor != nil && req.Continuation {
		s.logger.Info("node reports no more events", "cursor", req.Cursor, "message", rpcErr.Message)
		return &domain.EventPage{}, nil
	}
	return nil, &domain.QueryError{Code: rpcErr.Code, Message: rpcErr.Message}
}
