package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

// Checkpoint backends.
const (
	CheckpointNone     = "none"
	CheckpointFile     = "file"
	CheckpointRedis    = "redis"
	CheckpointPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	RPCEndpoint string        `env:"RPC_ENDPOINT" envDefault:"https://fullnode.devnet.sui.io"`
	RPCMethod   string        `env:"RPC_METHOD" envDefault:"sui_getEvents"`
	RPCTimeout  time.Duration `env:"RPC_TIMEOUT" envDefault:"0s"` // 0 waits forever

	EventQuery       string `env:"EVENT_QUERY"`        // raw JSON filter, "All" when empty
	ArchiveDate      string `env:"ARCHIVE_DATE"`       // 2023-03-07
	ArchiveStartTime string `env:"ARCHIVE_START_TIME"` // 2023-03-07T00:00:00Z
	ArchiveEndTime   string `env:"ARCHIVE_END_TIME"`   // 2023-03-07T10:00:00Z
	PageLimit        int    `env:"PAGE_LIMIT" envDefault:"0"`
	Order            string `env:"ORDER" envDefault:"ascending"`

	OutputFolder        string  `env:"OUTPUT_FOLDER" envDefault:"data"`
	StartCursorTxDigest string  `env:"START_CURSOR_TX_DIGEST"`
	StartCursorEventSeq string  `env:"START_CURSOR_EVENT_SEQ"`
	SkipTerminalPage    bool    `env:"SKIP_TERMINAL_PAGE" envDefault:"false"`
	RequestsPerSecond   float64 `env:"REQUESTS_PER_SECOND" envDefault:"0"`

	CheckpointBackend string `env:"CHECKPOINT_BACKEND" envDefault:"none"`
	CheckpointPath    string `env:"CHECKPOINT_PATH" envDefault:"data/.checkpoint.json"`
	CheckpointName    string `env:"CHECKPOINT_NAME" envDefault:"default"`
	RedisAddr         string `env:"REDIS_ADDR"`
	PostgresURL       string `env:"POSTGRES_URL"`

	StatusAddr   string        `env:"STATUS_ADDR"` // empty disables the status server
	StatusLinger time.Duration `env:"STATUS_LINGER" envDefault:"10s"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ArchiveParams are the query parameters derived from the raw settings.
type ArchiveParams struct {
	Query       json.RawMessage
	Order       domain.Order
	Limit       *int
	StartCursor *domain.EventID
}

// ArchiveParams parses the query, order, page limit and start cursor settings.
func (c *Config) ArchiveParams() (ArchiveParams, error) {
	query, err := c.Query()
	if err != nil {
		return ArchiveParams{}, err
	}
	start, err := c.StartCursor()
	if err != nil {
		return ArchiveParams{}, err
	}
	order, err := domain.ParseOrder(c.Order)
	if err != nil {
		return ArchiveParams{}, fmt.Errorf("ORDER: %w", err)
	}
	return ArchiveParams{Query: query, Order: order, Limit: c.Limit(), StartCursor: start}, nil
}

// Validate checks that derived values parse and that the checkpoint backend has what it needs.
func (c *Config) Validate() error {
	if _, err := c.ArchiveParams(); err != nil {
		return err
	}
	if c.PageLimit < 0 {
		return fmt.Errorf("PAGE_LIMIT must not be negative, got %d", c.PageLimit)
	}
	if c.StatusLinger < 0 {
		return fmt.Errorf("STATUS_LINGER must not be negative, got %v", c.StatusLinger)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("REQUESTS_PER_SECOND must not be negative, got %v", c.RequestsPerSecond)
	}

	switch c.CheckpointBackend {
	case CheckpointNone, CheckpointFile:
	case CheckpointRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis checkpoint backend")
		}
	case CheckpointPostgres:
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required for the postgres checkpoint backend")
		}
	default:
		return fmt.Errorf("unknown CHECKPOINT_BACKEND %q", c.CheckpointBackend)
	}
	return nil
}

// Query returns the event filter. ARCHIVE_DATE selects one UTC day, ARCHIVE_START_TIME and
// ARCHIVE_END_TIME select a time range, otherwise EVENT_QUERY is used verbatim.
func (c *Config) Query() (json.RawMessage, error) {
	switch {
	case c.ArchiveDate != "":
		start, err := time.Parse(time.DateOnly, c.ArchiveDate)
		if err != nil {
			return nil, fmt.Errorf("ARCHIVE_DATE: %w", err)
		}
		return domain.TimeRangeQuery(start, start.AddDate(0, 0, 1)), nil

	case c.ArchiveStartTime != "" || c.ArchiveEndTime != "":
		if c.ArchiveStartTime == "" || c.ArchiveEndTime == "" {
			return nil, errors.New("ARCHIVE_START_TIME and ARCHIVE_END_TIME must be set together")
		}
		start, err := time.Parse(time.RFC3339, c.ArchiveStartTime)
		if err != nil {
			return nil, fmt.Errorf("ARCHIVE_START_TIME: %w", err)
		}
		end, err := time.Parse(time.RFC3339, c.ArchiveEndTime)
		if err != nil {
			return nil, fmt.Errorf("ARCHIVE_END_TIME: %w", err)
		}
		if !end.After(start) {
			return nil, errors.New("ARCHIVE_END_TIME must be after ARCHIVE_START_TIME")
		}
		return domain.TimeRangeQuery(start, end), nil

	case c.EventQuery != "":
		if !json.Valid([]byte(c.EventQuery)) {
			return nil, fmt.Errorf("EVENT_QUERY is not valid JSON: %s", c.EventQuery)
		}
		return json.RawMessage(c.EventQuery), nil

	default:
		return domain.QueryAll, nil
	}
}

// Limit returns the page size, or nil when PAGE_LIMIT is 0.
func (c *Config) Limit() *int {
	if c.PageLimit <= 0 {
		return nil
	}
	l := c.PageLimit
	return &l
}

// StartCursor returns the manually supplied start cursor, or nil if none is configured.
func (c *Config) StartCursor() (*domain.EventID, error) {
	if c.StartCursorTxDigest == "" && c.StartCursorEventSeq == "" {
		return nil, nil
	}
	if c.StartCursorTxDigest == "" || c.StartCursorEventSeq == "" {
		return nil, errors.New("START_CURSOR_TX_DIGEST and START_CURSOR_EVENT_SEQ must be set together")
	}
	seq, err := strconv.ParseInt(c.StartCursorEventSeq, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse START_CURSOR_EVENT_SEQ: %w", err)
	}
	return &domain.EventID{TxDigest: c.StartCursorTxDigest, EventSeq: seq}, nil
}
