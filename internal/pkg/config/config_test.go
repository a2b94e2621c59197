package config

import (
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RPCEndpoint != "https://fullnode.devnet.sui.io" || cfg.RPCMethod != "sui_getEvents" {
		t.Errorf("unexpected rpc defaults: %s %s", cfg.RPCEndpoint, cfg.RPCMethod)
	}
	if cfg.OutputFolder != "data" {
		t.Errorf("expected output folder data, got %q", cfg.OutputFolder)
	}
	if cfg.RPCTimeout != 0 {
		t.Errorf("expected no rpc timeout, got %v", cfg.RPCTimeout)
	}
	if cfg.StatusLinger != 10*time.Second {
		t.Errorf("expected status linger 10s, got %v", cfg.StatusLinger)
	}
	if cfg.Limit() != nil {
		t.Errorf("expected nil limit, got %d", *cfg.Limit())
	}
	q, err := cfg.Query()
	if err != nil || string(q) != string(domain.QueryAll) {
		t.Errorf("expected query All, got %s %v", q, err)
	}
	if c, err := cfg.StartCursor(); c != nil || err != nil {
		t.Errorf("expected no start cursor, got %v %v", c, err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PAGE_LIMIT", "100")
	t.Setenv("ORDER", "descending")
	t.Setenv("RPC_TIMEOUT", "30s")
	t.Setenv("START_CURSOR_TX_DIGEST", "Cmocd2cZ5iAJ")
	t.Setenv("START_CURSOR_EVENT_SEQ", "9")
	t.Setenv("SKIP_TERMINAL_PAGE", "true")
	t.Setenv("REQUESTS_PER_SECOND", "2.5")
	t.Setenv("CHECKPOINT_BACKEND", "file")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if l := cfg.Limit(); l == nil || *l != 100 {
		t.Errorf("expected limit 100, got %v", l)
	}
	if cfg.Order != "descending" || cfg.RPCTimeout != 30*time.Second {
		t.Errorf("unexpected order/timeout: %s %v", cfg.Order, cfg.RPCTimeout)
	}
	c, err := cfg.StartCursor()
	if err != nil || c == nil || *c != (domain.EventID{TxDigest: "Cmocd2cZ5iAJ", EventSeq: 9}) {
		t.Errorf("unexpected start cursor %v %v", c, err)
	}
	if !cfg.SkipTerminalPage || cfg.RequestsPerSecond != 2.5 {
		t.Errorf("unexpected flags: %+v", cfg)
	}
}

func TestConfig_Query(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr string
	}{
		{
			name: "archive date",
			cfg:  Config{ArchiveDate: "2023-03-07"},
			want: `{"TimeRange":{"startTime":1678147200000,"endTime":1678233600000}}`,
		},
		{
			name: "time range",
			cfg:  Config{ArchiveStartTime: "2023-03-07T00:00:00Z", ArchiveEndTime: "2023-03-07T10:00:00Z"},
			want: `{"TimeRange":{"startTime":1678147200000,"endTime":1678183200000}}`,
		},
		{
			name: "raw query",
			cfg:  Config{EventQuery: `{"MoveModule":{"package":"0x2","module":"coin"}}`},
			want: `{"MoveModule":{"package":"0x2","module":"coin"}}`,
		},
		{name: "bad date", cfg: Config{ArchiveDate: "07/03/2023"}, wantErr: "ARCHIVE_DATE"},
		{name: "half range", cfg: Config{ArchiveStartTime: "2023-03-07T00:00:00Z"}, wantErr: "must be set together"},
		{
			name:    "inverted range",
			cfg:     Config{ArchiveStartTime: "2023-03-07T10:00:00Z", ArchiveEndTime: "2023-03-07T00:00:00Z"},
			wantErr: "must be after",
		},
		{name: "invalid json", cfg: Config{EventQuery: `{All`}, wantErr: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Query()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Order: "ascending", CheckpointBackend: CheckpointNone}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown order", mutate: func(c *Config) { c.Order = "random" }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.PageLimit = -1 }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: true},
		{name: "negative linger", mutate: func(c *Config) { c.StatusLinger = -time.Second }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.CheckpointBackend = CheckpointRedis }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.CheckpointBackend = CheckpointPostgres }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.CheckpointBackend = "etcd" }, wantErr: true},
		{name: "cursor digest only", mutate: func(c *Config) { c.StartCursorTxDigest = "abc" }, wantErr: true},
		{
			name: "cursor bad seq",
			mutate: func(c *Config) {
				c.StartCursorTxDigest = "abc"
				c.StartCursorEventSeq = "nine"
			},
			wantErr: true,
		},
		{
			name: "redis with addr",
			mutate: func(c *Config) {
				c.CheckpointBackend = CheckpointRedis
				c.RedisAddr = "redis://localhost:6379/0"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestConfig_ArchiveParams(t *testing.T) {
	t.Run("Derived Values", func(t *testing.T) {
		cfg := Config{
			ArchiveDate:         "2023-03-07",
			Order:               "descending",
			PageLimit:           50,
			StartCursorTxDigest: "abc",
			StartCursorEventSeq: "4",
		}
		p, err := cfg.ArchiveParams()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(string(p.Query), `"startTime":1678147200000`) {
			t.Errorf("unexpected query %s", p.Query)
		}
		if p.Order != domain.OrderDescending {
			t.Errorf("expected descending, got %q", p.Order)
		}
		if p.Limit == nil || *p.Limit != 50 {
			t.Errorf("expected limit 50, got %v", p.Limit)
		}
		if p.StartCursor == nil || *p.StartCursor != (domain.EventID{TxDigest: "abc", EventSeq: 4}) {
			t.Errorf("unexpected start cursor %v", p.StartCursor)
		}
	})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"Bad Query", Config{EventQuery: "{nope"}},
		{"Bad Order", Config{Order: "sideways"}},
		{"Bad Cursor", Config{StartCursorTxDigest: "abc", StartCursorEventSeq: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.ArchiveParams(); err == nil {
				t.Fatal("expected an error, got nil")
			}
		})
	}
}
