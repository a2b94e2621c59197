package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/ledger-archiver/internal/usecase"
)

func TestStatusServer_ServesFinalStateWhileLingering(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats := staticStats{stats: usecase.RunStats{State: usecase.StateFailed, Error: "boom"}}
	srv := NewStatusServer("127.0.0.1:0", NewStatusRouter(stats, prometheus.NewRegistry(), logger), logger)

	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start status server: %v", err)
	}
	url := "http://" + srv.Addr() + "/status"

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- srv.Stop(ctx, time.Minute) }()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("expected status to be served while lingering, got %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for a failed run, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cancelling the context did not end the linger")
	}

	if resp, err := http.Get(url); err == nil {
		resp.Body.Close()
		t.Error("expected requests to fail after shutdown")
	}
}

func TestStatusServer_StopWithoutLinger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewStatusServer("127.0.0.1:0", http.NotFoundHandler(), logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start status server: %v", err)
	}

	start := time.Now()
	if err := srv.Stop(context.Background(), 0); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("expected immediate shutdown, took %v", d)
	}
}
