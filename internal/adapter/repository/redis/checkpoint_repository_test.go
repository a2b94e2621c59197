package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/ledger-archiver/internal/domain"
)

// Requires a reachable Redis, e.g. TEST_REDIS_ADDR=redis://localhost:6379/0.
func setupTestRedis(t *testing.T) *CheckpointRepository {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	repo := NewCheckpointRepository(client, "test-"+uuid.NewString(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		client.Del(context.Background(), repo.key)
		client.Close()
	})
	return repo
}

func TestCheckpointRepository_Roundtrip(t *testing.T) {
	repo := setupTestRedis(t)
	ctx := context.Background()

	cursor, err := repo.Load(ctx)
	if err != nil || cursor != nil {
		t.Fatalf("expected empty checkpoint, got %v %v", cursor, err)
	}

	want := domain.EventID{TxDigest: "Cmocd2cZ5iAJ", EventSeq: 9}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	cursor, err = repo.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cursor == nil || *cursor != want {
		t.Errorf("expected %v, got %v", want, cursor)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	cursor, err = repo.Load(ctx)
	if err != nil || cursor != nil {
		t.Errorf("expected empty checkpoint after clear, got %v %v", cursor, err)
	}
}
