package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/ledger-archiver/internal/adapter/api"
	"github.com/V4T54L/ledger-archiver/internal/adapter/metrics"
	"github.com/V4T54L/ledger-archiver/internal/adapter/repository/csvfile"
	"github.com/V4T54L/ledger-archiver/internal/adapter/repository/file"
	"github.com/V4T54L/ledger-archiver/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/ledger-archiver/internal/adapter/repository/redis"
	"github.com/V4T54L/ledger-archiver/internal/adapter/rpc"
	"github.com/V4T54L/ledger-archiver/internal/domain"
	"github.com/V4T54L/ledger-archiver/internal/pkg/config"
	"github.com/V4T54L/ledger-archiver/internal/pkg/logger"
	"github.com/V4T54L/ledger-archiver/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewArchiveMetrics(reg)

	// --- Collaborators ---
	source := rpc.NewEventSource(cfg.RPCEndpoint, cfg.RPCMethod, cfg.RPCTimeout, log)

	writer, err := csvfile.NewBatchWriter(cfg.OutputFolder, log, m)
	if err != nil {
		log.Error("failed to initialize batch writer", "error", err)
		os.Exit(1)
	}

	checkpoints, closeCheckpoints, err := newCheckpointRepository(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize checkpoint repository", "backend", cfg.CheckpointBackend, "error", err)
		os.Exit(1)
	}
	defer closeCheckpoints()

	params, err := cfg.ArchiveParams()
	if err != nil {
		log.Error("invalid archive parameters", "error", err)
		closeCheckpoints()
		os.Exit(1)
	}

	archive := usecase.NewArchiveEventsUseCase(source, writer, checkpoints, m, log, usecase.ArchiveOptions{
		Query:             params.Query,
		Limit:             params.Limit,
		Order:             params.Order,
		StartCursor:       params.StartCursor,
		SkipTerminalPage:  cfg.SkipTerminalPage,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	// --- Status and Metrics Server ---
	var statusServer *api.StatusServer
	if cfg.StatusAddr != "" {
		statusServer = api.NewStatusServer(cfg.StatusAddr, api.NewStatusRouter(archive, reg, log), log)
		if err := statusServer.Start(); err != nil {
			log.Error("failed to start status server", "error", err)
			closeCheckpoints()
			os.Exit(1)
		}
	}

	log.Info("archiving events", "endpoint", cfg.RPCEndpoint, "method", cfg.RPCMethod, "query", string(params.Query), "folder", cfg.OutputFolder)
	runErr := archive.Run(ctx)

	if statusServer != nil {
		if err := statusServer.Stop(ctx, cfg.StatusLinger); err != nil {
			log.Error("status server shutdown failed", "error", err)
		}
	}

	if runErr != nil {
		closeCheckpoints()
		os.Exit(1)
	}
}

// newCheckpointRepository builds the configured checkpoint backend. The returned close
// function is safe to call more than once.
func newCheckpointRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.CheckpointRepository, func(), error) {
	noop := func() {}

	switch cfg.CheckpointBackend {
	case config.CheckpointFile:
		repo, err := file.NewCheckpointRepository(cfg.CheckpointPath, log)
		if err != nil {
			return nil, noop, err
		}
		return repo, noop, nil

	case config.CheckpointRedis:
		opts, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, err
		}
		log.Info("connected to redis")
		return redisrepo.NewCheckpointRepository(client, cfg.CheckpointName, log), sync.OnceFunc(func() { client.Close() }), nil

	case config.CheckpointPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, noop, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		log.Info("connected to postgres")
		repo := postgres.NewCheckpointRepository(db, cfg.CheckpointName, log)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return repo, sync.OnceFunc(func() { db.Close() }), nil

	default:
		return nil, noop, nil
	}
}
