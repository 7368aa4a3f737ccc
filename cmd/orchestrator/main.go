package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/harmonyservices/gdalsubset/internal/adapters/nats"
	"github.com/harmonyservices/gdalsubset/internal/adapters/postgres"
	"github.com/harmonyservices/gdalsubset/internal/adapters/valkey"
	"github.com/harmonyservices/gdalsubset/internal/bootstrap"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
	"github.com/harmonyservices/gdalsubset/internal/pkg/config"
	"github.com/harmonyservices/gdalsubset/internal/pkg/logging"
	"github.com/harmonyservices/gdalsubset/internal/pkg/telemetry"
	"github.com/harmonyservices/gdalsubset/internal/workflows"
)

func main() {
	cfg, err := config.Load("gdalsubset-orchestrator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	if err := os.MkdirAll(cfg.Worker.WorkDir, 0o755); err != nil {
		log.Fatalf("work dir: %v", err)
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportStats(ctx, 15*time.Second)

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, job events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	jobs := usecases.NewJobService(postgres.NewJobRepo(db), publisher)
	svc, err := bootstrap.TransformService(cfg, cache, jobs)
	if err != nil {
		log.Fatalf("transform service: %v", err)
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	// One granule per process.
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 1,
	})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.GranuleWorkflow)
	w.RegisterActivity(&workflows.Activities{Processor: svc})

	slog.Info("orchestrator worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
