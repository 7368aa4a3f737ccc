package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	natsadapter "github.com/harmonyservices/gdalsubset/internal/adapters/nats"
	"github.com/harmonyservices/gdalsubset/internal/adapters/postgres"
	"github.com/harmonyservices/gdalsubset/internal/adapters/valkey"
	"github.com/harmonyservices/gdalsubset/internal/bootstrap"
	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
	"github.com/harmonyservices/gdalsubset/internal/pkg/config"
	"github.com/harmonyservices/gdalsubset/internal/pkg/logging"
	"github.com/harmonyservices/gdalsubset/internal/pkg/telemetry"
	"github.com/harmonyservices/gdalsubset/internal/workflows"
)

func main() {
	cfg, err := config.Load("gdalsubset-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.AckWait)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	var handler func(ctx context.Context, job *domain.Job) error
	switch cfg.Worker.Engine {
	case "temporal":
		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			log.Fatalf("temporal client: %v", err)
		}
		defer c.Close()
		handler = startWorkflow(c, cfg.Temporal.TaskQueue)

	default:
		svc, closeFn, err := inlineService(ctx, cfg)
		if err != nil {
			log.Fatalf("transform service: %v", err)
		}
		defer closeFn()
		handler = runInline(svc)
	}

	if err := sub.SubscribeJobs(ctx, handler); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("worker started", "engine", cfg.Worker.Engine, "work_dir", cfg.Worker.WorkDir)

	<-ctx.Done()
	slog.Info("worker stopping")
}

// inlineService builds a TransformService that records job progress in
// Postgres and publishes job events on NATS.
func inlineService(ctx context.Context, cfg *config.Config) (*usecases.TransformService, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	closers = append(closers, db.Close)
	go db.ReportStats(ctx, 15*time.Second)

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable, bounds will not be cached", "error", err)
	} else {
		closers = append(closers, c.Close)
		cache = c
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats publisher unavailable, job events disabled", "error", err)
	} else {
		closers = append(closers, pub.Close)
		publisher = pub
	}

	jobs := usecases.NewJobService(postgres.NewJobRepo(db), publisher)
	svc, err := bootstrap.TransformService(cfg, cache, jobs)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}

// runInline processes a job in this process. Failures are reported to the
// requester by Process, so the message is always acknowledged.
func runInline(svc *usecases.TransformService) func(ctx context.Context, job *domain.Job) error {
	return func(ctx context.Context, job *domain.Job) error {
		ctx = logging.With(ctx, "job_id", job.ID, "request_id", job.RequestID)
		_, _ = svc.Process(ctx, job)
		return nil
	}
}

// startWorkflow hands a job to Temporal. Redelivered jobs map to the same
// workflow ID and attach to the existing run.
func startWorkflow(c client.Client, taskQueue string) func(ctx context.Context, job *domain.Job) error {
	return func(ctx context.Context, job *domain.Job) error {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflows.WorkflowID(job.ID),
			TaskQueue: taskQueue,
		}, workflows.GranuleWorkflow, *job)
		if err != nil {
			return fmt.Errorf("start workflow: %w", err)
		}
		slog.InfoContext(ctx, "workflow started", "job_id", job.ID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
		return nil
	}
}
