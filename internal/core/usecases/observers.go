package usecases

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/pipeline"
	"github.com/harmonyservices/gdalsubset/internal/pkg/metrics"
)

// stageProgress is the job progress reported when a stage starts.
var stageProgress = map[string]int{
	pipeline.StageDownload:  5,
	pipeline.StageInspect:   15,
	pipeline.StageConvert:   25,
	pipeline.StageSubset:    35,
	pipeline.StageReproject: 50,
	pipeline.StageResize:    60,
	pipeline.StageMerge:     70,
	pipeline.StageDescribe:  80,
	pipeline.StageReformat:  85,
	pipeline.StageStage:     95,
}

// LogObserver logs every stage run.
type LogObserver struct{}

func (LogObserver) StageStarted(ctx context.Context, stage string, in domain.Artifact) context.Context {
	slog.DebugContext(ctx, "stage started", "stage", stage, "layer", in.LayerID, "path", in.Path)
	return ctx
}

func (LogObserver) StageFinished(ctx context.Context, stage string, out domain.Artifact, elapsed time.Duration, err error) {
	if err != nil {
		slog.WarnContext(ctx, "stage failed", "stage", stage, "layer", out.LayerID, "elapsed", elapsed, "error", err)
		return
	}
	slog.InfoContext(ctx, "stage finished", "stage", stage, "layer", out.LayerID, "path", out.Path, "elapsed", elapsed)
}

// MetricsObserver records stage durations and failures.
type MetricsObserver struct{}

func (MetricsObserver) StageStarted(ctx context.Context, stage string, in domain.Artifact) context.Context {
	return ctx
}

func (MetricsObserver) StageFinished(ctx context.Context, stage string, out domain.Artifact, elapsed time.Duration, err error) {
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		kind := pipeline.KindRecoverable
		if pipeline.IsFatal(err) {
			kind = pipeline.KindFatal
		}
		metrics.StageErrors.WithLabelValues(stage, kind.String()).Inc()
	}
}

// TracingObserver opens a span per stage run.
type TracingObserver struct {
	tracer trace.Tracer
}

// NewTracingObserver creates a TracingObserver. A nil tp uses the global
// provider.
func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingObserver{tracer: tp.Tracer("github.com/harmonyservices/gdalsubset/pipeline")}
}

func (o *TracingObserver) StageStarted(ctx context.Context, stage string, in domain.Artifact) context.Context {
	ctx, _ = o.tracer.Start(ctx, "stage."+stage, trace.WithAttributes(
		attribute.String("gdalsubset.stage", stage),
		attribute.String("gdalsubset.layer", in.LayerID),
	))
	return ctx
}

func (o *TracingObserver) StageFinished(ctx context.Context, stage string, out domain.Artifact, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("gdalsubset.fatal", pipeline.IsFatal(err)))
	} else {
		span.SetAttributes(attribute.String("gdalsubset.output", out.Path))
	}
	span.End()
}

// progressObserver moves a job to running as stages start.
type progressObserver struct {
	jobs  *JobService
	jobID string
}

func (o *progressObserver) StageStarted(ctx context.Context, stage string, in domain.Artifact) context.Context {
	if err := o.jobs.MarkRunning(ctx, o.jobID, stage, stageProgress[stage]); err != nil {
		slog.WarnContext(ctx, "record job progress failed", "job_id", o.jobID, "stage", stage, "error", err)
	}
	return ctx
}

func (o *progressObserver) StageFinished(ctx context.Context, stage string, out domain.Artifact, elapsed time.Duration, err error) {
}
