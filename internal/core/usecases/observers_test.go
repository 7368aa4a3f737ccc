package usecases_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/pipeline"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
)

func TestTracingObserverSpanPerStage(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	ok := pipeline.Func(pipeline.StageConvert, func(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
		return in.With(pipeline.StageConvert, "/work/a.tif"), nil
	})
	bad := pipeline.Func(pipeline.StageSubset, func(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
		return in, pipeline.Fatal(pipeline.StageSubset, pipeline.ErrNoOverlap)
	})

	p := pipeline.New(ok, bad).Observe(usecases.NewTracingObserver(tp))
	_, err := p.Run(context.Background(), domain.Artifact{Path: "/work/in.nc", LayerID: "G1__sst"})
	if !errors.Is(err, pipeline.ErrNoOverlap) {
		t.Fatalf("err = %v, want ErrNoOverlap", err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name() != "stage.convert" || spans[1].Name() != "stage.subset" {
		t.Errorf("span names = %q, %q", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("convert span should not be an error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("subset span status = %v, want Error", spans[1].Status().Code)
	}

	var fatal bool
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "gdalsubset.fatal" {
			fatal = kv.Value.AsBool()
		}
	}
	if !fatal {
		t.Error("subset span should be marked fatal")
	}
}
