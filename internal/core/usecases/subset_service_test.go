package usecases_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/pipeline"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
)

// globalRaster spans every longitude, 42°N to 48°N.
func globalRaster(ctx context.Context, path string) (*domain.RasterInfo, error) {
	return &domain.RasterInfo{
		Path:         path,
		Width:        720,
		Height:       12,
		GeoTransform: domain.GeoTransform{-180, 0.5, 0, 48, 0, -0.5},
	}, nil
}

func smallRaster(ctx context.Context, path string) (*domain.RasterInfo, error) {
	return &domain.RasterInfo{
		Path:         path,
		Width:        20,
		Height:       20,
		GeoTransform: domain.GeoTransform{10, 0.5, 0, 45, 0, -0.25},
	}, nil
}

func TestSubsetService_NoBoxPassesThrough(t *testing.T) {
	runner := &mockRunner{}
	inspector := &mockInspector{}
	svc := usecases.NewSubsetService(runner, inspector, nil, 2)

	in := domain.Artifact{Path: "/tmp/in.tif", LayerID: "G1__red"}
	out, fps, err := svc.Subset(context.Background(), in, nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("expected artifact unchanged, got %+v", out)
	}
	if fps != nil || len(runner.calls) != 0 || inspector.inspectCalls() != 0 {
		t.Error("expected no work for a request without a box")
	}
}

func TestSubsetService_SingleBox(t *testing.T) {
	dir := t.TempDir()
	runner := &mockRunner{}
	svc := usecases.NewSubsetService(runner, &mockInspector{inspectFn: smallRaster}, nil, 2)

	box := geospatial.BBox(0, 15, 25, 49)
	out, fps, err := svc.Subset(context.Background(), domain.Artifact{Path: "/tmp/in.tif", LayerID: "G1__red"}, &box, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(dir, "G1__red__0_subsetted.tif")
	if out.Path != want {
		t.Errorf("expected %s, got %s", want, out.Path)
	}
	if out.Stage != pipeline.StageSubset {
		t.Errorf("expected stage subset, got %s", out.Stage)
	}
	if len(fps) != 1 || geospatial.Corners(fps[0]) != [4]float64{10, 40, 20, 45} {
		t.Errorf("unexpected footprints %v", fps)
	}

	calls := runner.callsTo("gdal_translate")
	if len(calls) != 1 {
		t.Fatalf("expected 1 extraction, got %d", len(calls))
	}
	wantArgs := []string{"-of", "GTiff", "-projwin", "10", "45", "20", "40", "/tmp/in.tif", want}
	if !reflect.DeepEqual(calls[0], wantArgs) {
		t.Errorf("expected args %v, got %v", wantArgs, calls[0])
	}
	if len(runner.callsTo("gdal_merge.py")) != 0 {
		t.Error("single box should not be mosaicked")
	}
}

func TestSubsetService_AntemeridianMosaic(t *testing.T) {
	dir := t.TempDir()
	runner := &mockRunner{}
	svc := usecases.NewSubsetService(runner, &mockInspector{inspectFn: globalRaster}, nil, 2)

	box := geospatial.BBox(175, 40, -175, 50)
	out, fps, err := svc.Subset(context.Background(), domain.Artifact{Path: "/tmp/in.tif", LayerID: "G1/sub__red"}, &box, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fps) != 2 {
		t.Fatalf("expected 2 footprints, got %d", len(fps))
	}
	if geospatial.Corners(fps[0]) != [4]float64{175, 42, 180, 48} || geospatial.Corners(fps[1]) != [4]float64{-180, 42, -175, 48} {
		t.Errorf("unexpected footprints %v", fps)
	}

	extractions := runner.callsTo("gdal_translate")
	if len(extractions) != 2 {
		t.Fatalf("expected 2 extractions, got %d", len(extractions))
	}
	var windows [][]string
	for _, args := range extractions {
		windows = append(windows, args[3:7])
	}
	for _, w := range [][]string{{"175", "48", "180", "42"}, {"-180", "48", "-175", "42"}} {
		if !slices.ContainsFunc(windows, func(got []string) bool { return slices.Equal(got, w) }) {
			t.Errorf("missing extraction window %v in %v", w, windows)
		}
	}

	merges := runner.callsTo("gdal_merge.py")
	if len(merges) != 1 {
		t.Fatalf("expected 1 mosaic, got %d", len(merges))
	}
	want := filepath.Join(dir, "G1_sub__red__subsetted.tif")
	wantArgs := []string{"-o", want, "-of", "GTiff",
		filepath.Join(dir, "G1_sub__red__0_subsetted.tif"),
		filepath.Join(dir, "G1_sub__red__1_subsetted.tif"),
	}
	if !reflect.DeepEqual(merges[0], wantArgs) {
		t.Errorf("expected mosaic args %v, got %v", wantArgs, merges[0])
	}
	if out.Path != want {
		t.Errorf("expected %s, got %s", want, out.Path)
	}
}

func TestSubsetService_NoOverlapIsFatal(t *testing.T) {
	runner := &mockRunner{}
	svc := usecases.NewSubsetService(runner, &mockInspector{inspectFn: smallRaster}, nil, 2)

	box := geospatial.BBox(100, 0, 110, 10)
	_, _, err := svc.Subset(context.Background(), domain.Artifact{Path: "/tmp/in.tif"}, &box, t.TempDir())
	if !errors.Is(err, pipeline.ErrNoOverlap) {
		t.Fatalf("expected ErrNoOverlap, got %v", err)
	}
	if !pipeline.IsFatal(err) {
		t.Error("expected fatal error")
	}
	if len(runner.calls) != 0 {
		t.Error("no extraction expected")
	}
}

func TestSubsetService_ExtractionFailureIsRecoverable(t *testing.T) {
	runner := &mockRunner{
		runFn: func(ctx context.Context, name string, args ...string) ([]string, error) {
			return nil, errors.New("gdal_translate: exit status 1")
		},
	}
	svc := usecases.NewSubsetService(runner, &mockInspector{inspectFn: smallRaster}, nil, 2)

	box := geospatial.BBox(0, 15, 25, 49)
	_, _, err := svc.Subset(context.Background(), domain.Artifact{Path: "/tmp/in.tif"}, &box, t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if pipeline.IsFatal(err) {
		t.Error("tool failures should be recoverable")
	}
	if pipeline.StageOf(err) != pipeline.StageSubset {
		t.Errorf("expected subset stage, got %q", pipeline.StageOf(err))
	}
}

func TestSubsetService_BoundsCached(t *testing.T) {
	cache := newMockCache()
	inspector := &mockInspector{inspectFn: globalRaster}
	svc := usecases.NewSubsetService(&mockRunner{}, inspector, cache, 2)

	first, err := svc.Bounds(context.Background(), "/data/a.tif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Bounds(context.Background(), "/data/a.tif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inspector.inspectCalls() != 1 {
		t.Errorf("expected 1 inspect call, got %d", inspector.inspectCalls())
	}
	if first != second {
		t.Errorf("cached bounds differ: %+v vs %+v", first, second)
	}
	if _, ok := cache.data["bounds:/data/a.tif"]; !ok {
		t.Error("expected bounds cached under bounds:<path>")
	}
	if first.X != (geospatial.Range{Low: -180, High: 180}) {
		t.Errorf("expected global longitude range, got %+v", first.X)
	}
}
