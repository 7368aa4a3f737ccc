package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/pipeline"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
	"github.com/harmonyservices/gdalsubset/internal/pkg/metrics"
)

const boundsCacheTTL = 3600 // seconds

// SubsetService cuts a raster down to a request bounding box.
type SubsetService struct {
	runner      ports.CommandRunner
	inspector   ports.RasterInspector
	cache       ports.CacheService
	clipper     *ClipService
	maxParallel int
}

// NewSubsetService creates a new SubsetService. cache may be nil.
func NewSubsetService(runner ports.CommandRunner, inspector ports.RasterInspector, cache ports.CacheService, maxParallel int) *SubsetService {
	if maxParallel <= 0 {
		maxParallel = 2
	}
	return &SubsetService{
		runner:      runner,
		inspector:   inspector,
		cache:       cache,
		clipper:     NewClipService(),
		maxParallel: maxParallel,
	}
}

// Bounds returns the geographic extent of the raster at path.
func (s *SubsetService) Bounds(ctx context.Context, path string) (geospatial.DatasetBounds, error) {
	cacheKey := "bounds:" + path
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var b geospatial.DatasetBounds
			if err := json.Unmarshal(data, &b); err == nil {
				metrics.CacheHits.WithLabelValues("bounds").Inc()
				return b, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("bounds").Inc()
	}

	info, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		return geospatial.DatasetBounds{}, fmt.Errorf("inspect %s: %w", path, err)
	}
	b := info.Bounds()

	if s.cache != nil {
		if data, err := json.Marshal(b); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, boundsCacheTTL)
		}
	}
	return b, nil
}

// Subset extracts the parts of in that fall within box into dir.
//
// One extraction runs per clipped box; when the intersection straddles the
// antemeridian the two halves are mosaicked back into a single file. The
// returned footprints are the clipped boxes. A nil box passes in through.
func (s *SubsetService) Subset(ctx context.Context, in domain.Artifact, box *orb.Bound, dir string) (domain.Artifact, []orb.Bound, error) {
	if box == nil {
		return in, nil, nil
	}

	bounds, err := s.Bounds(ctx, in.Path)
	if err != nil {
		return in, nil, pipeline.Recoverable(pipeline.StageSubset, err)
	}

	boxes := s.clipper.Clip(bounds, *box)
	if len(boxes) == 0 {
		return in, nil, pipeline.Fatal(pipeline.StageSubset,
			fmt.Errorf("%w: box %v, dataset %+v", pipeline.ErrNoOverlap, geospatial.Corners(*box), bounds))
	}

	layer := fileSafe(in.LayerID)
	parts := make([]string, len(boxes))
	for i := range boxes {
		parts[i] = filepath.Join(dir, layer+"__"+strconv.Itoa(i)+"_subsetted.tif")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, b := range boxes {
		g.Go(func() error {
			_, err := s.runner.Run(gctx, "gdal_translate", projwinArgs(b, in.Path, parts[i])...)
			if err != nil {
				return fmt.Errorf("extract box %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return in, nil, pipeline.Recoverable(pipeline.StageSubset, err)
	}

	if len(parts) == 1 {
		return in.With(pipeline.StageSubset, parts[0]), boxes, nil
	}

	dst := filepath.Join(dir, layer+"__subsetted.tif")
	args := append([]string{"-o", dst, "-of", "GTiff"}, parts...)
	if _, err := s.runner.Run(ctx, "gdal_merge.py", args...); err != nil {
		return in, nil, pipeline.Recoverable(pipeline.StageSubset, fmt.Errorf("mosaic %d parts: %w", len(parts), err))
	}

	slog.DebugContext(ctx, "subset straddles antemeridian", "layer", in.LayerID, "parts", len(parts))
	return in.With(pipeline.StageSubset, dst), boxes, nil
}

// projwinArgs builds gdal_translate arguments extracting b from src.
// -projwin takes upper-left then lower-right corners.
func projwinArgs(b orb.Bound, src, dst string) []string {
	return []string{
		"-of", "GTiff",
		"-projwin",
		formatCoord(b.Min.Lon()), formatCoord(b.Max.Lat()),
		formatCoord(b.Max.Lon()), formatCoord(b.Min.Lat()),
		src, dst,
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
