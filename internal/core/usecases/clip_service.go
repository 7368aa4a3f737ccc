package usecases

import (
	"strconv"

	"github.com/paulmach/orb"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
	"github.com/harmonyservices/gdalsubset/internal/pkg/metrics"
)

// ClipService exposes bounding-box clipping to the API surfaces.
type ClipService struct{}

// NewClipService creates a new ClipService.
func NewClipService() *ClipService {
	return &ClipService{}
}

// Clip restricts box to bounds.
func (s *ClipService) Clip(bounds geospatial.DatasetBounds, box orb.Bound) []orb.Bound {
	out := geospatial.Clip(bounds, box)
	metrics.ClipBoxes.WithLabelValues(strconv.Itoa(len(out))).Inc()
	return out
}

// ClipRaster clips box to the extent described by a geotransform.
func (s *ClipService) ClipRaster(gt domain.GeoTransform, width, height int, box orb.Bound) (geospatial.DatasetBounds, []orb.Bound) {
	bounds := domain.BoundsFromGeoTransform(gt, width, height)
	return bounds, s.Clip(bounds, box)
}
