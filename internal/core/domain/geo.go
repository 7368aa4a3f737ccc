package domain

import (
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
)

// GeoTransform is the six-coefficient affine transform GDAL reports for a
// raster: origin x, pixel width, row skew, origin y, column skew, pixel height.
type GeoTransform [6]float64

// RasterInfo is the subset of gdalinfo output the pipeline relies on.
type RasterInfo struct {
	Path         string       `json:"path"`
	Driver       string       `json:"driver,omitempty"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	GeoTransform GeoTransform `json:"geo_transform"`
	Bands        []string     `json:"bands,omitempty"`
	Subdatasets  []string     `json:"subdatasets,omitempty"`
}

// Bounds returns the geographic extent of the raster.
func (r RasterInfo) Bounds() geospatial.DatasetBounds {
	return BoundsFromGeoTransform(r.GeoTransform, r.Width, r.Height)
}

// BoundsFromGeoTransform computes dataset bounds from a geotransform and raster size.
//
// Ranges are ordered low to high, swapping x when pixel width is negative and
// y when pixel height is negative (north-up images). Coordinates stay in the
// raster's own frame: the clipped boxes become gdal_translate windows, so a
// 0..360 grid keeps the range {0, 360}.
func BoundsFromGeoTransform(gt GeoTransform, width, height int) geospatial.DatasetBounds {
	w, h := float64(width), float64(height)

	x0 := gt[0]
	x1 := gt[0] + w*gt[1] + h*gt[2]
	if gt[1] < 0 {
		x0, x1 = x1, x0
	}

	y0 := gt[3]
	y1 := gt[3] + w*gt[4] + h*gt[5]
	if gt[5] < 0 {
		y0, y1 = y1, y0
	}

	return geospatial.DatasetBounds{
		X: geospatial.Range{Low: x0, High: x1},
		Y: geospatial.Range{Low: y0, High: y1},
	}
}
