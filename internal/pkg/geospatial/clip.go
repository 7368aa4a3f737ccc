package geospatial

import "github.com/paulmach/orb"

// DatasetBounds is the spatial extent of a raster dataset.
// X is longitude and may wrap; Y is latitude.
type DatasetBounds struct {
	X Range `json:"x"`
	Y Range `json:"y"`
}

// BBox builds a box from lower-left / upper-right corner coordinates.
func BBox(minLon, minLat, maxLon, maxLat float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}
}

// Corners returns b as (min_lon, min_lat, max_lon, max_lat).
func Corners(b orb.Bound) [4]float64 {
	return [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

// Clip restricts box to the portion that lies within bounds.
//
// The result is empty when nothing overlaps. It holds two boxes meeting
// at the antemeridian when the intersection straddles it. Every returned
// box has Min <= Max on both axes. A box whose Min.Lon is greater than
// its Max.Lon is read as crossing the antemeridian.
func Clip(bounds DatasetBounds, box orb.Bound) []orb.Bound {
	lons := Intersect(bounds.X, Range{box.Min.Lon(), box.Max.Lon()})
	lats := Intersect(bounds.Y, Range{box.Min.Lat(), box.Max.Lat()})
	if len(lons) == 0 || len(lats) == 0 {
		return nil
	}

	out := make([]orb.Bound, 0, len(lons)*len(lats))
	for _, x := range lons {
		for _, y := range lats {
			out = append(out, BBox(x.Low, y.Low, x.High, y.High))
		}
	}
	return out
}
