package geospatial

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ParseBox parses "west,south,east,north" and validates it with BoxFromSlice.
func ParseBox(s string) (orb.Bound, error) {
	if strings.TrimSpace(s) == "" {
		return orb.Bound{}, errors.New("required")
	}
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid number %q", p)
		}
		vals = append(vals, v)
	}
	return BoxFromSlice(vals)
}

// BoxFromSlice validates [west, south, east, north]. West may exceed east
// for boxes crossing the antemeridian.
func BoxFromSlice(v []float64) (orb.Bound, error) {
	if len(v) != 4 {
		return orb.Bound{}, fmt.Errorf("expected 4 numbers, got %d", len(v))
	}
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, errors.New("coordinates must be finite")
		}
	}
	west, south, east, north := v[0], v[1], v[2], v[3]
	if south > north {
		return orb.Bound{}, errors.New("south must not exceed north")
	}
	if south < -90 || north > 90 {
		return orb.Bound{}, errors.New("latitude must be within [-90, 90]")
	}
	if west < -180 || west > 180 || east < -180 || east > 180 {
		return orb.Bound{}, errors.New("longitude must be within [-180, 180]")
	}
	return BBox(west, south, east, north), nil
}

// BoundsOf returns the dataset extent described by b.
func BoundsOf(b orb.Bound) DatasetBounds {
	return DatasetBounds{
		X: Range{Low: b.Min.Lon(), High: b.Max.Lon()},
		Y: Range{Low: b.Min.Lat(), High: b.Max.Lat()},
	}
}
