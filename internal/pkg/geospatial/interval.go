package geospatial

// Antemeridian is the longitude at which wrapping ranges are split.
const Antemeridian = 180.0

// Range is a span along one geographic axis in degrees.
// For longitude, Low > High encodes a range that wraps through the
// antemeridian: {170, -170} is the 20° span from 170°E to 170°W.
// Latitude ranges never wrap.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Wraps reports whether r crosses the antemeridian.
func (r Range) Wraps() bool {
	return r.High < r.Low
}

// expand splits a wrapping range into its eastern and western halves.
func expand(r Range) []Range {
	if r.Wraps() {
		return []Range{{r.Low, Antemeridian}, {-Antemeridian, r.High}}
	}
	return []Range{r}
}

// Overlap returns the part of two non-wrapping ranges they have in common.
// Endpoints are inclusive, so ranges that only touch overlap in a
// zero-width range.
func Overlap(a, b Range) (Range, bool) {
	if within(a.Low, b) || within(a.High, b) || within(b.Low, a) || within(b.High, a) {
		return Range{Low: max(a.Low, b.Low), High: min(a.High, b.High)}, true
	}
	return Range{}, false
}

func within(v float64, r Range) bool {
	return r.Low <= v && v <= r.High
}

// Intersect returns the ranges where x and y overlap, handling
// wraparound at the antemeridian. When at most one side wraps the
// result holds at most two ranges, and non-wrapping inputs give at most
// one. Results are ordered by x's sub-ranges first, then y's.
func Intersect(x, y Range) []Range {
	var out []Range
	for _, a := range expand(x) {
		for _, b := range expand(y) {
			if o, ok := Overlap(a, b); ok {
				out = append(out, o)
			}
		}
	}
	return out
}
