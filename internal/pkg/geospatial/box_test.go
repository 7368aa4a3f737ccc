package geospatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBox(t *testing.T) {
	b, err := ParseBox(" 170, -10 ,-170,10")
	require.NoError(t, err)
	assert.Equal(t, [4]float64{170, -10, -170, 10}, Corners(b))
}

func TestParseBoxErrors(t *testing.T) {
	cases := map[string]string{
		"":            "required",
		"1,2,3":       "expected 4 numbers",
		"a,2,3,4":     `invalid number "a"`,
		"0,10,5,5":    "south must not exceed north",
		"0,-91,5,5":   "latitude",
		"-181,0,5,5":  "longitude",
		"0,0,180.5,5": "longitude",
	}
	for in, want := range cases {
		_, err := ParseBox(in)
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), want, in)
	}
}

func TestBoxFromSliceRejectsNonFinite(t *testing.T) {
	_, err := BoxFromSlice([]float64{0, 0, math.Inf(1), 1})
	assert.ErrorContains(t, err, "finite")
	_, err = BoxFromSlice([]float64{math.NaN(), 0, 1, 1})
	assert.ErrorContains(t, err, "finite")
}

func TestBoundsOf(t *testing.T) {
	got := BoundsOf(BBox(170, -10, -170, 10))
	assert.Equal(t, DatasetBounds{X: Range{170, -170}, Y: Range{-10, 10}}, got)
	assert.True(t, got.X.Wraps())
}
