package gdal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

const netcdfInfo = `{
  "description": "/data/global.nc",
  "driverShortName": "netCDF",
  "size": [512, 512],
  "metadata": {
    "": {"NC_GLOBAL#title": "test"},
    "SUBDATASETS": {
      "SUBDATASET_2_NAME": "NETCDF:\"/data/global.nc\":blue_var",
      "SUBDATASET_2_DESC": "[1x180x360] blue_var (8-bit integer)",
      "SUBDATASET_1_NAME": "NETCDF:\"/data/global.nc\":red_var",
      "SUBDATASET_1_DESC": "[1x180x360] red_var (8-bit integer)",
      "SUBDATASET_10_NAME": "NETCDF:\"/data/global.nc\":alpha_var"
    },
    "xml:XMP": ["<x:xmpmeta/>"]
  }
}`

const geotiffInfo = `{
  "description": "/data/bands.tif",
  "driverShortName": "GTiff",
  "size": [360, 180],
  "geoTransform": [-180.0, 1.0, 0.0, 90.0, 0.0, -1.0],
  "bands": [
    {"band": 1, "description": "red_var", "type": "Byte"},
    {"band": 2, "description": "green_var", "type": "Byte"}
  ]
}`

type stubRunner struct {
	out  string
	err  error
	args []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]string, error) {
	s.args = append([]string{name}, args...)
	if s.err != nil {
		return nil, s.err
	}
	return []string{s.out}, nil
}

func TestParseInfoGeoTIFF(t *testing.T) {
	info, err := ParseInfo("/data/bands.tif", []byte(geotiffInfo))
	require.NoError(t, err)

	assert.Equal(t, "GTiff", info.Driver)
	assert.Equal(t, 360, info.Width)
	assert.Equal(t, 180, info.Height)
	assert.Equal(t, domain.GeoTransform{-180, 1, 0, 90, 0, -1}, info.GeoTransform)
	assert.Equal(t, []string{"red_var", "green_var"}, info.Bands)
	assert.Empty(t, info.Subdatasets)

	b := info.Bounds()
	assert.Equal(t, -180.0, b.X.Low)
	assert.Equal(t, 180.0, b.X.High)
	assert.Equal(t, -90.0, b.Y.Low)
	assert.Equal(t, 90.0, b.Y.High)
}

func TestParseInfoSubdatasetsOrdered(t *testing.T) {
	info, err := ParseInfo("/data/global.nc", []byte(netcdfInfo))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`NETCDF:"/data/global.nc":red_var`,
		`NETCDF:"/data/global.nc":blue_var`,
		`NETCDF:"/data/global.nc":alpha_var`,
	}, info.Subdatasets)
}

func TestParseInfoInvalid(t *testing.T) {
	_, err := ParseInfo("x", []byte("ERROR 4: x: No such file or directory"))
	require.Error(t, err)
}

func TestInspectorLayerFormat(t *testing.T) {
	runner := &stubRunner{out: netcdfInfo}
	insp := NewInspector(runner)

	format, err := insp.LayerFormat(context.Background(), "/data/global.nc", "blue_var")
	require.NoError(t, err)
	assert.Equal(t, `NETCDF:"{}":blue_var`, format)
	assert.Equal(t, []string{"gdalinfo", "-json", "/data/global.nc"}, runner.args)

	_, err = insp.LayerFormat(context.Background(), "/data/global.nc", "missing_var")
	require.ErrorContains(t, err, "invalid layer: missing_var")
}

func TestInspectorPropagatesRunnerError(t *testing.T) {
	insp := NewInspector(&stubRunner{err: errors.New("gdalinfo: exit status 1")})
	_, err := insp.Inspect(context.Background(), "/nope.tif")
	require.Error(t, err)
}
