package gdal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
)

// Inspector reads raster metadata through `gdalinfo -json`.
type Inspector struct {
	runner ports.CommandRunner
}

// NewInspector creates an Inspector.
func NewInspector(runner ports.CommandRunner) *Inspector {
	return &Inspector{runner: runner}
}

type gdalInfo struct {
	Description  string                     `json:"description"`
	Driver       string                     `json:"driverShortName"`
	Size         []int                      `json:"size"`
	GeoTransform []float64                  `json:"geoTransform"`
	Metadata     map[string]json.RawMessage `json:"metadata"`
	Bands        []gdalBand                 `json:"bands"`
}

type gdalBand struct {
	Band        int    `json:"band"`
	Description string `json:"description"`
}

// Inspect returns size, geotransform, bands and subdatasets of path.
func (i *Inspector) Inspect(ctx context.Context, path string) (*domain.RasterInfo, error) {
	lines, err := i.runner.Run(ctx, "gdalinfo", "-json", path)
	if err != nil {
		return nil, err
	}
	return ParseInfo(path, []byte(strings.Join(lines, "\n")))
}

// LayerFormat returns the subdataset name for variable with path replaced by "{}".
func (i *Inspector) LayerFormat(ctx context.Context, path, variable string) (string, error) {
	info, err := i.Inspect(ctx, path)
	if err != nil {
		return "", err
	}
	for _, sd := range info.Subdatasets {
		if strings.HasSuffix(sd, ":"+variable) {
			return strings.ReplaceAll(sd, path, "{}"), nil
		}
	}
	return "", fmt.Errorf("invalid layer: %s", variable)
}

// ParseInfo decodes `gdalinfo -json` output.
func ParseInfo(path string, data []byte) (*domain.RasterInfo, error) {
	var gi gdalInfo
	if err := json.Unmarshal(data, &gi); err != nil {
		return nil, fmt.Errorf("decode gdalinfo: %w", err)
	}

	info := &domain.RasterInfo{Path: path, Driver: gi.Driver}
	if len(gi.Size) == 2 {
		info.Width, info.Height = gi.Size[0], gi.Size[1]
	}
	if len(gi.GeoTransform) == 6 {
		copy(info.GeoTransform[:], gi.GeoTransform)
	}
	for _, b := range gi.Bands {
		info.Bands = append(info.Bands, b.Description)
	}
	if raw, ok := gi.Metadata["SUBDATASETS"]; ok {
		var md map[string]string
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("decode subdatasets: %w", err)
		}
		info.Subdatasets = subdatasets(md)
	}
	return info, nil
}

// subdatasets returns the SUBDATASET_n_NAME values ordered by n.
func subdatasets(md map[string]string) []string {
	type entry struct {
		n    int
		name string
	}
	var entries []entry
	for k, v := range md {
		if !strings.HasPrefix(k, "SUBDATASET_") || !strings.HasSuffix(k, "_NAME") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(k, "SUBDATASET_"), "_NAME"))
		if err != nil {
			continue
		}
		entries = append(entries, entry{n, v})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].n < entries[b].n })

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
