package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
)

func newClipCmd() *cobra.Command {
	var (
		bbox    string
		dataset string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Clip a bounding box to a dataset extent",
		Long: "Clip --bbox to --dataset, both given as west,south,east,north. " +
			"A box with west > east crosses the antemeridian. The clipped boxes " +
			"are printed as JSON arrays, or as a GeoJSON FeatureCollection with " +
			"--format geojson.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := geospatial.ParseBox(bbox)
			if err != nil {
				return fmt.Errorf("--bbox: %w", err)
			}
			extent, err := geospatial.ParseBox(dataset)
			if err != nil {
				return fmt.Errorf("--dataset: %w", err)
			}

			boxes := geospatial.Clip(geospatial.BoundsOf(extent), box)

			enc := json.NewEncoder(cmd.OutOrStdout())
			switch format {
			case "geojson":
				return enc.Encode(domain.BoxCollection(boxes))
			case "", "json":
				corners := make([][4]float64, 0, len(boxes))
				for _, b := range boxes {
					corners = append(corners, geospatial.Corners(b))
				}
				return enc.Encode(corners)
			default:
				return fmt.Errorf("unknown --format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&bbox, "bbox", "", "requested box as west,south,east,north")
	cmd.Flags().StringVar(&dataset, "dataset", "-180,-90,180,90", "dataset extent as west,south,east,north")
	cmd.Flags().StringVar(&format, "format", "json", "json or geojson")
	_ = cmd.MarkFlagRequired("bbox")
	return cmd
}
