package usecases

import (
	"encoding/xml"
	"fmt"
	"os"
)

// GDAL persistent auxiliary metadata, read from <file>.aux.xml next to
// a raster. Descriptions recorded here are carried into any copy GDAL
// makes of the raster.
type pamDataset struct {
	XMLName xml.Name  `xml:"PAMDataset"`
	Bands   []pamBand `xml:"PAMRasterBand"`
}

type pamBand struct {
	Band        int    `xml:"band,attr"`
	Description string `xml:"Description"`
}

// writeBandDescriptions names the bands of path in order.
func writeBandDescriptions(path string, names []string) error {
	doc := pamDataset{Bands: make([]pamBand, len(names))}
	for i, n := range names {
		doc.Bands[i] = pamBand{Band: i + 1, Description: n}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode band descriptions: %w", err)
	}
	if err := os.WriteFile(path+".aux.xml", data, 0o644); err != nil {
		return fmt.Errorf("write band descriptions: %w", err)
	}
	return nil
}
