package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/paulmach/orb"

	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
)

// Message is a Harmony service operation.
type Message struct {
	Version         string   `json:"version,omitempty"`
	RequestID       string   `json:"requestId,omitempty"`
	Callback        string   `json:"callback,omitempty"`
	StagingLocation string   `json:"stagingLocation,omitempty"`
	User            string   `json:"user,omitempty"`
	IsSynchronous   bool     `json:"isSynchronous,omitempty"`
	Sources         []Source `json:"sources"`
	Format          Format   `json:"format"`
	Subset          Subset   `json:"subset"`
}

// Source is one collection in a request.
type Source struct {
	Collection string     `json:"collection"`
	Variables  []Variable `json:"variables,omitempty"`
	Granules   []Granule  `json:"granules"`
}

// Variable names a layer of a granule.
type Variable struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Granule is a single input file.
type Granule struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Format describes the requested output.
type Format struct {
	CRS    string `json:"crs,omitempty"`
	SRS    *SRS   `json:"srs,omitempty"`
	MIME   string `json:"mime,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// SRS carries alternate encodings of the target spatial reference.
type SRS struct {
	Proj4 string `json:"proj4,omitempty"`
	WKT   string `json:"wkt,omitempty"`
	EPSG  string `json:"epsg,omitempty"`
}

// Subset carries the spatial constraint of a request.
type Subset struct {
	BBox []float64 `json:"bbox,omitempty"` // west, south, east, north
}

// TargetSRS returns the projection argument for gdalwarp, or "" when
// no reprojection is requested.
func (f Format) TargetSRS() string {
	if f.SRS != nil && f.SRS.Proj4 != "" {
		return f.SRS.Proj4
	}
	return f.CRS
}

// Box returns the request bounding box, if any.
func (s Subset) Box() (orb.Bound, bool) {
	if len(s.BBox) != 4 {
		return orb.Bound{}, false
	}
	return geospatial.BBox(s.BBox[0], s.BBox[1], s.BBox[2], s.BBox[3]), true
}

// ParseMessage decodes and validates a raw operation.
func ParseMessage(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the message carries enough to run a job.
func (m *Message) Validate() error {
	var errs []error

	granules := 0
	for _, s := range m.Sources {
		granules += len(s.Granules)
		for _, g := range s.Granules {
			if g.URL == "" {
				errs = append(errs, fmt.Errorf("granule %q has no url", g.ID))
			}
		}
	}
	if granules == 0 {
		errs = append(errs, errors.New("message has no granules"))
	}

	if bbox := m.Subset.BBox; bbox != nil {
		switch {
		case len(bbox) != 4:
			errs = append(errs, fmt.Errorf("bbox needs 4 coordinates, got %d", len(bbox)))
		case bbox[1] > bbox[3]:
			errs = append(errs, fmt.Errorf("bbox south %v is above north %v", bbox[1], bbox[3]))
		case bbox[1] < -90 || bbox[3] > 90:
			errs = append(errs, errors.New("bbox latitude out of range"))
		}
	}

	if m.Callback != "" {
		if _, err := url.ParseRequestURI(m.Callback); err != nil {
			errs = append(errs, fmt.Errorf("invalid callback: %w", err))
		}
	}

	if m.Format.MIME != "" {
		if _, err := LookupMIME(m.Format.MIME); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// OutputName hashes the message's JSON re-encoding. Prefer OutputName on
// the submitted bytes when they are still at hand.
func (m *Message) OutputName() string {
	raw, err := json.Marshal(m)
	if err != nil {
		return OutputName(nil)
	}
	return OutputName(raw)
}

// OutputName derives a stable result file name from the raw operation.
func OutputName(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
