package domain

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrJobNotFound is returned by job lookups that match no record.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobAccepted   JobStatus = "accepted"
	JobRunning    JobStatus = "running"
	JobSuccessful JobStatus = "successful"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobSuccessful || s == JobFailed
}

// Job tracks one submitted Harmony operation.
type Job struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Status    JobStatus `json:"status"`
	Message   *Message  `json:"message,omitempty"`
	Output    string    `json:"output_name,omitempty"` // hash of the submitted operation
	Progress  int       `json:"progress"`              // percent
	ResultURL string    `json:"result_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResultName returns the base name of the job's staged output: the hash of
// the operation as submitted, or of its re-encoding for jobs recorded
// without one.
func (j *Job) ResultName() string {
	if j.Output != "" {
		return j.Output
	}
	if j.Message == nil {
		return OutputName(nil)
	}
	return j.Message.OutputName()
}

// JobEvent is published on every stage transition of a job.
type JobEvent struct {
	JobID    string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Stage    string    `json:"stage,omitempty"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Artifact is the file handle threaded between pipeline stages.
type Artifact struct {
	Path    string   `json:"path"`
	LayerID string   `json:"layer_id,omitempty"`
	Stage   string   `json:"stage,omitempty"` // stage that produced Path
	Bands   []string `json:"bands,omitempty"`
	MIME    string   `json:"mime,omitempty"`
}

// With returns a copy of a pointing at path, produced by stage.
func (a Artifact) With(stage, path string) Artifact {
	a.Stage = stage
	a.Path = path
	return a
}

// Result describes the output of a completed job.
type Result struct {
	JobID      string      `json:"job_id"`
	URL        string      `json:"url"`
	MIME       string      `json:"mime"`
	Bands      []string    `json:"bands,omitempty"`
	Footprints []orb.Bound `json:"-"`
}

// FootprintCollection renders the clipped footprints as GeoJSON polygons.
func (r Result) FootprintCollection() *geojson.FeatureCollection {
	fc := BoxCollection(r.Footprints)
	for _, f := range fc.Features {
		f.Properties["job_id"] = r.JobID
	}
	return fc
}

// BoxCollection renders boxes as GeoJSON polygons numbered by "part".
func BoxCollection(boxes []orb.Bound) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, b := range boxes {
		f := geojson.NewFeature(b.ToPolygon())
		f.Properties["part"] = i
		fc.Append(f)
	}
	return fc
}
