package ports

import (
	"context"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// EventPublisher publishes jobs and job events to a message broker.
type EventPublisher interface {
	PublishJob(ctx context.Context, job *domain.Job) error
	PublishJobEvent(ctx context.Context, event *domain.JobEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to jobs and job events from a message broker.
type EventSubscriber interface {
	SubscribeJobs(ctx context.Context, handler func(ctx context.Context, job *domain.Job) error) error
	SubscribeJobEvents(ctx context.Context, jobID string, handler func(ctx context.Context, event *domain.JobEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Downloader fetches a granule into dir and returns the local path.
// Local paths are returned as-is. Errors that will recur on retry, such as
// a missing object, implement Permanent() bool.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

// Stager uploads a result and returns a URL the caller can fetch it from.
type Stager interface {
	Stage(ctx context.Context, localPath, location, name, mime string) (string, error)
}

// CommandRunner executes an external program and returns its stdout lines.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]string, error)
}

// RasterInspector reads raster metadata.
type RasterInspector interface {
	Inspect(ctx context.Context, path string) (*domain.RasterInfo, error)
	// LayerFormat returns the dataset name pattern for a variable, with the
	// file path replaced by "{}".
	LayerFormat(ctx context.Context, path, variable string) (string, error)
}

// Notifier reports job outcomes to the requester.
type Notifier interface {
	Complete(ctx context.Context, callback, resultURL string) error
	Fail(ctx context.Context, callback, message string) error
}
