package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
)

// Pinger is a backing service that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Jobs    *usecases.JobService
	Clip    *usecases.ClipService
	NATS    *nats.Conn
	DB      Pinger
	Cache   Pinger
	Version string
}
