package ports

import (
	"context"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// JobRepository persists jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	// List returns a page of jobs, newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]domain.Job, int, error)
	// UpdateStatus records a status transition. Empty resultURL / errMsg
	// leave the stored values untouched.
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, progress int, resultURL, errMsg string) error
}
