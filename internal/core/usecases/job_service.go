package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
	"github.com/harmonyservices/gdalsubset/internal/pkg/metrics"
)

// ErrInvalidMessage wraps every rejection of a submitted operation.
var ErrInvalidMessage = errors.New("invalid message")

// JobService handles job submission and lifecycle.
type JobService struct {
	jobs      ports.JobRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewJobService creates a new JobService. publisher may be nil, in which
// case jobs are recorded but not queued.
func NewJobService(jobs ports.JobRepository, publisher ports.EventPublisher) *JobService {
	return &JobService{jobs: jobs, publisher: publisher, now: time.Now}
}

// Submit parses raw as a Harmony operation, records it and queues it for a worker.
func (s *JobService) Submit(ctx context.Context, raw []byte) (*domain.Job, error) {
	msg, err := domain.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	now := s.now()
	job := &domain.Job{
		ID:        uuid.NewString(),
		RequestID: msg.RequestID,
		Status:    domain.JobAccepted,
		Message:   msg,
		Output:    domain.OutputName(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.RequestID == "" {
		job.RequestID = job.ID
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishJob(ctx, job); err != nil {
			_ = s.jobs.UpdateStatus(ctx, job.ID, domain.JobFailed, 0, "", "could not queue job")
			return nil, fmt.Errorf("queue job: %w", err)
		}
	}

	s.emit(ctx, job.ID, domain.JobAccepted, "", 0, "")
	return job, nil
}

// Get returns a job by ID.
func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job id must not be empty")
	}
	return s.jobs.GetByID(ctx, id)
}

// List returns a page of jobs and the total count.
func (s *JobService) List(ctx context.Context, offset, limit int) ([]domain.Job, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobs.List(ctx, offset, limit)
}

// MarkRunning records that a job has entered stage.
func (s *JobService) MarkRunning(ctx context.Context, id, stage string, progress int) error {
	if err := s.jobs.UpdateStatus(ctx, id, domain.JobRunning, progress, "", ""); err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	s.emit(ctx, id, domain.JobRunning, stage, progress, "")
	return nil
}

// MarkComplete records a successful job and its result location.
func (s *JobService) MarkComplete(ctx context.Context, id, resultURL string) error {
	if err := s.jobs.UpdateStatus(ctx, id, domain.JobSuccessful, 100, resultURL, ""); err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	metrics.JobsTotal.WithLabelValues(string(domain.JobSuccessful)).Inc()
	s.emit(ctx, id, domain.JobSuccessful, "", 100, resultURL)
	return nil
}

// MarkFailed records a failed job.
func (s *JobService) MarkFailed(ctx context.Context, id, stage, errMsg string) error {
	if err := s.jobs.UpdateStatus(ctx, id, domain.JobFailed, 0, "", errMsg); err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	metrics.JobsTotal.WithLabelValues(string(domain.JobFailed)).Inc()
	s.emit(ctx, id, domain.JobFailed, stage, 0, errMsg)
	return nil
}

// emit publishes a job event, and broadcasts it when the job has finished.
// Delivery is best effort.
func (s *JobService) emit(ctx context.Context, id string, status domain.JobStatus, stage string, progress int, message string) {
	if s.publisher == nil {
		return
	}
	event := &domain.JobEvent{
		JobID:    id,
		Status:   status,
		Stage:    stage,
		Progress: progress,
		Message:  message,
		Time:     s.now(),
	}
	if err := s.publisher.PublishJobEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "publish job event failed", "job_id", id, "status", status, "error", err)
	}
	if !status.Terminal() {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisher.PublishBroadcast(ctx, data); err != nil {
		slog.WarnContext(ctx, "broadcast job event failed", "job_id", id, "error", err)
	}
}
