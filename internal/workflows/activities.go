package workflows

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/pipeline"
)

// Error types carried by activity failures.
const (
	ErrTypeFatal       = "FatalStageError"
	ErrTypeRecoverable = "RecoverableStageError"
)

// Processor runs and reports jobs. *usecases.TransformService implements it.
type Processor interface {
	Run(ctx context.Context, job *domain.Job) (*domain.Result, error)
	Finish(ctx context.Context, job *domain.Job, res *domain.Result, runErr error) error
}

// Activities holds the activity implementations for GranuleWorkflow.
type Activities struct {
	Processor Processor
}

// Outcome is what ReportOutcome needs to rebuild the run result.
type Outcome struct {
	Job     domain.Job     `json:"job"`
	Result  *domain.Result `json:"result,omitempty"`
	Stage   string         `json:"stage,omitempty"`
	Failure string         `json:"failure,omitempty"`
	Fatal   bool           `json:"fatal,omitempty"`
}

// Err returns the run error the outcome describes, or nil.
func (o Outcome) Err() error {
	if o.Failure == "" {
		return nil
	}
	if o.Fatal {
		return pipeline.Fatal(o.Stage, errors.New(o.Failure))
	}
	return pipeline.Recoverable(o.Stage, errors.New(o.Failure))
}

// TransformGranule runs the job's pipeline. Stage errors are returned as
// application errors with the stage and message as details; fatal ones are
// not retried.
func (a *Activities) TransformGranule(ctx context.Context, job domain.Job) (*domain.Result, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)
	logger.Info("transform granule", "job_id", job.ID, "attempt", info.Attempt)

	if hb := info.HeartbeatTimeout; hb > 0 {
		done := make(chan struct{})
		defer close(done)
		go heartbeat(ctx, hb/2, done, job.ID)
	}

	res, err := a.Processor.Run(ctx, &job)
	if err == nil {
		return res, nil
	}

	stage := pipeline.StageOf(err)
	msg := err.Error()
	var se *pipeline.StageError
	if errors.As(err, &se) {
		msg = se.Err.Error()
	}
	if pipeline.IsFatal(err) {
		return nil, temporal.NewNonRetryableApplicationError(msg, ErrTypeFatal, nil, stage, msg)
	}
	return nil, temporal.NewApplicationError(msg, ErrTypeRecoverable, stage, msg)
}

// ReportOutcome records the job outcome and calls the requester back.
func (a *Activities) ReportOutcome(ctx context.Context, out Outcome) error {
	return a.Processor.Finish(ctx, &out.Job, out.Result, out.Err())
}

func heartbeat(ctx context.Context, every time.Duration, done <-chan struct{}, jobID string) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			activity.RecordHeartbeat(ctx, jobID)
		}
	}
}
