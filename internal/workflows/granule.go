// Package workflows runs Harmony jobs as Temporal workflows.
package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// WorkflowID is the Temporal workflow ID for a job. Starting a second
// workflow for the same job is rejected by the server.
func WorkflowID(jobID string) string {
	return "gdalsubset-job-" + jobID
}

// GranuleWorkflow transforms the job's granules and reports the outcome to
// the requester. Recoverable stage failures are retried; fatal ones are
// reported immediately.
func GranuleWorkflow(ctx workflow.Context, job domain.Job) (*domain.Result, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting granule workflow", "job_id", job.ID)

	var a *Activities

	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeFatal},
		},
	})

	var res domain.Result
	runErr := workflow.ExecuteActivity(runCtx, a.TransformGranule, job).Get(runCtx, &res)

	out := Outcome{Job: job}
	if runErr != nil {
		out.Failure = runErr.Error()
		var appErr *temporal.ApplicationError
		if errors.As(runErr, &appErr) {
			out.Fatal = appErr.NonRetryable()
			if appErr.HasDetails() {
				_ = appErr.Details(&out.Stage, &out.Failure)
			}
		}
		logger.Warn("granule transform failed", "job_id", job.ID, "stage", out.Stage, "fatal", out.Fatal, "error", runErr)
	} else {
		out.Result = &res
	}

	reportCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	})
	if err := workflow.ExecuteActivity(reportCtx, a.ReportOutcome, out).Get(reportCtx, nil); err != nil {
		logger.Error("report outcome failed", "job_id", job.ID, "error", err)
		if runErr == nil {
			return nil, err
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	logger.Info("Granule workflow complete", "job_id", job.ID, "url", res.URL)
	return &res, nil
}
