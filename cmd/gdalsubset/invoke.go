package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harmonyservices/gdalsubset/internal/bootstrap"
	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/pkg/config"
)

func newInvokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <operation.json | ->",
		Short: "Run a Harmony operation",
		Long: "Run a Harmony operation given as a JSON string, or read from stdin " +
			"when the argument is \"-\". The result is printed as JSON and the " +
			"requester's callback, if any, is notified.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(args[0])
			if args[0] == "-" {
				var err error
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			return runInvoke(cmd.Context(), raw, cmd.OutOrStdout())
		},
	}
}

// decodeJob parses a Harmony operation into a job ready to run.
func decodeJob(raw []byte) (*domain.Job, error) {
	msg, err := domain.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("parse operation: %w", err)
	}
	job := &domain.Job{
		ID:        uuid.NewString(),
		RequestID: msg.RequestID,
		Status:    domain.JobAccepted,
		Message:   msg,
		Output:    domain.OutputName(raw),
	}
	if job.RequestID == "" {
		job.RequestID = job.ID
	}
	return job, nil
}

func runInvoke(ctx context.Context, raw []byte, out io.Writer) error {
	job, err := decodeJob(raw)
	if err != nil {
		return err
	}

	cfg, err := config.Load("gdalsubset-cli")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Worker.WorkDir, 0o755); err != nil {
		return fmt.Errorf("work dir: %w", err)
	}

	svc, err := bootstrap.TransformService(cfg, nil, nil)
	if err != nil {
		return err
	}

	res, err := svc.Process(ctx, job)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
