package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	natsadapter "github.com/harmonyservices/gdalsubset/internal/adapters/nats"
	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/pkg/config"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Print a job's events until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("gdalsubset-cli")
			if err != nil {
				return err
			}
			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.AckWait)
			if err != nil {
				return err
			}
			defer sub.Close()

			handler, done := eventPrinter(cmd.OutOrStdout())
			if err := sub.SubscribeJobEvents(cmd.Context(), args[0], handler); err != nil {
				return err
			}

			select {
			case ev := <-done:
				if ev.Status == domain.JobFailed {
					return fmt.Errorf("job %s failed: %s", ev.JobID, ev.Message)
				}
				return nil
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
}

// eventPrinter writes each event as a JSON line. The returned channel
// receives the first terminal event.
func eventPrinter(out io.Writer) (func(ctx context.Context, ev *domain.JobEvent) error, <-chan domain.JobEvent) {
	done := make(chan domain.JobEvent, 1)
	var (
		mu   sync.Mutex
		once sync.Once
	)
	enc := json.NewEncoder(out)

	return func(ctx context.Context, ev *domain.JobEvent) error {
		mu.Lock()
		err := enc.Encode(ev)
		mu.Unlock()
		if err != nil {
			return err
		}
		if ev.Status.Terminal() {
			once.Do(func() { done <- *ev })
		}
		return nil
	}, done
}
