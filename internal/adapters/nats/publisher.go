// Package natsadapter carries jobs and job events over NATS JetStream.
package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// Subjects. Job events are also visible to plain NATS subscribers,
// which is how the WebSocket relay follows them.
const (
	JobSubjectPrefix   = "harmony.jobs."
	EventSubjectPrefix = "harmony.events."
	BroadcastSubject   = "harmony.updates.broadcast"
)

// JobSubject returns the queue subject for a job.
func JobSubject(jobID string) string { return JobSubjectPrefix + jobID }

// EventSubject returns the subject carrying events of a job.
func EventSubject(jobID string) string { return EventSubjectPrefix + jobID }

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the job and event streams.
func EnsureStreams(js nats.JetStreamManager) error {
	streams := []nats.StreamConfig{
		{
			Name:      "HARMONY_JOBS",
			Subjects:  []string{JobSubjectPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "HARMONY_EVENTS",
			Subjects:  []string{EventSubjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishJob queues a job for the workers. The job ID doubles as the
// JetStream message ID, so resubmitting the same job is deduplicated.
func (p *Publisher) PublishJob(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = p.js.Publish(JobSubject(job.ID), data, nats.Context(ctx), nats.MsgId(job.ID))
	return err
}

func (p *Publisher) PublishJobEvent(ctx context.Context, event *domain.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.js.Publish(EventSubject(event.JobID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(BroadcastSubject, data)
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection (e.g. for the WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("gdalsubset"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
