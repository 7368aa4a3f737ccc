package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subs    []*nats.Subscription
	ackWait time.Duration
}

// NewSubscriber connects to NATS. ackWait bounds how long a job may go
// without a progress heartbeat before JetStream redelivers it.
func NewSubscriber(url string, ackWait time.Duration) (*Subscriber, error) {
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
	if ackWait <= 0 {
		ackWait = time.Minute
	}
	return &Subscriber{conn: conn, js: js, ackWait: ackWait}, nil
}

// SubscribeJobs consumes queued jobs with a shared durable consumer.
// Malformed messages are terminated. Handler errors are redelivered up
// to three times; the handler is expected to report terminal failures
// itself and return nil.
func (s *Subscriber) SubscribeJobs(ctx context.Context, handler func(ctx context.Context, job *domain.Job) error) error {
	sub, err := s.js.QueueSubscribe(JobSubjectPrefix+">", "gdalsubset-workers", func(msg *nats.Msg) {
		var job domain.Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			slog.Error("dropping malformed job", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}

		stop := s.heartbeat(msg)
		err := handler(ctx, &job)
		stop()

		if err != nil {
			slog.Warn("job handler failed, will redeliver", "job_id", job.ID, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("gdalsubset-workers"),
		nats.ManualAck(),
		nats.AckWait(s.ackWait),
		nats.MaxDeliver(3),
		nats.MaxAckPending(1),
	)
	if err != nil {
		return fmt.Errorf("subscribe jobs: %w", err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeJobEvents follows job events with an ephemeral consumer. With a
// jobID it replays that job's retained events first; otherwise it follows
// new events of every job.
func (s *Subscriber) SubscribeJobEvents(ctx context.Context, jobID string, handler func(ctx context.Context, event *domain.JobEvent) error) error {
	subject, deliver := EventSubjectPrefix+">", nats.DeliverNew()
	if jobID != "" {
		subject, deliver = EventSubject(jobID), nats.DeliverAll()
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var event domain.JobEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		deliver,
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("subscribe job events: %w", err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// heartbeat marks msg in progress every half ack window until stopped.
func (s *Subscriber) heartbeat(msg *nats.Msg) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(s.ackWait / 2)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = msg.InProgress()
			}
		}
	}()
	return func() { close(done) }
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
