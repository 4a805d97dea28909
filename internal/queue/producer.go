package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

const (
	AttemptsStreamName  = "ATTEMPTS"
	AttemptsSubjectBase = "attempts"
)

// Producer publishes recorded verification attempts to JetStream so
// dashboards and other consumers see them in real time. Publishing is
// best-effort; the attempt record in Postgres is the source of truth.
type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the ATTEMPTS stream if it doesn't exist. Retries up
// to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        AttemptsStreamName,
		Subjects:    []string{AttemptsSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Description: "Verification attempt records",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishAttempt publishes one attempt record, subject-partitioned by
// outcome ("attempts.success" / "attempts.rejected").
func (p *Producer) PublishAttempt(ctx context.Context, at *models.AttendanceAttempt) error {
	payload, err := json.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	outcome := "rejected"
	if at.Success {
		outcome = "success"
	}

	_, err = p.js.Publish(ctx, AttemptsSubjectBase+"."+outcome, payload)
	if err != nil {
		return fmt.Errorf("publish attempt: %w", err)
	}
	observability.AttemptsPublished.Inc()
	return nil
}

// AttemptRecorded lets the producer act as the verification engine's
// notifier. Publish failures are logged and swallowed.
func (p *Producer) AttemptRecorded(ctx context.Context, at *models.AttendanceAttempt) {
	if err := p.PublishAttempt(ctx, at); err != nil {
		slog.Warn("publish attempt record", "error", err)
	}
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
