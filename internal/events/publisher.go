package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"creator-auth/internal/bucketing"
	"creator-auth/internal/clock"
	"creator-auth/internal/model"
	"creator-auth/internal/util"
)

// Rejection reasons recorded on otp.rejected events. Callers only ever see a uniform
// verification failure.
const (
	ReasonMismatch         = "mismatch"
	ReasonMalformed        = "malformed"
	ReasonExpired          = "expired"
	ReasonMissing          = "missing"
	ReasonAttemptsExceeded = "attempts_exceeded"
	ReasonResendTooSoon    = "resend_too_soon"
)

const DefaultTimeout = 3 * time.Second

// Sink is one destination for audit events.
type Sink interface {
	Name() string
	Write(ctx context.Context, event *model.AuthEvent) error
}

// Publisher fans events out to every sink concurrently. Sink failures are logged and never
// surface to the caller.
type Publisher struct {
	sinks   []Sink
	buckets *bucketing.Manager
	clock   clock.Clock
	timeout time.Duration
}

func NewPublisher(buckets *bucketing.Manager, clk clock.Clock, sinks ...Sink) *Publisher {
	if buckets == nil {
		buckets = bucketing.NewManager(bucketing.DefaultEventBuckets)
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Publisher{
		sinks:   sinks,
		buckets: buckets,
		clock:   clk,
		timeout: DefaultTimeout,
	}
}

// Publish stamps event with an ID, bucket and time when unset and writes it to all sinks.
// It returns once every sink has finished or the publish timeout elapses.
func (p *Publisher) Publish(ctx context.Context, event model.AuthEvent) {
	if p == nil || len(p.sinks) == 0 {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.clock.Now().UTC()
	}
	event.Bucket = p.buckets.EventBucket(event.EmailHash)

	// the auth request may already be answered; the audit write outlives it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range p.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Write(ctx, &event); err != nil {
				util.Warn("Failed to write auth event",
					util.String("sink", sink.Name()),
					util.String("event_type", string(event.Type)),
					util.String("event_id", event.ID),
					util.ErrorField(err))
				return fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		util.Debug("Auth event delivery incomplete", util.ErrorField(err))
	}
}
