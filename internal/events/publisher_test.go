package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-auth/internal/bucketing"
	"creator-auth/internal/clock"
	"creator-auth/internal/model"
)

type recordingSink struct {
	mu     sync.Mutex
	name   string
	err    error
	events []model.AuthEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(ctx context.Context, event *model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return s.err
}

func TestPublishFansOutToEverySink(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	p := NewPublisher(bucketing.NewManager(32), clock.NewFake(now), a, b)

	p.Publish(context.Background(), model.AuthEvent{Type: model.EventOTPRequested, EmailHash: "abc"})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	got := a.events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, got.ID, b.events[0].ID)
	assert.True(t, got.OccurredAt.Equal(now))
	assert.Equal(t, bucketing.NewManager(32).EventBucket("abc"), got.Bucket)
}

func TestPublishSurvivesFailingSink(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("unavailable")}
	good := &recordingSink{name: "good"}
	p := NewPublisher(nil, nil, bad, good)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), model.AuthEvent{Type: model.EventOTPRejected, Reason: ReasonExpired})
	})
	require.Len(t, good.events, 1)
	assert.Equal(t, ReasonExpired, good.events[0].Reason)
}

func TestPublishIgnoresCancelledRequest(t *testing.T) {
	sink := &recordingSink{name: "s"}
	p := NewPublisher(nil, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, model.AuthEvent{Type: model.EventOTPVerified})

	assert.Len(t, sink.events, 1)
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), model.AuthEvent{Type: model.EventOTPRequested})
	})
}
