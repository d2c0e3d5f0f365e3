package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

type sinkStub struct {
	mu     sync.Mutex
	events []models.CycleNotification
	err    error
	done   chan struct{}
}

func newSinkStub(err error) *sinkStub {
	return &sinkStub{err: err, done: make(chan struct{}, 8)}
}

func (s *sinkStub) Deliver(ctx context.Context, event models.CycleNotification) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func (s *sinkStub) received() []models.CycleNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CycleNotification(nil), s.events...)
}

func waitForDelivery(t *testing.T, sink *sinkStub) {
	t.Helper()
	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification delivery")
	}
}

func TestBroadcastServiceDeliversToAllSinks(t *testing.T) {
	svc := NewBroadcastService(BroadcastConfig{Workers: 1, BufferSize: 4}, nil)
	first := newSinkStub(nil)
	second := newSinkStub(nil)
	svc.Register(first)
	svc.Register(second)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Publish(models.CycleNotification{Semester: models.SemesterFirst, AcademicYear: "2025-2026"})

	waitForDelivery(t, first)
	waitForDelivery(t, second)
	require.Len(t, first.received(), 1)
	require.Len(t, second.received(), 1)
	assert.Equal(t, AdminAudience, first.received()[0].Audience)
	assert.False(t, first.received()[0].EmittedAt.IsZero())
}

func TestBroadcastServiceFailingSinkDoesNotBlockOthers(t *testing.T) {
	svc := NewBroadcastService(BroadcastConfig{Workers: 1, BufferSize: 4}, nil)
	failing := newSinkStub(errors.New("smtp down"))
	healthy := newSinkStub(nil)
	svc.Register(failing)
	svc.Register(healthy)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Publish(models.CycleNotification{Semester: models.SemesterSecond, AcademicYear: "2025-2026"})

	waitForDelivery(t, failing)
	waitForDelivery(t, healthy)
	assert.Len(t, healthy.received(), 1)

	// The failed delivery is not retried into the healthy sink.
	svc.Publish(models.CycleNotification{Semester: models.SemesterSecond, AcademicYear: "2025-2026"})
	waitForDelivery(t, healthy)
	assert.Len(t, healthy.received(), 2)
	assert.Len(t, failing.received(), 2)
}

func TestLogSinkNeverFails(t *testing.T) {
	sink := NewLogSink(nil)
	err := sink.Deliver(context.Background(), models.CycleNotification{Semester: models.SemesterFirst})
	assert.NoError(t, err)
}
