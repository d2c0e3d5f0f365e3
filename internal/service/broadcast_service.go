package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enroll-api/internal/models"
	"github.com/noah-isme/sma-enroll-api/pkg/jobs"
)

// AdminAudience is the audience tag attached to cycle broadcasts.
const AdminAudience = "admin"

// NotificationSink receives a cycle broadcast. Implementations may deliver
// by email, webhook or log; failures are retried by the queue and never
// surface to the state machine.
type NotificationSink interface {
	Deliver(ctx context.Context, event models.CycleNotification) error
}

// BroadcastService fans cycle notifications out to registered sinks through
// a background queue. Publishing never blocks a cycle transition.
type BroadcastService struct {
	queue  *jobs.Queue
	logger *zap.Logger

	mu    sync.RWMutex
	sinks []NotificationSink
}

// BroadcastConfig tunes the underlying queue.
type BroadcastConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NewBroadcastService constructs the broadcaster and its queue. Start must be
// called before publishing.
func NewBroadcastService(cfg BroadcastConfig, logger *zap.Logger) *BroadcastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BroadcastService{logger: logger}
	s.queue = jobs.NewQueue("cycle-notify", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins queue consumption.
func (s *BroadcastService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *BroadcastService) Stop() {
	s.queue.Stop()
}

// Register adds a sink to the fan-out set.
func (s *BroadcastService) Register(sink NotificationSink) {
	if sink == nil {
		return
	}
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// Publish enqueues a cycle notification. Failure to enqueue is logged and
// swallowed: notification delivery must never roll back a state change.
func (s *BroadcastService) Publish(event models.CycleNotification) {
	if event.Audience == "" {
		event.Audience = AdminAudience
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "cycle_notification",
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("cycle notification dropped", zap.Error(err))
	}
}

func (s *BroadcastService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.CycleNotification)
	if !ok {
		s.logger.Warn("unexpected broadcast payload", zap.String("job_id", job.ID))
		return nil
	}

	s.mu.RLock()
	sinks := make([]NotificationSink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			// Sink failures are logged per sink; the job is not retried so a
			// single flaky sink cannot re-deliver to the healthy ones.
			s.logger.Warn("notification sink failed",
				zap.String("job_id", job.ID),
				zap.String("semester", string(event.Semester)),
				zap.Error(err))
		}
	}
	return nil
}

// LogSink writes cycle notifications to the application log. It is the
// default sink registered when no external delivery is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver implements NotificationSink.
func (s *LogSink) Deliver(_ context.Context, event models.CycleNotification) error {
	s.logger.Info("cycle notification",
		zap.String("semester", string(event.Semester)),
		zap.String("academic_year", event.AcademicYear),
		zap.Bool("is_open", event.IsOpen),
		zap.Timep("opened_at", event.OpenedAt),
		zap.Timep("closes_at", event.ClosesAt),
		zap.String("audience", event.Audience))
	return nil
}
