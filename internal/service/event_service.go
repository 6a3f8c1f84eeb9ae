package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
)

// Sink receives lifecycle events. Delivery failures are logged and counted
// but never surface to the mutation path.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.Event) error
}

// EventBridge assigns each lifecycle event a monotonically increasing
// sequence number and fans it out to every registered sink.
type EventBridge struct {
	seq     atomic.Uint64
	sinks   []Sink
	logger  *zap.Logger
	metrics *MetricsService
	now     func() time.Time
	timeout time.Duration
}

func NewEventBridge(sinks []Sink, logger *zap.Logger, metrics *MetricsService, timeout time.Duration) *EventBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &EventBridge{
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		timeout: timeout,
	}
}

// Emit stamps the event with a sequence number and timestamp, then delivers
// it to all sinks. The delivery context is detached from the request so a
// committed mutation's event survives caller cancellation.
func (b *EventBridge) Emit(ctx context.Context, event models.Event) models.Event {
	event.Sequence = b.seq.Add(1)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now().UTC()
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	for _, sink := range b.sinks {
		if err := sink.Deliver(deliverCtx, event); err != nil {
			b.logger.Warn("event sink delivery failed",
				zap.String("sink", sink.Name()),
				zap.Uint64("sequence", event.Sequence),
				zap.String("type", string(event.Type)),
				zap.Error(err))
			b.metrics.ObserveSinkFailure(sink.Name())
		}
	}
	b.metrics.ObserveEvent(string(event.Type))
	return event
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, event models.Event) error {
	fields := []zap.Field{
		zap.Uint64("sequence", event.Sequence),
		zap.String("type", string(event.Type)),
		zap.Time("occurred_at", event.OccurredAt),
		zap.String("actor_id", event.ActorID),
	}
	if event.Session != nil {
		fields = append(fields,
			zap.String("session_id", event.Session.ID),
			zap.String("date", event.Session.Date),
			zap.String("group_id", event.Session.GroupID))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if len(event.Sessions) > 0 {
		fields = append(fields, zap.Int("session_count", len(event.Sessions)))
	}
	s.logger.Info("lifecycle event", fields...)
	return nil
}

// StreamSink appends events to a Redis Stream so downstream consumers
// (attendance, notifications) can tail the lifecycle feed.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = "timetable:events"
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Name() string { return "redis-stream" }

func (s *StreamSink) Deliver(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"sequence": event.Sequence,
			"type":     string(event.Type),
			"payload":  payload,
		},
	}).Err()
}
