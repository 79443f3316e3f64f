package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventide/internal/broker"
	"eventide/internal/config"
	"eventide/internal/logger"
	"eventide/pkg/metrics"
	"eventide/pkg/models"
)

// Service publishes the three DLQ envelope shapes and decides whether a
// failed event still has retry budget left.
type Service struct {
	producer broker.Producer
	cfg      config.DLQConfig
	topics   config.TopicsConfig
	logger   logger.Logger
}

func NewService(producer broker.Producer, cfg config.DLQConfig, topics config.TopicsConfig, log logger.Logger) *Service {
	return &Service{producer: producer, cfg: cfg, topics: topics, logger: log}
}

// EnqueueFailure publishes a FailedEnvelope for an event whose action
// dispatch failed. retryCount is the count read off the event before this
// attempt, so a first failure enqueues with retryCount 0.
func (s *Service) EnqueueFailure(ctx context.Context, event models.IncomingEvent, dispatchErr error, retryCount int) error {
	envelope := FailedEnvelope{
		OriginalEvent: event,
		Error:         dispatchErr.Error(),
		RetryCount:    retryCount,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := s.publish(ctx, s.topics.DLQ, event.EventID, envelope); err != nil {
		return err
	}
	metrics.DLQMessagesTotal.WithLabelValues("engine", s.topics.DLQ, "dispatch_failed").Inc()
	s.logger.WarnwCtx(ctx, "Event enqueued to DLQ",
		"event_id", event.EventID,
		"retry_count", retryCount,
		"error", dispatchErr,
	)
	return nil
}

// EnqueueRaw publishes a RawEnvelope for an inbound message that could not
// be deserialized into an IncomingEvent at all.
func (s *Service) EnqueueRaw(ctx context.Context, raw []byte, decodeErr error) error {
	envelope := RawEnvelope{
		RawMessage: string(raw),
		Error:      decodeErr.Error(),
		RetryCount: 0,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.publish(ctx, s.topics.DLQ, "", envelope); err != nil {
		return err
	}
	metrics.DLQMessagesTotal.WithLabelValues("engine", s.topics.DLQ, "unparseable").Inc()
	s.logger.WarnwCtx(ctx, "Malformed message enqueued to DLQ", "error", decodeErr)
	return nil
}

// TerminalPark publishes a TerminalEnvelope to the dead topic, parking a
// DLQ message that has exhausted its retry budget or could not itself be
// processed by the retry loop.
func (s *Service) TerminalPark(ctx context.Context, original map[string]interface{}, reason string) error {
	envelope := TerminalEnvelope{
		OriginalDLQMessage: original,
		Reason:             reason,
		Timestamp:          time.Now().UnixMilli(),
	}
	key := ""
	if id, ok := original["eventId"].(string); ok {
		key = id
	}
	if err := s.publish(ctx, s.topics.DLQDead, key, envelope); err != nil {
		return err
	}
	metrics.DLQMessagesTotal.WithLabelValues("retryloop", s.topics.DLQDead, reason).Inc()
	s.logger.ErrorwCtx(ctx, "DLQ message parked as terminal", "reason", reason)
	return nil
}

// IsRetryable reports whether retryCount has not yet exhausted the
// configured retry budget.
func (s *Service) IsRetryable(retryCount int) bool {
	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return retryCount < maxRetries
}

// BackoffDelay returns the delay before the retryCount-th retry attempt,
// per baseDelayMs * 5^retryCount.
func (s *Service) BackoffDelay(retryCount int) time.Duration {
	base := s.cfg.BaseDelayMs
	if base <= 0 {
		base = 5000
	}
	multiplier := 1
	for i := 0; i < retryCount; i++ {
		multiplier *= 5
	}
	return time.Duration(base*multiplier) * time.Millisecond
}

func (s *Service) publish(ctx context.Context, topic, key string, envelope interface{}) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal dlq envelope: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode dlq envelope to payload: %w", err)
	}
	msg := models.NewMessageEnvelopeBuilder().WithID(key).WithSource("eventide-dlq").WithPayload(payload).Build()
	return s.producer.Publish(ctx, topic, *msg)
}
