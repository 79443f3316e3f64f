package retryloop

import (
	"context"
	"encoding/json"
	"time"

	"eventide/internal/broker"
	"eventide/internal/config"
	"eventide/internal/constants"
	"eventide/internal/dedup"
	"eventide/internal/dlq"
	"eventide/internal/logger"
	"eventide/pkg/models"
)

// Loop consumes the DLQ topic under its own consumer group and, for each
// envelope, either waits out its backoff and republishes the original event
// to the input topic, or parks it on the dead topic as terminal.
type Loop struct {
	consumer broker.Consumer
	producer broker.Producer
	dedup    dedup.Gate
	dlq      *dlq.Service
	topics   config.TopicsConfig
	logger   logger.Logger
}

func New(consumer broker.Consumer, producer broker.Producer, gate dedup.Gate, dlqService *dlq.Service, topics config.TopicsConfig, log logger.Logger) *Loop {
	return &Loop{
		consumer: consumer,
		producer: producer,
		dedup:    gate,
		dlq:      dlqService,
		topics:   topics,
		logger:   log,
	}
}

// Run blocks consuming the DLQ topic until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.consumer.SetServiceName("retryloop-service")
	l.consumer.SetRawHandler(func(ctx context.Context, raw []byte, decodeErr error) {
		reason := "malformed envelope"
		var msg models.MessageEnvelope
		if json.Unmarshal(raw, &msg) == nil {
			if _, isRaw := msg.Payload["rawMessage"]; isRaw {
				reason = "unparseable event"
			}
		}
		l.terminal(ctx, map[string]interface{}{"rawMessage": string(raw)}, reason)
	})
	return l.consumer.Consume(ctx, l.topics.DLQ, l.handle)
}

func (l *Loop) handle(ctx context.Context, msg models.MessageEnvelope) error {
	envelope := msg.Payload
	if envelope == nil {
		l.terminal(ctx, map[string]interface{}{}, "malformed envelope")
		return nil
	}

	if _, isRaw := envelope["rawMessage"]; isRaw {
		l.terminal(ctx, envelope, "unparseable event")
		return nil
	}

	rawOriginal, ok := envelope["originalEvent"]
	if !ok {
		l.terminal(ctx, envelope, "missing originalEvent")
		return nil
	}

	original, err := decodeIncomingEvent(rawOriginal)
	if err != nil {
		l.terminal(ctx, envelope, "malformed envelope")
		return nil
	}

	retryCount := intField(envelope["retryCount"])

	if !l.dlq.IsRetryable(retryCount) {
		l.terminal(ctx, envelope, "max retries exceeded")
		return nil
	}

	delay := l.dlq.BackoffDelay(retryCount)
	l.logger.InfowCtx(ctx, "Retry loop waiting before republish",
		"event_id", original.EventID,
		"retry_count", retryCount,
		"delay", delay,
	)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	if err := l.dedup.Clear(ctx, original.EventID); err != nil {
		l.logger.WarnwCtx(ctx, "Failed to clear dedup key before retry", "error", err, "event_id", original.EventID)
	}

	if original.Payload == nil {
		original.Payload = map[string]interface{}{}
	}
	original.Payload[constants.RetryCountField] = retryCount + 1

	out := models.FromIncomingEvent(original)
	if err := l.producer.Publish(ctx, l.topics.Events, out); err != nil {
		l.logger.ErrorwCtx(ctx, "Failed to republish event after retry backoff", "error", err, "event_id", original.EventID)
		return err
	}
	return nil
}

func (l *Loop) terminal(ctx context.Context, original map[string]interface{}, reason string) {
	if err := l.dlq.TerminalPark(ctx, original, reason); err != nil {
		l.logger.ErrorwCtx(ctx, "Failed to park terminal DLQ message", "error", err, "reason", reason)
	}
}

func decodeIncomingEvent(raw interface{}) (models.IncomingEvent, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return models.IncomingEvent{}, err
	}
	var event models.IncomingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return models.IncomingEvent{}, err
	}
	return event, nil
}

func intField(raw interface{}) int {
	switch v := raw.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
