package retryloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventide/internal/config"
	"eventide/internal/dlq"
	"eventide/internal/logger"
	"eventide/pkg/models"
)

type fakeGate struct {
	cleared []string
}

func (f *fakeGate) IsDuplicate(_ context.Context, _ string) (bool, error) { return false, nil }

func (f *fakeGate) Clear(_ context.Context, eventID string) error {
	f.cleared = append(f.cleared, eventID)
	return nil
}

type fakeProducer struct {
	published []struct {
		topic string
		msg   models.MessageEnvelope
	}
}

func (f *fakeProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	f.published = append(f.published, struct {
		topic string
		msg   models.MessageEnvelope
	}{topic, msg})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func envelopeFor(original map[string]interface{}, retryCount int) map[string]interface{} {
	return map[string]interface{}{
		"originalEvent": original,
		"error":         "dispatch failed",
		"retryCount":    retryCount,
	}
}

func testLoop(t *testing.T, producer *fakeProducer, gate *fakeGate) (*Loop, *fakeProducer) {
	t.Helper()
	topics := config.TopicsConfig{Events: "eventide.events", DLQ: "eventide.dlq", DLQDead: "eventide.dlq.dead"}
	dlqCfg := config.DLQConfig{MaxRetries: 3, BaseDelayMs: 1}
	service := dlq.NewService(producer, dlqCfg, topics, logger.NopLogger())
	return New(nil, producer, gate, service, topics, logger.NopLogger()), producer
}

func TestLoop_Handle_RepublishesWithinBudget(t *testing.T) {
	producer := &fakeProducer{}
	gate := &fakeGate{}
	l, _ := testLoop(t, producer, gate)

	original := map[string]interface{}{"eventId": "evt-1", "eventType": "order.created", "source": "orders", "payload": map[string]interface{}{}}
	err := l.handle(context.Background(), models.MessageEnvelope{Payload: envelopeFor(original, 0)})
	require.NoError(t, err)

	require.Len(t, producer.published, 1)
	assert.Equal(t, "eventide.events", producer.published[0].topic)
	assert.Contains(t, gate.cleared, "evt-1")
}

func TestLoop_Handle_TerminalOnMaxRetries(t *testing.T) {
	producer := &fakeProducer{}
	gate := &fakeGate{}
	l, _ := testLoop(t, producer, gate)

	original := map[string]interface{}{"eventId": "evt-2", "eventType": "order.created", "source": "orders"}
	err := l.handle(context.Background(), models.MessageEnvelope{Payload: envelopeFor(original, 3)})
	require.NoError(t, err)

	require.Len(t, producer.published, 1)
	assert.Equal(t, "eventide.dlq.dead", producer.published[0].topic)
}

func TestLoop_Handle_TerminalOnMissingOriginalEvent(t *testing.T) {
	producer := &fakeProducer{}
	gate := &fakeGate{}
	l, _ := testLoop(t, producer, gate)

	err := l.handle(context.Background(), models.MessageEnvelope{Payload: map[string]interface{}{"retryCount": 0}})
	require.NoError(t, err)

	require.Len(t, producer.published, 1)
	assert.Equal(t, "eventide.dlq.dead", producer.published[0].topic)
}

func TestLoop_Handle_TerminalOnRawEnvelope(t *testing.T) {
	producer := &fakeProducer{}
	gate := &fakeGate{}
	l, _ := testLoop(t, producer, gate)

	err := l.handle(context.Background(), models.MessageEnvelope{Payload: map[string]interface{}{"rawMessage": "not json", "error": "boom"}})
	require.NoError(t, err)

	require.Len(t, producer.published, 1)
	assert.Equal(t, "eventide.dlq.dead", producer.published[0].topic)
}
