package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"eventide/internal/workflow"
	"eventide/pkg/models"
)

const (
	kafkaBroker        = "localhost:29092"
	eventsTopic        = "eventide.events"
	dlqTopic           = "eventide.dlq"
	messageWaitTimeout = 30 * time.Second
)

func TestPipelineWebhookDispatch(t *testing.T) {
	createReq := workflow.CreateWorkflowRequest{
		Name:      "e2e_webhook_dispatch",
		EventType: "e2e.webhook",
		Source:    "e2e_test",
		Rules: []workflow.CreateRule{
			{
				Priority:     10,
				Condition:    "payload.status == 'active'",
				ActionType:   workflow.ActionWebhook,
				ActionConfig: map[string]interface{}{"url": "https://hooks.example.com/e2e"},
			},
		},
	}
	wf := createWorkflow(t, createReq)
	defer deleteWorkflow(t, wf.ID)

	time.Sleep(2 * time.Second)

	event := models.IncomingEvent{
		EventID:   uuid.New().String(),
		EventType: "e2e.webhook",
		Source:    "e2e_test",
		Payload:   map[string]interface{}{"status": "active", "value": 100},
	}

	err := sendEventToKafka(t, event)
	require.NoError(t, err)

	dead := waitForDLQMessage(t, event.EventID, 5*time.Second)
	assert.Nil(t, dead, "a reachable action should never land in the DLQ")
}

func TestPipelineConditionSkipsDispatch(t *testing.T) {
	createReq := workflow.CreateWorkflowRequest{
		Name:      "e2e_condition_skip",
		EventType: "e2e.condition",
		Source:    "e2e_test",
		Rules: []workflow.CreateRule{
			{
				Priority:     10,
				Condition:    "payload.amount > 1000",
				ActionType:   workflow.ActionWebhook,
				ActionConfig: map[string]interface{}{"url": "https://hooks.example.com/never-called"},
			},
		},
	}
	wf := createWorkflow(t, createReq)
	defer deleteWorkflow(t, wf.ID)

	time.Sleep(2 * time.Second)

	event := models.IncomingEvent{
		EventID:   uuid.New().String(),
		EventType: "e2e.condition",
		Source:    "e2e_test",
		Payload:   map[string]interface{}{"amount": 5},
	}

	err := sendEventToKafka(t, event)
	require.NoError(t, err)

	dead := waitForDLQMessage(t, event.EventID, 5*time.Second)
	assert.Nil(t, dead, "a rule whose condition evaluates false must never dispatch or DLQ")
}

func TestPipelineUnreachableWebhookParksInDLQ(t *testing.T) {
	createReq := workflow.CreateWorkflowRequest{
		Name:      "e2e_dlq_park",
		EventType: "e2e.unreachable",
		Source:    "e2e_test",
		Rules: []workflow.CreateRule{
			{
				Priority:     10,
				ActionType:   workflow.ActionWebhook,
				ActionConfig: map[string]interface{}{"url": "http://127.0.0.1:1/unreachable"},
			},
		},
	}
	wf := createWorkflow(t, createReq)
	defer deleteWorkflow(t, wf.ID)

	time.Sleep(2 * time.Second)

	event := models.IncomingEvent{
		EventID:   uuid.New().String(),
		EventType: "e2e.unreachable",
		Source:    "e2e_test",
		Payload:   map[string]interface{}{},
	}

	err := sendEventToKafka(t, event)
	require.NoError(t, err)

	dead := waitForDLQMessage(t, event.EventID, messageWaitTimeout)
	require.NotNil(t, dead, "a dispatch failure must land the original event on the DLQ topic")
	assert.Equal(t, float64(0), dead.Payload["retryCount"])
}

func sendEventToKafka(t *testing.T, event models.IncomingEvent) error {
	t.Helper()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaBroker),
		Topic:        eventsTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	body, err := json.Marshal(models.FromIncomingEvent(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventID),
		Value: body,
		Time:  time.Now(),
	})
}

// waitForDLQMessage polls the DLQ topic for an envelope whose originalEvent.eventId
// matches eventID, returning nil if none arrives before timeout.
func waitForDLQMessage(t *testing.T, eventID string, timeout time.Duration) *models.MessageEnvelope {
	t.Helper()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{kafkaBroker},
		Topic:          dlqTopic,
		GroupID:        fmt.Sprintf("e2e-dlq-waiter-%s", uuid.New().String()),
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        2 * time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if err == context.DeadlineExceeded {
				return nil
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var envelope models.MessageEnvelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			_ = reader.CommitMessages(ctx, msg)
			continue
		}
		_ = reader.CommitMessages(ctx, msg)

		originalEvent, _ := envelope.Payload["originalEvent"].(map[string]interface{})
		if originalEvent != nil && originalEvent["eventId"] == eventID {
			return &envelope
		}
	}
}
