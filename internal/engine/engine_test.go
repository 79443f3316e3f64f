package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventide/internal/condition"
	"eventide/internal/config"
	"eventide/internal/constants"
	"eventide/internal/dlq"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/models"
)

type fakeGate struct {
	duplicates map[string]bool
	err        error
	cleared    []string
}

func (f *fakeGate) IsDuplicate(_ context.Context, eventID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.duplicates[eventID], nil
}

func (f *fakeGate) Clear(_ context.Context, eventID string) error {
	f.cleared = append(f.cleared, eventID)
	return nil
}

type fakeRepository struct {
	workflow.Repository
	active *workflow.Workflow
	err    error
}

func (f *fakeRepository) FindActive(_ context.Context, eventType, source string) (*workflow.Workflow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.active, nil
}

type dispatchCall struct {
	event models.IncomingEvent
	rule  workflow.Rule
}

type fakeDispatcher struct {
	calls   []dispatchCall
	failFor map[string]error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, event models.IncomingEvent, rule workflow.Rule) error {
	f.calls = append(f.calls, dispatchCall{event: event, rule: rule})
	if err, ok := f.failFor[rule.ID]; ok {
		return err
	}
	return nil
}

type fakeProducer struct {
	published []string
}

func (f *fakeProducer) Publish(_ context.Context, topic string, _ models.MessageEnvelope) error {
	f.published = append(f.published, topic)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestEngine_Process_DuplicateSkipsDispatch(t *testing.T) {
	gate := &fakeGate{duplicates: map[string]bool{"evt-1": true}}
	repo := &fakeRepository{active: &workflow.Workflow{Rules: []workflow.Rule{{ID: "r1", ActionType: workflow.ActionKafka}}}}
	dispatcher := &fakeDispatcher{}

	e := New(gate, repo, condition.NewEvaluator(), dispatcher, nil, logger.NopLogger())

	err := e.Process(context.Background(), models.IncomingEvent{EventID: "evt-1", EventType: "order.created", Source: "orders"})
	require.NoError(t, err)
	assert.Empty(t, dispatcher.calls)
}

func TestEngine_Process_NoMatchingWorkflowIsNotAnError(t *testing.T) {
	gate := &fakeGate{duplicates: map[string]bool{}}
	repo := &fakeRepository{active: nil}
	dispatcher := &fakeDispatcher{}

	e := New(gate, repo, condition.NewEvaluator(), dispatcher, nil, logger.NopLogger())

	err := e.Process(context.Background(), models.IncomingEvent{EventID: "evt-2", EventType: "order.created", Source: "orders"})
	require.NoError(t, err)
	assert.Empty(t, dispatcher.calls)
}

func TestEngine_Process_EvaluatesConditionPerRule(t *testing.T) {
	gate := &fakeGate{duplicates: map[string]bool{}}
	repo := &fakeRepository{active: &workflow.Workflow{Rules: []workflow.Rule{
		{ID: "matches", Priority: 0, Condition: `status == "paid"`, ActionType: workflow.ActionKafka},
		{ID: "skipped", Priority: 1, Condition: `status == "refunded"`, ActionType: workflow.ActionKafka},
	}}}
	dispatcher := &fakeDispatcher{}

	e := New(gate, repo, condition.NewEvaluator(), dispatcher, nil, logger.NopLogger())

	err := e.Process(context.Background(), models.IncomingEvent{
		EventID:   "evt-3",
		EventType: "order.created",
		Source:    "orders",
		Payload:   map[string]interface{}{"status": "paid"},
	})
	require.NoError(t, err)
	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, "matches", dispatcher.calls[0].rule.ID)
}

func TestCurrentRetryCount(t *testing.T) {
	assert.Equal(t, 0, currentRetryCount(nil))
	assert.Equal(t, 0, currentRetryCount(map[string]interface{}{}))
	assert.Equal(t, 2, currentRetryCount(map[string]interface{}{constants.RetryCountField: 2}))
	assert.Equal(t, 2, currentRetryCount(map[string]interface{}{constants.RetryCountField: float64(2)}))
}

func TestEngine_Process_DispatchFailureEnqueuesDLQ(t *testing.T) {
	gate := &fakeGate{duplicates: map[string]bool{}}
	repo := &fakeRepository{active: &workflow.Workflow{Rules: []workflow.Rule{
		{ID: "r1", ActionType: workflow.ActionKafka},
	}}}
	dispatcher := &fakeDispatcher{failFor: map[string]error{"r1": errors.New("webhook target unreachable")}}
	producer := &fakeProducer{}
	dlqService := dlq.NewService(producer, config.DLQConfig{MaxRetries: 3, BaseDelayMs: 5000}, config.TopicsConfig{DLQ: "eventide.dlq"}, logger.NopLogger())

	e := New(gate, repo, condition.NewEvaluator(), dispatcher, dlqService, logger.NopLogger())

	err := e.Process(context.Background(), models.IncomingEvent{EventID: "evt-5", EventType: "order.created", Source: "orders"})
	require.NoError(t, err)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "eventide.dlq", producer.published[0])
}

func TestEngine_Process_DedupErrorProceedsOpen(t *testing.T) {
	gate := &fakeGate{err: errors.New("redis unavailable")}
	repo := &fakeRepository{active: nil}
	dispatcher := &fakeDispatcher{}

	e := New(gate, repo, condition.NewEvaluator(), dispatcher, nil, logger.NopLogger())

	err := e.Process(context.Background(), models.IncomingEvent{EventID: "evt-4", EventType: "order.created", Source: "orders"})
	require.NoError(t, err)
}
