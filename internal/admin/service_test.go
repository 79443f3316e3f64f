package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventide/internal/condition"
	"eventide/internal/config"
	"eventide/internal/dedup"
	"eventide/internal/dispatch"
	"eventide/internal/dlq"
	"eventide/internal/engine"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/models"
)

type fakeRepo struct {
	workflow.Repository
	created []*workflow.Workflow
	get     *workflow.Workflow
	getErr  error
	updated *workflow.Workflow
	updErr  error
	delErr  error
}

func (f *fakeRepo) Create(_ context.Context, wf *workflow.Workflow) error {
	wf.ID = "wf-1"
	f.created = append(f.created, wf)
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*workflow.Workflow, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.get, nil
}

func (f *fakeRepo) Update(_ context.Context, id string, req workflow.UpdateWorkflowRequest) (*workflow.Workflow, error) {
	if f.updErr != nil {
		return nil, f.updErr
	}
	return f.updated, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	return f.delErr
}

type fakeAuditor struct {
	creates int
	updates int
	deletes int
}

func (f *fakeAuditor) logCreate(_ context.Context, _ *workflow.Workflow, _ string) { f.creates++ }
func (f *fakeAuditor) logUpdate(_ context.Context, _, _ *workflow.Workflow, _ string) {
	f.updates++
}
func (f *fakeAuditor) logDelete(_ context.Context, _ *workflow.Workflow, _ string) { f.deletes++ }

type fakeDedupRepo struct {
	dedup.Repository
	size    int
	sizeErr error
}

func (f *fakeDedupRepo) GetCacheSize(context.Context, string) (int, error) {
	return f.size, f.sizeErr
}

func newTestService(repo *fakeRepo, audit *fakeAuditor) *Service {
	log := logger.NopLogger()
	evaluator := condition.NewEvaluator()
	return NewService(repo, evaluator, &engine.Engine{}, audit, &fakeDedupRepo{}, log)
}

func TestService_CreateWorkflow_ValidRule(t *testing.T) {
	repo := &fakeRepo{}
	audit := &fakeAuditor{}
	svc := newTestService(repo, audit)

	req := workflow.CreateWorkflowRequest{
		Name:      "order-created",
		EventType: "order.created",
		Source:    "orders",
		Rules: []workflow.CreateRule{
			{Priority: 10, Condition: "payload.amount > 100", ActionType: workflow.ActionWebhook, ActionConfig: map[string]interface{}{"url": "https://example.com"}},
		},
	}

	wf, err := svc.CreateWorkflow(context.Background(), req, "alice")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, workflow.StatusActive, wf.Status)
	assert.Len(t, repo.created, 1)
	assert.Equal(t, 1, audit.creates)
}

func TestService_CreateWorkflow_InvalidConditionRejected(t *testing.T) {
	repo := &fakeRepo{}
	audit := &fakeAuditor{}
	svc := newTestService(repo, audit)

	req := workflow.CreateWorkflowRequest{
		Name:      "bad-rule",
		EventType: "order.created",
		Source:    "orders",
		Rules: []workflow.CreateRule{
			{Priority: 10, Condition: "payload.amount 100", ActionType: workflow.ActionWebhook},
		},
	}

	_, err := svc.CreateWorkflow(context.Background(), req, "alice")
	require.Error(t, err)
	assert.Empty(t, repo.created)
	assert.Equal(t, 0, audit.creates)
}

func TestService_CreateWorkflow_UnsupportedActionTypeRejected(t *testing.T) {
	repo := &fakeRepo{}
	audit := &fakeAuditor{}
	svc := newTestService(repo, audit)

	req := workflow.CreateWorkflowRequest{
		Name:      "bad-action",
		EventType: "order.created",
		Source:    "orders",
		Rules: []workflow.CreateRule{
			{Priority: 10, ActionType: workflow.ActionType("CARRIER_PIGEON")},
		},
	}

	_, err := svc.CreateWorkflow(context.Background(), req, "alice")
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestService_CreateWorkflow_DefaultsStatusToActive(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeAuditor{})

	wf, err := svc.CreateWorkflow(context.Background(), workflow.CreateWorkflowRequest{
		Name:      "no-status",
		EventType: "order.created",
		Source:    "orders",
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusActive, wf.Status)
}

func TestService_UpdateWorkflow_AuditsBeforeAndAfter(t *testing.T) {
	before := &workflow.Workflow{ID: "wf-1", Name: "old"}
	after := &workflow.Workflow{ID: "wf-1", Name: "new"}
	repo := &fakeRepo{get: before, updated: after}
	audit := &fakeAuditor{}
	svc := newTestService(repo, audit)

	name := "new"
	got, err := svc.UpdateWorkflow(context.Background(), "wf-1", workflow.UpdateWorkflowRequest{Name: &name}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, 1, audit.updates)
}

func TestService_UpdateWorkflow_GetFailurePreventsAudit(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("not found")}
	audit := &fakeAuditor{}
	svc := newTestService(repo, audit)

	_, err := svc.UpdateWorkflow(context.Background(), "wf-1", workflow.UpdateWorkflowRequest{}, "bob")
	require.Error(t, err)
	assert.Equal(t, 0, audit.updates)
}

func TestService_DeleteWorkflow_Audits(t *testing.T) {
	repo := &fakeRepo{get: &workflow.Workflow{ID: "wf-1"}}
	audit := &fakeAuditor{}
	svc := newTestService(repo, audit)

	err := svc.DeleteWorkflow(context.Background(), "wf-1", "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, audit.deletes)
}

func TestService_SubmitEvent_DelegatesToEngine(t *testing.T) {
	gate := &stubGate{}
	repo := &fakeRepo{}
	repoActive := &activeWorkflowRepo{fakeRepo: repo}
	dlqSvc := dlq.NewService(&stubProducer{}, config.DLQConfig{MaxRetries: 3, BaseDelayMs: 1000}, config.TopicsConfig{DLQ: "eventide.dlq"}, logger.NopLogger())
	dispatcher := dispatch.NewActionDispatcher(&stubProducer{}, &stubHTTPClient{}, logger.NopLogger())
	eng := engine.New(gate, repoActive, condition.NewEvaluator(), dispatcher, dlqSvc, logger.NopLogger())

	svc := NewService(repo, condition.NewEvaluator(), eng, &fakeAuditor{}, &fakeDedupRepo{}, logger.NopLogger())

	err := svc.SubmitEvent(context.Background(), models.IncomingEvent{
		EventID:   "evt-1",
		EventType: "order.created",
		Source:    "orders",
		Payload:   map[string]interface{}{},
	})
	require.NoError(t, err)
}

func TestService_DedupCacheSize_DefaultsPrefixWhenBlank(t *testing.T) {
	repo := &fakeRepo{}
	log := logger.NopLogger()
	svc := NewService(repo, condition.NewEvaluator(), &engine.Engine{}, &fakeAuditor{}, &fakeDedupRepo{size: 7}, log)

	size, err := svc.DedupCacheSize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, size)
}

type stubGate struct{}

func (s *stubGate) IsDuplicate(context.Context, string) (bool, error) { return false, nil }
func (s *stubGate) Clear(context.Context, string) error               { return nil }

type activeWorkflowRepo struct {
	*fakeRepo
}

func (a *activeWorkflowRepo) FindActive(context.Context, string, string) (*workflow.Workflow, error) {
	return nil, nil
}

type stubProducer struct{}

func (s *stubProducer) Publish(context.Context, string, models.MessageEnvelope) error { return nil }
func (s *stubProducer) Close() error                                                 { return nil }

type stubHTTPClient struct{}

func (s *stubHTTPClient) Post(context.Context, string, map[string]string, interface{}) error {
	return nil
}

func (s *stubHTTPClient) Request(context.Context, string, string, map[string]string, interface{}) error {
	return nil
}
