package admin

import (
	"context"
	"fmt"

	"eventide/internal/condition"
	"eventide/internal/constants"
	"eventide/internal/dedup"
	"eventide/internal/engine"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	pkgerrors "eventide/pkg/errors"
	"eventide/pkg/models"
)

// auditor is the workflow-change recording port. AuditLogger is the only
// production implementation; the interface exists so Service can be tested
// without a database.
type auditor interface {
	logCreate(ctx context.Context, wf *workflow.Workflow, changedBy string)
	logUpdate(ctx context.Context, before, after *workflow.Workflow, changedBy string)
	logDelete(ctx context.Context, wf *workflow.Workflow, changedBy string)
}

// Service is the administrative surface over workflow CRUD plus the
// synchronous event submission endpoint.
type Service struct {
	repo      workflow.Repository
	evaluator *condition.Evaluator
	engine    *engine.Engine
	audit     auditor
	dedupRepo dedup.Repository
	logger    logger.Logger
}

func NewService(repo workflow.Repository, evaluator *condition.Evaluator, eng *engine.Engine, audit auditor, dedupRepo dedup.Repository, log logger.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, engine: eng, audit: audit, dedupRepo: dedupRepo, logger: log}
}

func (s *Service) CreateWorkflow(ctx context.Context, req workflow.CreateWorkflowRequest, changedBy string) (*workflow.Workflow, error) {
	if err := s.validateRules(req.Rules); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = workflow.StatusActive
	}

	wf := &workflow.Workflow{
		Name:        req.Name,
		Description: req.Description,
		EventType:   req.EventType,
		Source:      req.Source,
		Status:      status,
	}
	for _, r := range req.Rules {
		wf.Rules = append(wf.Rules, workflow.Rule{
			Priority:     r.Priority,
			Condition:    r.Condition,
			ActionType:   r.ActionType,
			ActionConfig: r.ActionConfig,
		})
	}

	if err := s.repo.Create(ctx, wf); err != nil {
		return nil, err
	}

	s.audit.logCreate(ctx, wf, changedBy)
	return wf, nil
}

func (s *Service) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	return s.repo.List(ctx)
}

func (s *Service) UpdateWorkflow(ctx context.Context, id string, req workflow.UpdateWorkflowRequest, changedBy string) (*workflow.Workflow, error) {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	after, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.audit.logUpdate(ctx, before, after, changedBy)
	return after, nil
}

func (s *Service) DeleteWorkflow(ctx context.Context, id string, changedBy string) error {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.logDelete(ctx, before, changedBy)
	return nil
}

// SubmitEvent runs an event through the choreography engine synchronously,
// bypassing the bus. Useful for operator-triggered replays and smoke tests.
func (s *Service) SubmitEvent(ctx context.Context, event models.IncomingEvent) error {
	return s.engine.Process(ctx, event)
}

// DedupCacheSize reports how many dedup keys are currently tracked under
// prefix, defaulting to the standard dedup key prefix when blank. Operator
// diagnostics only; not on the choreography hot path.
func (s *Service) DedupCacheSize(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		prefix = constants.CacheKeyPrefixDedup
	}
	return s.dedupRepo.GetCacheSize(ctx, prefix)
}

func (s *Service) validateRules(rules []workflow.CreateRule) error {
	for i, r := range rules {
		if err := s.evaluator.ValidateExpression(r.Condition); err != nil {
			return pkgerrors.ErrValidation.WithCause(fmt.Errorf("rule %d: invalid condition %q: %w", i, r.Condition, err))
		}
		switch r.ActionType {
		case workflow.ActionKafka, workflow.ActionWebhook, workflow.ActionHTTP:
		default:
			return pkgerrors.ErrValidation.WithCause(fmt.Errorf("rule %d: unsupported action type %q", i, r.ActionType))
		}
	}
	return nil
}
