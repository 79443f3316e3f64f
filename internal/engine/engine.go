package engine

import (
	"context"

	"eventide/internal/condition"
	"eventide/internal/constants"
	"eventide/internal/dedup"
	"eventide/internal/dispatch"
	"eventide/internal/dlq"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/models"
)

// Engine implements the choreography algorithm: dedup, match, evaluate,
// dispatch, DLQ-on-failure. Process never returns a business error - every
// failure is logged and/or enqueued to the DLQ, and the engine moves on to
// the next rule or the next event regardless.
type Engine struct {
	dedup      dedup.Gate
	workflows  workflow.Repository
	evaluator  *condition.Evaluator
	dispatcher dispatch.Dispatcher
	dlq        *dlq.Service
	logger     logger.Logger
}

func New(
	gate dedup.Gate,
	workflows workflow.Repository,
	evaluator *condition.Evaluator,
	dispatcher dispatch.Dispatcher,
	dlqService *dlq.Service,
	log logger.Logger,
) *Engine {
	return &Engine{
		dedup:      gate,
		workflows:  workflows,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		dlq:        dlqService,
		logger:     log,
	}
}

// Process runs one event through the full choreography algorithm.
func (e *Engine) Process(ctx context.Context, event models.IncomingEvent) error {
	isDuplicate, err := e.dedup.IsDuplicate(ctx, event.EventID)
	if err != nil {
		e.logger.ErrorwCtx(ctx, "Dedup check failed, proceeding with processing", "error", err, "event_id", event.EventID)
	}
	if isDuplicate {
		e.logger.InfowCtx(ctx, "Duplicate event skipped", "event_id", event.EventID)
		return nil
	}

	wf, err := e.workflows.FindActive(ctx, event.EventType, event.Source)
	if err != nil {
		e.logger.ErrorwCtx(ctx, "Workflow lookup failed", "error", err, "event_type", event.EventType, "source", event.Source)
		return nil
	}
	if wf == nil {
		e.logger.DebugwCtx(ctx, "No active workflow matched", "event_type", event.EventType, "source", event.Source)
		return nil
	}

	for _, rule := range wf.Rules {
		e.processRule(ctx, event, rule)
	}
	return nil
}

func (e *Engine) processRule(ctx context.Context, event models.IncomingEvent, rule workflow.Rule) {
	if !e.evaluator.Evaluate(rule.Condition, event.Payload) {
		return
	}

	if err := e.dispatcher.Dispatch(ctx, event, rule); err != nil {
		retryCount := currentRetryCount(event.Payload)
		e.logger.WarnwCtx(ctx, "Rule dispatch failed, enqueuing to DLQ",
			"error", err,
			"event_id", event.EventID,
			"rule_id", rule.ID,
			"retry_count", retryCount,
		)
		if dlqErr := e.dlq.EnqueueFailure(ctx, event, err, retryCount); dlqErr != nil {
			e.logger.ErrorwCtx(ctx, "Failed to enqueue DLQ entry", "error", dlqErr, "event_id", event.EventID)
		}
	}
}

// currentRetryCount reads the reserved "_retryCount" payload field stamped
// by the retry loop on republish, defaulting to 0 for a first attempt.
func currentRetryCount(payload map[string]interface{}) int {
	raw, ok := payload[constants.RetryCountField]
	if !ok {
		return 0
	}
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
