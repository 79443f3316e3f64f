package integration

import (
	"time"

	"eventide/internal/config"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/models"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestDeduplicationConfig() config.DeduplicationConfig {
	return config.DeduplicationConfig{
		Prefix:     "eventide:dedup:",
		TTLSeconds: 300,
		OnKVError:  "allow",
	}
}

func createTestDLQConfig() config.DLQConfig {
	return config.DLQConfig{
		MaxRetries:  3,
		BaseDelayMs: 5000,
	}
}

func createTestTopicsConfig() config.TopicsConfig {
	return config.TopicsConfig{
		Events:  "eventide.events",
		DLQ:     "eventide.dlq",
		DLQDead: "eventide.dlq.dead",
	}
}

func createTestWorkflow(eventType, source string, rules ...workflow.Rule) *workflow.Workflow {
	return &workflow.Workflow{
		Name:      "test_workflow_" + eventType,
		EventType: eventType,
		Source:    source,
		Status:    workflow.StatusActive,
		Rules:     rules,
	}
}

func createTestRule(priority int, condition string, actionType workflow.ActionType, actionConfig map[string]interface{}) workflow.Rule {
	return workflow.Rule{
		Priority:     priority,
		Condition:    condition,
		ActionType:   actionType,
		ActionConfig: actionConfig,
	}
}

func createTestEvent(eventID, eventType, source string, payload map[string]interface{}) models.IncomingEvent {
	return models.IncomingEvent{
		EventID:   eventID,
		EventType: eventType,
		Source:    source,
		Payload:   payload,
	}
}
