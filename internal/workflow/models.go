package workflow

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

type ActionType string

const (
	ActionKafka   ActionType = "KAFKA"
	ActionWebhook ActionType = "WEBHOOK"
	ActionHTTP    ActionType = "HTTP"
)

// Workflow matches one (eventType, source) pair to an ordered set of rules.
// Only ACTIVE workflows are candidates for the choreography engine.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	EventType   string    `json:"eventType"`
	Source      string    `json:"source"`
	Status      Status    `json:"status"`
	Rules       []Rule    `json:"rules"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Rule is one condition/action pair owned by a Workflow. Rules run in
// ascending priority order, ties broken by insertion order.
type Rule struct {
	ID           string                 `json:"id"`
	WorkflowID   string                 `json:"-"`
	Priority     int                    `json:"priority"`
	Condition    string                 `json:"condition,omitempty"`
	ActionType   ActionType             `json:"actionType"`
	ActionConfig map[string]interface{} `json:"actionConfig"`
	CreatedAt    time.Time              `json:"createdAt"`
}

type CreateWorkflowRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	EventType   string        `json:"eventType" binding:"required"`
	Source      string        `json:"source" binding:"required"`
	Status      Status        `json:"status"`
	Rules       []CreateRule  `json:"rules"`
}

type CreateRule struct {
	Priority     int                    `json:"priority"`
	Condition    string                 `json:"condition"`
	ActionType   ActionType             `json:"actionType" binding:"required"`
	ActionConfig map[string]interface{} `json:"actionConfig"`
}

type UpdateWorkflowRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *Status `json:"status"`
}
