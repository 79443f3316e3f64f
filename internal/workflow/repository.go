package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "eventide/pkg/errors"
)

// Repository is the workflow/rule persistence port (C7). FindActive is the
// hot path the choreography engine calls on every event; the rest back the
// administrative CRUD surface.
type Repository interface {
	Create(ctx context.Context, wf *Workflow) error
	Get(ctx context.Context, id string) (*Workflow, error)
	List(ctx context.Context) ([]Workflow, error)
	Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*Workflow, error)
	Delete(ctx context.Context, id string) error
	FindActive(ctx context.Context, eventType, source string) (*Workflow, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, wf *Workflow) error {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	if wf.Status == "" {
		wf.Status = StatusActive
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, event_type, source, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at
	`, wf.ID, wf.Name, wf.Description, wf.EventType, wf.Source, wf.Status)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", fmt.Sprintf("workflow for eventType=%s source=%s already exists", wf.EventType, wf.Source))
		}
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	for i := range wf.Rules {
		rule := &wf.Rules[i]
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		rule.WorkflowID = wf.ID
		if err := insertRule(ctx, tx, rule); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertRule(ctx context.Context, tx *sql.Tx, rule *Rule) error {
	actionConfig, err := json.Marshal(rule.ActionConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal action config: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_rules (id, workflow_id, priority, condition, action_type, action_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, rule.ID, rule.WorkflowID, rule.Priority, rule.Condition, rule.ActionType, actionConfig)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, event_type, source, status, created_at, updated_at
		FROM workflows WHERE id = $1
	`, id)

	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("workflow %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	rules, err := r.loadRules(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	wf.Rules = rules
	return wf, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, event_type, source, status, created_at, updated_at
		FROM workflows ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, *wf)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*Workflow, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET name = $1, description = $2, status = $3, updated_at = now()
		WHERE id = $4
	`, existing.Name, existing.Description, existing.Status, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, pkgerrors.ErrNotFound
	}

	return r.Get(ctx, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

// FindActive is the engine's hot-path lookup: the unique ACTIVE workflow for
// (eventType, source), rules pre-sorted priority ascending, ties broken by
// creation order.
func (r *PostgresRepository) FindActive(ctx context.Context, eventType, source string) (*Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, event_type, source, status, created_at, updated_at
		FROM workflows
		WHERE event_type = $1 AND source = $2 AND status = $3
	`, eventType, source, StatusActive)

	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active workflow: %w", err)
	}

	rules, err := r.loadRules(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	wf.Rules = rules
	return wf, nil
}

func (r *PostgresRepository) loadRules(ctx context.Context, workflowID string) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, priority, condition, action_type, action_config, created_at
		FROM workflow_rules
		WHERE workflow_id = $1
		ORDER BY priority ASC, created_at ASC, id ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var actionConfig []byte
		if err := rows.Scan(&rule.ID, &rule.WorkflowID, &rule.Priority, &rule.Condition,
			&rule.ActionType, &actionConfig, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if len(actionConfig) > 0 {
			if err := json.Unmarshal(actionConfig, &rule.ActionConfig); err != nil {
				return nil, fmt.Errorf("failed to unmarshal action config: %w", err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var wf Workflow
	var description sql.NullString
	if err := row.Scan(&wf.ID, &wf.Name, &description, &wf.EventType, &wf.Source,
		&wf.Status, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	wf.Description = description.String
	return &wf, nil
}
