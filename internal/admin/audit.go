package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"eventide/internal/logger"
	"eventide/internal/workflow"
)

// AuditLogger records workflow lifecycle changes to workflow_audit_log.
// Failures are logged, never raised - an audit write must not block an
// operator's CRUD request.
type AuditLogger struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAuditLogger(db *sql.DB, log logger.Logger) *AuditLogger {
	return &AuditLogger{db: db, logger: log}
}

func (a *AuditLogger) logCreate(ctx context.Context, wf *workflow.Workflow, changedBy string) {
	a.write(ctx, wf.ID, "CREATE", changedBy, wf)
}

func (a *AuditLogger) logUpdate(ctx context.Context, before, after *workflow.Workflow, changedBy string) {
	a.write(ctx, after.ID, "UPDATE", changedBy, map[string]interface{}{"before": before, "after": after})
}

func (a *AuditLogger) logDelete(ctx context.Context, wf *workflow.Workflow, changedBy string) {
	a.write(ctx, wf.ID, "DELETE", changedBy, wf)
}

func (a *AuditLogger) write(ctx context.Context, workflowID, action, changedBy string, detail interface{}) {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		a.logger.ErrorwCtx(ctx, "Failed to marshal audit detail", "error", err, "workflow_id", workflowID)
		return
	}

	query := `
		INSERT INTO workflow_audit_log (id, workflow_id, action, changed_by, changed_at, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = a.db.ExecContext(ctx, query, uuid.New().String(), workflowID, action, changedBy, time.Now(), detailJSON)
	if err != nil {
		a.logger.ErrorwCtx(ctx, "Failed to write audit log entry", "error", err, "workflow_id", workflowID, "action", action)
	}
}
