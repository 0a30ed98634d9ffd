package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

const defaultAuditLimit = 100

// AuditRepository persists the calendar activity trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit row.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs
	(id, actor_id, actor_role, action, resource, resource_id, calendar_id, txn_id, old_values, new_values, ip_address, user_agent, created_at)
	VALUES (:id, :actor_id, :actor_role, :action, :resource, :resource_id, :calendar_id, :txn_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return classifyPostgres("create audit log", err)
	}
	return nil
}

// List returns the latest audit rows matching the filter.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT id, actor_id, actor_role, action, resource, resource_id, calendar_id, txn_id,
       old_values, new_values, ip_address, user_agent, created_at FROM audit_logs`)

	conditions := make([]string, 0, 2)
	if filter.CalendarID != "" {
		args = append(args, filter.CalendarID)
		conditions = append(conditions, fmt.Sprintf("calendar_id = $%d", len(args)))
	}
	if filter.ResourceID != "" {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	limit := filter.Limit
	if limit <= 0 || limit > defaultAuditLimit {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args)))

	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, builder.String(), args...); err != nil {
		return nil, classifyPostgres("list audit logs", err)
	}
	return logs, nil
}
