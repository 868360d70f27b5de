// audit_repository.go implements AuditRepository, providing database queries for
// writing and retrieving audit log entries for membership- and context-affecting
// actions (org switches, invite lifecycle, role changes).
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/member-portal/member-portal/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	UserID         *string
	OrganizationID *string
	Action         *string
	StartDate      *time.Time
	EndDate        *time.Time
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()

	var metadataJSON []byte
	var err error
	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, user_id, organization_id, action, resource_type, resource_id, metadata, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.OrganizationID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		metadataJSON,
		entry.IPAddress,
		entry.CreatedAt,
	)

	return err
}

// ListAuditLogs retrieves audit logs matching the filters, newest first.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, organization_id, action, resource_type, resource_id, metadata, ip_address, created_at
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	argIdx := 1

	addFilter := func(clause string, value interface{}) {
		query += fmt.Sprintf(" AND %s = $%d", clause, argIdx)
		args = append(args, value)
		argIdx++
	}

	if filters.UserID != nil {
		addFilter("user_id", *filters.UserID)
	}
	if filters.OrganizationID != nil {
		addFilter("organization_id", *filters.OrganizationID)
	}
	if filters.Action != nil {
		addFilter("action", *filters.Action)
	}
	if filters.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filters.StartDate)
		argIdx++
	}
	if filters.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filters.EndDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		entry := &models.AuditLog{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.OrganizationID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&metadataJSON,
			&entry.IPAddress,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return logs, nil
}
