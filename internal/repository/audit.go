package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// Record appends one audit entry.
func (r *SQLRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (
			actor, action, entity_type, entity_id,
			old_values, new_values, reason, ip_address, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.insertReturningID(ctx, query,
		entry.Actor, entry.Action, entry.EntityType, entry.EntityID,
		entry.OldValues, entry.NewValues, entry.Reason, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	entry.ID = id
	return nil
}

// ListAuditEntries returns audit entries matching the filter plus the
// total count, newest first.
func (r *SQLRepository) ListAuditEntries(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int64, error) {
	where := " WHERE 1=1"
	var args []any

	if f.Actor != "" {
		where += " AND actor = ?"
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		where += " AND action = ?"
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		where += " AND entity_type = ?"
		args = append(args, f.EntityType)
	}
	if f.EntityID != 0 {
		where += " AND entity_id = ?"
		args = append(args, f.EntityID)
	}
	if f.DateFrom != nil {
		where += " AND created_at >= ?"
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		where += " AND created_at <= ?"
		args = append(args, *f.DateTo)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM audit_logs"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	query := `
		SELECT id, actor, action, entity_type, entity_id,
		       old_values, new_values, reason, ip_address, created_at
		FROM audit_logs
	` + where + " ORDER BY created_at DESC"
	query, args = paginate(query, args, f.Page, f.Limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var oldValues, newValues, reason, ip sql.NullString

		if err := rows.Scan(
			&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID,
			&oldValues, &newValues, &reason, &ip, &entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}

		entry.OldValues = oldValues.String
		entry.NewValues = newValues.String
		entry.Reason = reason.String
		entry.IPAddress = ip.String
		entries = append(entries, &entry)
	}
	return entries, total, rows.Err()
}
