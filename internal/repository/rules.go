package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

const ruleColumns = `id, rule_type, name, description, value, score_impact, is_active,
	   valid_from, valid_until, reason, created_by, updated_by, created_at, updated_at`

// ListActiveRules returns every active rule whose validity window
// contains the given day.
func (r *SQLRepository) ListActiveRules(ctx context.Context, day time.Time) ([]*domain.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM fraud_rules
		WHERE is_active = 1
		  AND (valid_from IS NULL OR valid_from <= ?)
		  AND (valid_until IS NULL OR valid_until >= ?)
		ORDER BY id
	`

	d := day.Format(domain.DateLayout)
	rows, err := r.db.QueryContext(ctx, r.rebind(query), d, d)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// ListRules returns rules matching the filter plus the total count.
func (r *SQLRepository) ListRules(ctx context.Context, f domain.RuleFilter) ([]*domain.Rule, int64, error) {
	where := " WHERE 1=1"
	var args []any

	if f.Type != "" {
		where += " AND rule_type = ?"
		args = append(args, string(f.Type))
	}
	if f.IsActive != nil {
		where += " AND is_active = ?"
		args = append(args, boolToInt(*f.IsActive))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM fraud_rules"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	query := "SELECT " + ruleColumns + " FROM fraud_rules" + where + " ORDER BY created_at DESC"
	query, args = paginate(query, args, f.Page, f.Limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// GetRule retrieves one rule by id.
func (r *SQLRepository) GetRule(ctx context.Context, id int64) (*domain.Rule, error) {
	query := "SELECT " + ruleColumns + " FROM fraud_rules WHERE id = ?"

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// CreateRule inserts a rule and assigns its id.
func (r *SQLRepository) CreateRule(ctx context.Context, rule *domain.Rule) error {
	query := `
		INSERT INTO fraud_rules (
			rule_type, name, description, value, score_impact, is_active,
			valid_from, valid_until, reason, created_by, updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.insertReturningID(ctx, query,
		string(rule.Type), rule.Name, rule.Description, rule.Value,
		rule.ScoreImpact, boolToInt(rule.IsActive),
		nullableDay(rule.ValidFrom), nullableDay(rule.ValidUntil),
		rule.Reason, rule.CreatedBy, rule.UpdatedBy,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	rule.ID = id
	return nil
}

// UpdateRule persists changes to an existing rule.
func (r *SQLRepository) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	query := `
		UPDATE fraud_rules
		SET rule_type = ?, name = ?, description = ?, value = ?, score_impact = ?,
		    is_active = ?, valid_from = ?, valid_until = ?, reason = ?,
		    updated_by = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(rule.Type), rule.Name, rule.Description, rule.Value,
		rule.ScoreImpact, boolToInt(rule.IsActive),
		nullableDay(rule.ValidFrom), nullableDay(rule.ValidUntil),
		rule.Reason, rule.UpdatedBy, rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRow(result)
}

// DeleteRule removes a rule permanently.
func (r *SQLRepository) DeleteRule(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.rebind("DELETE FROM fraud_rules WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var description, reason, createdBy, updatedBy sql.NullString
	var validFrom, validUntil sql.NullString
	var isActive int

	err := row.Scan(
		&rule.ID, &rule.Type, &rule.Name, &description, &rule.Value,
		&rule.ScoreImpact, &isActive,
		&validFrom, &validUntil, &reason,
		&createdBy, &updatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Reason = reason.String
	rule.CreatedBy = createdBy.String
	rule.UpdatedBy = updatedBy.String
	rule.IsActive = isActive == 1
	rule.ValidFrom = scanDay(validFrom)
	rule.ValidUntil = scanDay(validUntil)

	parseRulePayload(&rule)
	return &rule, nil
}

func scanRules(rows *sql.Rows) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func paginate(query string, args []any, page, limit int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	if page <= 0 {
		page = 1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)
	return query, args
}
