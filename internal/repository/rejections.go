package repository

import (
	"context"
	"fmt"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// CreateRejections inserts all attributions in one batch inside a
// single transaction.
func (r *SQLRepository) CreateRejections(ctx context.Context, rejections []*domain.RejectionAttribution) error {
	if len(rejections) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rejection batch: %w", err)
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO fraud_rule_rejections (
			rule_id, transaction_id, rule_type, rejection_reason,
			fraud_score, transaction_amount, customer_email, card_type, rejected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare rejection insert: %w", err)
	}
	defer stmt.Close()

	for _, rej := range rejections {
		if _, err := stmt.ExecContext(ctx,
			rej.RuleID, rej.TransactionID, string(rej.RuleType), rej.RejectionReason,
			rej.FraudScore, rej.TransactionAmount, rej.CustomerEmail, rej.CardType, rej.RejectedAt,
		); err != nil {
			return fmt.Errorf("failed to insert rejection: %w", err)
		}
	}

	return dbTx.Commit()
}

// RejectionStats aggregates rejection attributions by rule type and by
// rule.
func (r *SQLRepository) RejectionStats(ctx context.Context, f domain.RejectionFilter) (*domain.RejectionStats, error) {
	where := " WHERE 1=1"
	var args []any

	if f.RuleType != "" {
		where += " AND rule_type = ?"
		args = append(args, string(f.RuleType))
	}
	if f.RuleID != 0 {
		where += " AND rule_id = ?"
		args = append(args, f.RuleID)
	}
	if f.DateFrom != nil {
		where += " AND rejected_at >= ?"
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		where += " AND rejected_at <= ?"
		args = append(args, *f.DateTo)
	}

	stats := &domain.RejectionStats{}

	if err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT COUNT(*) FROM fraud_rule_rejections"+where), args...,
	).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count rejections: %w", err)
	}

	byType := `
		SELECT rule_type, COUNT(*), COALESCE(SUM(transaction_amount), 0), COALESCE(AVG(fraud_score), 0)
		FROM fraud_rule_rejections
	` + where + " GROUP BY rule_type ORDER BY COUNT(*) DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(byType), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rejections by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.RejectionTypeCount
		if err := rows.Scan(&c.RuleType, &c.Count, &c.TotalAmount, &c.AvgFraudScore); err != nil {
			return nil, err
		}
		stats.ByType = append(stats.ByType, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byRule := `
		SELECT rule_id, rule_type, COUNT(*), COALESCE(SUM(transaction_amount), 0)
		FROM fraud_rule_rejections
	` + where + " GROUP BY rule_id, rule_type ORDER BY COUNT(*) DESC"

	ruleRows, err := r.db.QueryContext(ctx, r.rebind(byRule), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rejections by rule: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var c domain.RejectionRuleCount
		if err := ruleRows.Scan(&c.RuleID, &c.RuleType, &c.Count, &c.TotalAmount); err != nil {
			return nil, err
		}
		stats.ByRule = append(stats.ByRule, c)
	}
	return stats, ruleRows.Err()
}
