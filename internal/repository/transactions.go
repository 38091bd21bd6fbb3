package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

const transactionColumns = `id, transaction_id, amount, currency, merchant_id, merchant_name,
	   card_number, last_four_digits, card_type, operation_type, customer_email,
	   country, description, fraud_score, fraud_reasons, risk_level, applied_rules,
	   status, reviewed_by, reviewed_at, review_reason, processed_at, created_at`

// CreateTransaction inserts a scored transaction and assigns its id.
func (r *SQLRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(tx.FraudReasons)
	appliedRules, _ := json.Marshal(tx.AppliedRules)

	query := `
		INSERT INTO transactions (
			transaction_id, amount, currency, merchant_id, merchant_name,
			card_number, last_four_digits, card_type, operation_type, customer_email,
			country, description, fraud_score, fraud_reasons, risk_level, applied_rules,
			status, processed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.insertReturningID(ctx, query,
		tx.TransactionID, tx.Amount, tx.Currency, tx.MerchantID, tx.MerchantName,
		tx.CardHash, tx.LastFour, tx.CardType, string(tx.OperationType), tx.CustomerEmail,
		tx.Country, tx.Description, tx.FraudScore, string(reasons), string(tx.RiskLevel),
		string(appliedRules), string(tx.Status), tx.ProcessedAt, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	tx.ID = id
	return nil
}

// GetTransaction retrieves a transaction by record id.
func (r *SQLRepository) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE id = ?"

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// GetTransactionByRef retrieves a transaction by its external
// identifier.
func (r *SQLRepository) GetTransactionByRef(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE transaction_id = ?"

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns transactions matching the filter plus the
// total count, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	where := " WHERE 1=1"
	var args []any

	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.RiskLevel != "" {
		where += " AND risk_level = ?"
		args = append(args, string(f.RiskLevel))
	}
	if f.CardType != "" {
		where += " AND card_type = ?"
		args = append(args, f.CardType)
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
	if err := r.db.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM transactions"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := "SELECT " + transactionColumns + " FROM transactions" + where + " ORDER BY created_at DESC"
	query, args = paginate(query, args, f.Page, f.Limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, total, rows.Err()
}

// UpdateReview persists a manual review decision.
func (r *SQLRepository) UpdateReview(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = ?, reviewed_by = ?, reviewed_at = ?, review_reason = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(tx.Status), tx.ReviewedBy, tx.ReviewedAt, tx.ReviewReason, tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction review: %w", err)
	}
	return requireRow(result)
}

// TransactionStats returns aggregate counts for dashboards.
func (r *SQLRepository) TransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_level = 'low' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_level = 'medium' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN risk_level = 'high' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' AND risk_level = 'high' THEN 1 ELSE 0 END), 0)
		FROM transactions
	`

	var stats domain.TransactionStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Approved, &stats.Pending, &stats.Rejected,
		&stats.LowRisk, &stats.MediumRisk, &stats.HighRisk, &stats.PendingHighRisk,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction stats: %w", err)
	}
	return &stats, nil
}

// CountByEmailSince counts transactions for an email since the given
// time.
func (r *SQLRepository) CountByEmailSince(ctx context.Context, email string, since time.Time) (int64, error) {
	query := "SELECT COUNT(*) FROM transactions WHERE customer_email = ? AND created_at >= ?"

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), email, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SumAmountByEmailSince sums transaction amounts for an email since the
// given time.
func (r *SQLRepository) SumAmountByEmailSince(ctx context.Context, email string, since time.Time) (float64, error) {
	query := "SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE customer_email = ? AND created_at >= ?"

	var sum float64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), email, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum transaction amounts: %w", err)
	}
	return sum, nil
}

// HasDuplicate reports whether an identical-amount transaction exists
// for the email since the given time.
func (r *SQLRepository) HasDuplicate(ctx context.Context, email string, amount float64, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE customer_email = ? AND amount = ? AND created_at >= ?
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, r.rebind(query), email, amount, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check duplicate transaction: %w", err)
	}
	return exists, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var country, description, reviewedBy, reviewReason sql.NullString
	var reviewedAt sql.NullTime
	var reasons, appliedRules string

	err := row.Scan(
		&tx.ID, &tx.TransactionID, &tx.Amount, &tx.Currency, &tx.MerchantID, &tx.MerchantName,
		&tx.CardHash, &tx.LastFour, &tx.CardType, &tx.OperationType, &tx.CustomerEmail,
		&country, &description, &tx.FraudScore, &reasons, &tx.RiskLevel, &appliedRules,
		&tx.Status, &reviewedBy, &reviewedAt, &reviewReason, &tx.ProcessedAt, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Country = country.String
	tx.Description = description.String
	tx.ReviewedBy = reviewedBy.String
	tx.ReviewReason = reviewReason.String
	if reviewedAt.Valid {
		tx.ReviewedAt = &reviewedAt.Time
	}

	json.Unmarshal([]byte(reasons), &tx.FraudReasons)
	json.Unmarshal([]byte(appliedRules), &tx.AppliedRules)

	return &tx, nil
}
