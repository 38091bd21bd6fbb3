// Package rejection derives and persists which blacklist rules caused a
// transaction rejection.
package rejection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/card"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// Recorder writes rejection attributions. Attribution is best-effort
// audit data; failures are logged and never propagate into the
// transaction-creation flow.
type Recorder struct {
	rules rulesSource
	store domain.RejectionStore
	hook  func(count int)
}

type rulesSource interface {
	GetActiveRules(ctx context.Context) ([]*domain.Rule, error)
}

// NewRecorder creates a rejection recorder. hook is optional and is
// invoked with the batch size after every successful write, for metrics.
func NewRecorder(rules rulesSource, store domain.RejectionStore, hook func(count int)) *Recorder {
	return &Recorder{rules: rules, store: store, hook: hook}
}

// RecordRejections persists one attribution per blacklist rule with a
// positive score impact among the applied rules. It is a no-op when the
// score is below the rejection threshold.
func (r *Recorder) RecordRejections(ctx context.Context, in *domain.TransactionInput, result *domain.ScoreResult, transactionID int64) {
	if result.Score < 0.7 {
		return
	}

	activeRules, err := r.rules.GetActiveRules(ctx)
	if err != nil {
		slog.Error("failed to load rules for rejection attribution", "transaction_id", transactionID, "error", err)
		return
	}

	byID := make(map[int64]*domain.Rule, len(activeRules))
	for _, rule := range activeRules {
		byID[rule.ID] = rule
	}

	now := time.Now().UTC()
	var rejections []*domain.RejectionAttribution
	for _, ruleID := range result.AppliedRules {
		rule, ok := byID[ruleID]
		if !ok {
			continue
		}
		if !rule.Type.Blacklist() || rule.ScoreImpact <= 0 {
			continue
		}
		rejections = append(rejections, &domain.RejectionAttribution{
			RuleID:            rule.ID,
			TransactionID:     transactionID,
			RuleType:          rule.Type,
			RejectionReason:   rejectionReason(rule, in),
			FraudScore:        result.Score,
			TransactionAmount: in.Amount,
			CustomerEmail:     in.CustomerEmail,
			CardType:          in.CardType,
			RejectedAt:        now,
		})
	}

	if len(rejections) == 0 {
		return
	}

	if err := r.store.CreateRejections(ctx, rejections); err != nil {
		slog.Error("failed to record rule rejections", "transaction_id", transactionID, "error", err)
		return
	}
	if r.hook != nil {
		r.hook(len(rejections))
	}
	slog.Info("recorded rule rejections", "transaction_id", transactionID, "count", len(rejections))
}

// rejectionReason builds the human-readable attribution reason for one
// matched blacklist rule.
func rejectionReason(rule *domain.Rule, in *domain.TransactionInput) string {
	switch p := rule.Payload.(type) {
	case domain.BlockedFranchisePayload:
		return fmt.Sprintf("Blocked franchise: %s", p.Franchise)
	case domain.SuspiciousDomainPayload:
		return fmt.Sprintf("Suspicious domain: %s", p.Domain)
	case domain.BlockedCardPayload:
		return fmt.Sprintf("Blocked card: ****%s", card.LastFour(in.CardNumber))
	default:
		return "Fraud rule triggered"
	}
}
