// Package scoring implements the fraud scoring engine: rule evaluation
// with blacklist precedence, fixed heuristics over transaction history,
// and score normalization.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/card"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

var tracer = otel.Tracer("smaf-scoring")

// Reason strings appended to a score result, in evaluation order.
const (
	ReasonBlockedFranchise  = "Blocked franchise"
	ReasonSuspiciousDomain  = "Suspicious email domain"
	ReasonBlockedCard       = "Blocked card"
	ReasonWhitelistedEmail  = "Whitelisted email"
	ReasonWhitelistedCard   = "Whitelisted card"
	ReasonHighAmount        = "High amount"
	ReasonHighRiskCountry   = "High risk country"
	ReasonVelocity          = "Multiple transactions in a short time"
	ReasonAmountVelocity    = "High cumulative amount in a short time"
	ReasonDuplicate         = "Duplicate transaction"
	ReasonCalculationError  = "calculation error"
	reasonLowAmountTemplate = "Low amount for "
)

// Engine evaluates one transaction at a time against the cached rule
// set plus fixed heuristics. It is stateless apart from its injected
// collaborators and is safe for concurrent use.
type Engine struct {
	rules    rulesSource
	activity domain.ActivityQuery
	cfg      domain.ScoringConfig
}

type rulesSource interface {
	GetActiveRules(ctx context.Context) ([]*domain.Rule, error)
}

// NewEngine creates a scoring engine. All thresholds and windows come
// from cfg so they can be tuned without touching evaluation logic.
func NewEngine(rules rulesSource, activity domain.ActivityQuery, cfg domain.ScoringConfig) *Engine {
	return &Engine{
		rules:    rules,
		activity: activity,
		cfg:      cfg,
	}
}

// failSafeResult routes the transaction to manual review when scoring
// cannot complete. It is preferred over a hard failure on the payment
// path.
func failSafeResult() *domain.ScoreResult {
	return &domain.ScoreResult{
		Score:        0.5,
		Reasons:      []string{ReasonCalculationError},
		RiskLevel:    domain.RiskMedium,
		AppliedRules: []int64{},
	}
}

// Evaluate scores one transaction. A rule-cache refetch error is
// returned to the caller; any other failure mid-computation degrades to
// the fail-safe result with a nil error.
func (e *Engine) Evaluate(ctx context.Context, in *domain.TransactionInput) (result *domain.ScoreResult, err error) {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "scoring.Evaluate",
		trace.WithAttributes(
			attribute.String("transaction.id", in.TransactionID),
			attribute.String("transaction.card_type", in.CardType),
		),
	)
	defer span.End()

	activeRules, err := e.rules.GetActiveRules(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("fraud score evaluation panicked", "panic", r, "transaction_id", in.TransactionID)
			result = failSafeResult()
			err = nil
		}
	}()

	score, reasons, appliedRules := e.evaluateRules(activeRules, in)
	score, reasons, herr := e.applyHeuristics(ctx, in, score, reasons, hasLowAmountRule(activeRules, appliedRules))
	if herr != nil {
		slog.Error("fraud score heuristics failed", "error", herr, "transaction_id", in.TransactionID)
		return failSafeResult(), nil
	}

	if math.IsNaN(score) {
		return failSafeResult(), nil
	}

	score = round2(clamp01(score))

	result = &domain.ScoreResult{
		Score:        score,
		Reasons:      reasons,
		RiskLevel:    RiskLevelFromScore(score),
		AppliedRules: appliedRules,
	}

	slog.Info("fraud score calculated",
		"transaction_id", in.TransactionID,
		"score", score,
		"risk_level", result.RiskLevel,
		"applied_rules", appliedRules,
	)
	return result, nil
}

// evaluateRules runs the blacklist pass and, only when nothing matched
// there, the whitelist and low-amount pass. Blacklist strictly
// dominates: a single blacklist match skips whitelist evaluation for
// the whole call.
func (e *Engine) evaluateRules(activeRules []*domain.Rule, in *domain.TransactionInput) (float64, []string, []int64) {
	reasons := []string{}
	appliedRules := []int64{}

	cardHash := card.Hash(in.CardNumber)
	emailDomain := in.EmailDomain()
	isCredit := in.OperationType == domain.OperationCredit

	blacklistScore := 0.0
	hasBlacklistMatch := false

	for _, r := range activeRules {
		payload, ok := r.Payload.(domain.BlockedFranchisePayload)
		if !ok {
			continue
		}
		if strings.EqualFold(in.CardType, payload.Franchise) {
			blacklistScore += r.ScoreImpact
			reasons = append(reasons, ReasonBlockedFranchise)
			appliedRules = append(appliedRules, r.ID)
			hasBlacklistMatch = true
		}
	}

	if emailDomain != "" {
		for _, r := range activeRules {
			payload, ok := r.Payload.(domain.SuspiciousDomainPayload)
			if !ok {
				continue
			}
			if strings.EqualFold(emailDomain, payload.Domain) {
				blacklistScore += r.ScoreImpact
				reasons = append(reasons, ReasonSuspiciousDomain)
				appliedRules = append(appliedRules, r.ID)
				hasBlacklistMatch = true
			}
		}
	}

	// Blocked cards apply to credit operations only.
	if isCredit {
		for _, r := range activeRules {
			payload, ok := r.Payload.(domain.BlockedCardPayload)
			if !ok {
				continue
			}
			if cardHash == payload.CardHash {
				blacklistScore += r.ScoreImpact
				reasons = append(reasons, ReasonBlockedCard)
				appliedRules = append(appliedRules, r.ID)
				hasBlacklistMatch = true
			}
		}
	}

	if hasBlacklistMatch {
		return blacklistScore, reasons, appliedRules
	}

	whitelistScore := 0.0
	hasLowAmountMatch := false

	// Low-amount rules apply to credit operations only.
	if isCredit {
		for _, r := range activeRules {
			payload, ok := r.Payload.(domain.LowAmountPayload)
			if !ok {
				continue
			}
			if strings.EqualFold(in.CardType, payload.Franchise) && in.Amount <= payload.Amount {
				whitelistScore += r.ScoreImpact
				reasons = append(reasons, reasonLowAmountTemplate+payload.Franchise)
				appliedRules = append(appliedRules, r.ID)
				hasLowAmountMatch = true
			}
		}
	}

	for _, r := range activeRules {
		payload, ok := r.Payload.(domain.EmailWhitelistPayload)
		if !ok {
			continue
		}
		if strings.EqualFold(in.CustomerEmail, payload.Email) {
			whitelistScore += r.ScoreImpact
			reasons = append(reasons, ReasonWhitelistedEmail)
			appliedRules = append(appliedRules, r.ID)
		}
	}

	for _, r := range activeRules {
		payload, ok := r.Payload.(domain.CardWhitelistPayload)
		if !ok {
			continue
		}
		if cardHash == payload.CardHash {
			whitelistScore += r.ScoreImpact
			reasons = append(reasons, ReasonWhitelistedCard)
			appliedRules = append(appliedRules, r.ID)
		}
	}

	base := e.cfg.BaseScore
	if hasLowAmountMatch {
		base = e.cfg.LowAmountBaseScore
	}
	return math.Max(0, base+whitelistScore), reasons, appliedRules
}

// applyHeuristics adds the fixed risk signals on top of the rule-based
// score. An activity query failure aborts the evaluation; the caller
// degrades to the fail-safe result so the transaction still reaches
// manual review.
func (e *Engine) applyHeuristics(ctx context.Context, in *domain.TransactionInput, score float64, reasons []string, lowAmountMatched bool) (float64, []string, error) {
	// A matched low_amount rule already encodes an amount judgment for
	// this card type.
	if !lowAmountMatched && in.Amount > e.cfg.HighAmountThreshold {
		score += e.cfg.HighAmountScore
		reasons = append(reasons, ReasonHighAmount)
	}

	if in.Country != "" {
		for _, c := range e.cfg.SuspiciousCountries {
			if strings.EqualFold(in.Country, c) {
				score += e.cfg.SuspiciousCountryScore
				reasons = append(reasons, ReasonHighRiskCountry)
				break
			}
		}
	}

	windowStart := time.Now().Add(-e.cfg.VelocityWindow)

	count, err := e.activity.CountSince(ctx, in.CustomerEmail, windowStart)
	if err != nil {
		return 0, nil, fmt.Errorf("transaction count lookup failed: %w", err)
	}
	if count >= e.cfg.MaxTransactionsPerWindow {
		score += e.cfg.VelocityScore
		reasons = append(reasons, ReasonVelocity)
	}

	sum, err := e.activity.SumAmountSince(ctx, in.CustomerEmail, windowStart)
	if err != nil {
		return 0, nil, fmt.Errorf("transaction sum lookup failed: %w", err)
	}
	if sum >= e.cfg.MaxAmountPerWindow {
		score += e.cfg.AmountVelocityScore
		reasons = append(reasons, ReasonAmountVelocity)
	}

	dup, err := e.activity.HasDuplicate(ctx, in.CustomerEmail, in.Amount, time.Now().Add(-e.cfg.DuplicateWindow))
	if err != nil {
		return 0, nil, fmt.Errorf("duplicate transaction lookup failed: %w", err)
	}
	if dup {
		score += e.cfg.DuplicateScore
		reasons = append(reasons, ReasonDuplicate)
	}

	return score, reasons, nil
}

func hasLowAmountRule(activeRules []*domain.Rule, appliedRules []int64) bool {
	for _, id := range appliedRules {
		for _, r := range activeRules {
			if r.ID == id && r.Type == domain.RuleLowAmount {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1.0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
