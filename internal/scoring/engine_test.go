package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/card"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

type staticRules struct {
	rules []*domain.Rule
	err   error
}

func (s *staticRules) GetActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	return s.rules, s.err
}

type stubActivity struct {
	count     int64
	sum       float64
	duplicate bool
	err       error
}

func (s *stubActivity) CountSince(ctx context.Context, email string, since time.Time) (int64, error) {
	return s.count, s.err
}

func (s *stubActivity) SumAmountSince(ctx context.Context, email string, since time.Time) (float64, error) {
	return s.sum, s.err
}

func (s *stubActivity) HasDuplicate(ctx context.Context, email string, amount float64, since time.Time) (bool, error) {
	return s.duplicate, s.err
}

func mustRule(t *testing.T, id int64, rt domain.RuleType, value string, impact float64) *domain.Rule {
	t.Helper()
	payload, err := domain.ParsePayload(rt, value)
	if err != nil {
		t.Fatalf("ParsePayload(%s, %s): %v", rt, value, err)
	}
	return &domain.Rule{
		ID:          id,
		Type:        rt,
		Name:        fmt.Sprintf("rule-%d", id),
		Value:       value,
		Payload:     payload,
		ScoreImpact: impact,
		IsActive:    true,
	}
}

func newEngine(rules []*domain.Rule, activity domain.ActivityQuery) *Engine {
	if activity == nil {
		activity = &stubActivity{}
	}
	return NewEngine(&staticRules{rules: rules}, activity, domain.DefaultScoringConfig())
}

func creditInput(amount float64, cardType, email string) *domain.TransactionInput {
	return &domain.TransactionInput{
		TransactionID: "TXN-TEST-001",
		Amount:        amount,
		CardType:      cardType,
		CardNumber:    "4111111111111111",
		OperationType: domain.OperationCredit,
		CustomerEmail: email,
	}
}

func TestEvaluateLowAmountRuleApproves(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleLowAmount, `{"franchise":"visa","amount":50}`, -0.4),
	}
	engine := newEngine(rules, nil)

	result, err := engine.Evaluate(context.Background(), creditInput(40, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Score != 0.0 {
		t.Errorf("score = %v, want 0.00", result.Score)
	}
	if result.RiskLevel != domain.RiskLow {
		t.Errorf("risk level = %s, want low", result.RiskLevel)
	}
	if StatusFromScore(result.Score) != domain.StatusApproved {
		t.Error("expected approved status")
	}
	if len(result.AppliedRules) != 1 || result.AppliedRules[0] != 1 {
		t.Errorf("applied rules = %v, want [1]", result.AppliedRules)
	}
}

func TestEvaluateBlockedFranchiseRejects(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 7, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.8),
	}
	engine := newEngine(rules, nil)

	result, err := engine.Evaluate(context.Background(), creditInput(100, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Score != 0.8 {
		t.Errorf("score = %v, want 0.80", result.Score)
	}
	if result.RiskLevel != domain.RiskHigh {
		t.Errorf("risk level = %s, want high", result.RiskLevel)
	}
	if StatusFromScore(result.Score) != domain.StatusRejected {
		t.Error("expected rejected status")
	}
}

func TestEvaluateBlacklistDominatesWhitelist(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.8),
		mustRule(t, 2, domain.RuleEmailWhitelist, `{"email":"buyer@example.com"}`, -0.5),
		mustRule(t, 3, domain.RuleLowAmount, `{"franchise":"visa","amount":500}`, -0.4),
	}
	engine := newEngine(rules, nil)

	result, err := engine.Evaluate(context.Background(), creditInput(100, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Score != 0.8 {
		t.Errorf("score = %v, want 0.80 (whitelist must not apply)", result.Score)
	}
	if len(result.AppliedRules) != 1 || result.AppliedRules[0] != 1 {
		t.Errorf("applied rules = %v, want only the blacklist rule", result.AppliedRules)
	}
}

func TestEvaluateCreditOnlyRulesIgnoreDebit(t *testing.T) {
	blockedHash := card.Hash("4111111111111111")
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleLowAmount, `{"franchise":"visa","amount":500}`, -0.4),
		mustRule(t, 2, domain.RuleBlockedCard,
			fmt.Sprintf(`{"cardHash":%q,"lastFourDigits":"1111"}`, blockedHash), 0.9),
	}
	engine := newEngine(rules, nil)

	in := creditInput(100, "visa", "buyer@example.com")
	in.OperationType = domain.OperationDebit

	result, err := engine.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Score != 0.5 {
		t.Errorf("score = %v, want base 0.50 (credit-only rules skipped)", result.Score)
	}
	if len(result.AppliedRules) != 0 {
		t.Errorf("applied rules = %v, want none", result.AppliedRules)
	}
}

func TestEvaluateBlockedCardMatchesOnHash(t *testing.T) {
	blockedHash := card.Hash("4111111111111111")
	rules := []*domain.Rule{
		mustRule(t, 5, domain.RuleBlockedCard,
			fmt.Sprintf(`{"cardHash":%q,"lastFourDigits":"1111"}`, blockedHash), 0.9),
	}
	engine := newEngine(rules, nil)

	result, err := engine.Evaluate(context.Background(), creditInput(100, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Score != 0.9 {
		t.Errorf("score = %v, want 0.90", result.Score)
	}
}

func TestEvaluateHighAmountHeuristic(t *testing.T) {
	engine := newEngine(nil, nil)

	result, err := engine.Evaluate(context.Background(), creditInput(2000, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Score != 0.8 {
		t.Errorf("score = %v, want 0.80 (base 0.5 + high amount 0.3)", result.Score)
	}
	if StatusFromScore(result.Score) != domain.StatusRejected {
		t.Error("expected rejected status")
	}
	if !containsReason(result.Reasons, ReasonHighAmount) {
		t.Errorf("reasons = %v, want %q included", result.Reasons, ReasonHighAmount)
	}
}

func TestEvaluateLowAmountMatchSkipsHighAmountHeuristic(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleLowAmount, `{"franchise":"visa","amount":3000}`, -0.1),
	}
	engine := newEngine(rules, nil)

	result, err := engine.Evaluate(context.Background(), creditInput(2000, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if containsReason(result.Reasons, ReasonHighAmount) {
		t.Error("high amount heuristic must not fire when a low amount rule matched")
	}
	if result.Score != 0.0 {
		t.Errorf("score = %v, want 0.00", result.Score)
	}
}

func TestEvaluateSuspiciousCountry(t *testing.T) {
	engine := newEngine(nil, nil)

	in := creditInput(100, "visa", "buyer@example.com")
	in.Country = "XX"

	result, err := engine.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Score != 0.9 {
		t.Errorf("score = %v, want 0.90 (base 0.5 + country 0.4)", result.Score)
	}
}

func TestEvaluateVelocityHeuristics(t *testing.T) {
	tests := []struct {
		name     string
		activity *stubActivity
		want     float64
	}{
		{"transaction count at limit", &stubActivity{count: 5}, 1.0},
		{"count below limit", &stubActivity{count: 4}, 0.5},
		{"amount sum at limit", &stubActivity{sum: 5000}, 0.9},
		{"duplicate within window", &stubActivity{duplicate: true}, 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := newEngine(nil, tc.activity)
			result, err := engine.Evaluate(context.Background(), creditInput(100, "visa", "buyer@example.com"))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if result.Score != tc.want {
				t.Errorf("score = %v, want %v", result.Score, tc.want)
			}
		})
	}
}

func TestEvaluateScoreClampedToOne(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.9),
		mustRule(t, 2, domain.RuleSuspiciousDomain, `{"domain":"tempmail.com"}`, 0.9),
	}
	engine := newEngine(rules, &stubActivity{duplicate: true})

	in := creditInput(5000, "visa", "buyer@tempmail.com")
	in.Country = "XX"

	result, err := engine.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Score != 1.0 {
		t.Errorf("score = %v, want clamp to 1.00", result.Score)
	}
}

func TestEvaluateRuleFetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("db down")
	engine := NewEngine(&staticRules{err: wantErr}, &stubActivity{}, domain.DefaultScoringConfig())

	_, err := engine.Evaluate(context.Background(), creditInput(100, "visa", "buyer@example.com"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected rule fetch error to propagate, got %v", err)
	}
}

func TestEvaluateActivityErrorFailsSafe(t *testing.T) {
	// A matching low_amount rule would otherwise approve at 0.00; an
	// activity outage must still route the transaction to review.
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleLowAmount, `{"franchise":"visa","amount":50}`, -0.4),
	}
	engine := newEngine(rules, &stubActivity{err: errors.New("redis down")})

	result, err := engine.Evaluate(context.Background(), creditInput(40, "visa", "buyer@example.com"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Score != 0.5 {
		t.Errorf("score = %v, want fail-safe 0.50", result.Score)
	}
	if result.RiskLevel != domain.RiskMedium {
		t.Errorf("risk level = %s, want medium", result.RiskLevel)
	}
	if !containsReason(result.Reasons, ReasonCalculationError) {
		t.Errorf("reasons = %v, want calculation error", result.Reasons)
	}
	if len(result.AppliedRules) != 0 {
		t.Errorf("applied rules = %v, want none", result.AppliedRules)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
