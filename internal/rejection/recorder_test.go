package rejection

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

type staticRules struct {
	rules []*domain.Rule
	err   error
}

func (s *staticRules) GetActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	return s.rules, s.err
}

type captureStore struct {
	batches [][]*domain.RejectionAttribution
	err     error
}

func (s *captureStore) CreateRejections(ctx context.Context, rejections []*domain.RejectionAttribution) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, rejections)
	return nil
}

func (s *captureStore) RejectionStats(ctx context.Context, f domain.RejectionFilter) (*domain.RejectionStats, error) {
	return nil, nil
}

func mustRule(t *testing.T, id int64, rt domain.RuleType, value string, impact float64) *domain.Rule {
	t.Helper()
	payload, err := domain.ParsePayload(rt, value)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	return &domain.Rule{ID: id, Type: rt, Value: value, Payload: payload, ScoreImpact: impact, IsActive: true}
}

func rejectedResult(score float64, appliedRules ...int64) *domain.ScoreResult {
	return &domain.ScoreResult{
		Score:        score,
		RiskLevel:    domain.RiskHigh,
		AppliedRules: appliedRules,
	}
}

func testInput() *domain.TransactionInput {
	return &domain.TransactionInput{
		Amount:        250,
		CardType:      "visa",
		CardNumber:    "4111111111111111",
		CustomerEmail: "buyer@tempmail.com",
		OperationType: domain.OperationCredit,
	}
}

func TestRecordRejectionsFiltersToBlacklistRules(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.8),
		mustRule(t, 2, domain.RuleEmailWhitelist, `{"email":"buyer@tempmail.com"}`, -0.3),
		mustRule(t, 3, domain.RuleSuspiciousDomain, `{"domain":"tempmail.com"}`, 0.4),
	}
	store := &captureStore{}
	rec := NewRecorder(&staticRules{rules: rules}, store, nil)

	rec.RecordRejections(context.Background(), testInput(), rejectedResult(0.9, 1, 2, 3), 42)

	if len(store.batches) != 1 {
		t.Fatalf("expected 1 batch insert, got %d", len(store.batches))
	}
	batch := store.batches[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 attributions, got %d", len(batch))
	}
	for _, att := range batch {
		if !att.RuleType.Blacklist() {
			t.Errorf("attribution for non-blacklist rule type %s", att.RuleType)
		}
		if att.TransactionID != 42 {
			t.Errorf("transaction id = %d, want 42", att.TransactionID)
		}
	}
	if batch[0].RejectionReason != "Blocked franchise: visa" {
		t.Errorf("reason = %q", batch[0].RejectionReason)
	}
	if batch[1].RejectionReason != "Suspicious domain: tempmail.com" {
		t.Errorf("reason = %q", batch[1].RejectionReason)
	}
}

func TestRecordRejectionsSkipsNonPositiveImpact(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0),
	}
	store := &captureStore{}
	rec := NewRecorder(&staticRules{rules: rules}, store, nil)

	rec.RecordRejections(context.Background(), testInput(), rejectedResult(0.9, 1), 42)

	if len(store.batches) != 0 {
		t.Error("expected no attributions for zero score impact")
	}
}

func TestRecordRejectionsBelowThresholdIsNoop(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.6),
	}
	store := &captureStore{}
	rec := NewRecorder(&staticRules{rules: rules}, store, nil)

	rec.RecordRejections(context.Background(), testInput(), rejectedResult(0.69, 1), 42)

	if len(store.batches) != 0 {
		t.Error("expected no attributions below the rejection threshold")
	}
}

func TestRecordRejectionsBlockedCardMasksNumber(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedCard, `{"cardHash":"abc123","lastFourDigits":"1111"}`, 0.9),
	}
	store := &captureStore{}
	rec := NewRecorder(&staticRules{rules: rules}, store, nil)

	rec.RecordRejections(context.Background(), testInput(), rejectedResult(0.9, 1), 42)

	if len(store.batches) != 1 {
		t.Fatal("expected one batch")
	}
	reason := store.batches[0][0].RejectionReason
	if reason != "Blocked card: ****1111" {
		t.Errorf("reason = %q", reason)
	}
	if strings.Contains(reason, "4111111111111111") {
		t.Error("reason must never contain the raw card number")
	}
}

func TestRecordRejectionsSwallowsStoreErrors(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.8),
	}
	store := &captureStore{err: errors.New("db down")}
	rec := NewRecorder(&staticRules{rules: rules}, store, nil)

	// Must not panic or propagate.
	rec.RecordRejections(context.Background(), testInput(), rejectedResult(0.9, 1), 42)
}

func TestRecordRejectionsMetricsHook(t *testing.T) {
	rules := []*domain.Rule{
		mustRule(t, 1, domain.RuleBlockedFranchise, `{"franchise":"visa"}`, 0.8),
	}
	store := &captureStore{}
	var recorded int
	rec := NewRecorder(&staticRules{rules: rules}, store, func(n int) { recorded += n })

	rec.RecordRejections(context.Background(), testInput(), rejectedResult(0.9, 1), 42)

	if recorded != 1 {
		t.Errorf("hook recorded %d, want 1", recorded)
	}
}
