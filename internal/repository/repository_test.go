package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "smaf-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func newTestRule(t domain.RuleType, value string, impact float64) *domain.Rule {
	now := time.Now().UTC()
	return &domain.Rule{
		Type:        t,
		Name:        "test rule",
		Value:       value,
		ScoreImpact: impact,
		IsActive:    true,
		CreatedBy:   "admin@smaf.io",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newTestTransaction(ref, email string, amount float64, status domain.TransactionStatus) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		TransactionID: ref,
		Amount:        amount,
		Currency:      "USD",
		MerchantID:    "MERCHANT-001",
		MerchantName:  "SMAF System",
		CardHash:      "a1b2c3",
		LastFour:      "1111",
		CardType:      "visa",
		OperationType: domain.OperationCredit,
		CustomerEmail: email,
		FraudScore:    0.5,
		FraudReasons:  []string{"test"},
		RiskLevel:     domain.RiskMedium,
		AppliedRules:  []int64{},
		Status:        status,
		ProcessedAt:   now,
		CreatedAt:     now,
	}
}

func TestRuleCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := newTestRule(domain.RuleBlockedFranchise, `{"franchise":"amex"}`, 0.8)
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if rule.ID == 0 {
		t.Fatal("expected assigned rule id")
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRule: %v", err)
		}
		if got.Type != domain.RuleBlockedFranchise {
			t.Errorf("type = %s", got.Type)
		}
		payload, ok := got.Payload.(domain.BlockedFranchisePayload)
		if !ok {
			t.Fatalf("payload type %T", got.Payload)
		}
		if payload.Franchise != "amex" {
			t.Errorf("franchise = %q", payload.Franchise)
		}
	})

	t.Run("Update", func(t *testing.T) {
		rule.ScoreImpact = 0.9
		rule.UpdatedBy = "analyst@smaf.io"
		rule.UpdatedAt = time.Now().UTC()
		if err := repo.UpdateRule(ctx, rule); err != nil {
			t.Fatalf("UpdateRule: %v", err)
		}
		got, err := repo.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRule: %v", err)
		}
		if got.ScoreImpact != 0.9 {
			t.Errorf("score impact = %v", got.ScoreImpact)
		}
	})

	t.Run("List", func(t *testing.T) {
		active := true
		rules, total, err := repo.ListRules(ctx, domain.RuleFilter{IsActive: &active, Limit: 10})
		if err != nil {
			t.Fatalf("ListRules: %v", err)
		}
		if total != 1 || len(rules) != 1 {
			t.Errorf("total = %d, len = %d, want 1/1", total, len(rules))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.DeleteRule(ctx, rule.ID); err != nil {
			t.Fatalf("DeleteRule: %v", err)
		}
		if _, err := repo.GetRule(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListActiveRulesValidityWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	today := time.Now().UTC()

	past := today.AddDate(0, 0, -10)
	yesterday := today.AddDate(0, 0, -1)
	future := today.AddDate(0, 0, 10)

	current := newTestRule(domain.RuleBlockedFranchise, `{"franchise":"amex"}`, 0.8)
	current.ValidFrom = &past
	current.ValidUntil = &future
	if err := repo.CreateRule(ctx, current); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	expired := newTestRule(domain.RuleSuspiciousDomain, `{"domain":"tempmail.com"}`, 0.4)
	expired.ValidFrom = &past
	expired.ValidUntil = &yesterday
	if err := repo.CreateRule(ctx, expired); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	notYet := newTestRule(domain.RuleEmailWhitelist, `{"email":"vip@partner.com"}`, -0.5)
	notYet.ValidFrom = &future
	if err := repo.CreateRule(ctx, notYet); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	inactive := newTestRule(domain.RuleBlockedFranchise, `{"franchise":"diners"}`, 0.7)
	inactive.IsActive = false
	if err := repo.CreateRule(ctx, inactive); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	rules, err := repo.ListActiveRules(ctx, today)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(rules))
	}
	if rules[0].ID != current.ID {
		t.Errorf("active rule id = %d, want %d", rules[0].ID, current.ID)
	}
}

func TestListActiveRulesSkipsMalformedValue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	bad := newTestRule(domain.RuleBlockedFranchise, `{not json`, 0.8)
	if err := repo.CreateRule(ctx, bad); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	rules, err := repo.ListActiveRules(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected the rule row, got %d", len(rules))
	}
	if rules[0].Payload != nil {
		t.Error("malformed value must leave the payload nil")
	}
}

func TestTransactionStore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := newTestTransaction("TXN-001", "buyer@example.com", 150, domain.StatusPending)
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == 0 {
		t.Fatal("expected assigned transaction id")
	}

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if got.TransactionID != "TXN-001" {
			t.Errorf("transaction id = %q", got.TransactionID)
		}
		if len(got.FraudReasons) != 1 || got.FraudReasons[0] != "test" {
			t.Errorf("fraud reasons = %v", got.FraudReasons)
		}
	})

	t.Run("GetByRef", func(t *testing.T) {
		got, err := repo.GetTransactionByRef(ctx, "TXN-001")
		if err != nil {
			t.Fatalf("GetTransactionByRef: %v", err)
		}
		if got.ID != tx.ID {
			t.Errorf("id = %d, want %d", got.ID, tx.ID)
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		txs, total, err := repo.ListTransactions(ctx, domain.TransactionFilter{Status: domain.StatusPending, Limit: 10})
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		if total != 1 || len(txs) != 1 {
			t.Errorf("total = %d, len = %d", total, len(txs))
		}
	})

	t.Run("UpdateReview", func(t *testing.T) {
		now := time.Now().UTC()
		tx.Status = domain.StatusApproved
		tx.ReviewedBy = "analyst@smaf.io"
		tx.ReviewedAt = &now
		tx.ReviewReason = "verified"
		if err := repo.UpdateReview(ctx, tx); err != nil {
			t.Fatalf("UpdateReview: %v", err)
		}
		got, err := repo.GetTransaction(ctx, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if got.Status != domain.StatusApproved || got.ReviewedBy != "analyst@smaf.io" {
			t.Errorf("status = %s, reviewed by = %q", got.Status, got.ReviewedBy)
		}
		if got.ReviewedAt == nil {
			t.Error("reviewed at missing")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetTransaction(ctx, 9999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestActivityQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, amount := range []float64{100, 200, 100} {
		tx := newTestTransaction("TXN-A"+string(rune('0'+i)), "buyer@example.com", amount, domain.StatusApproved)
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}
	other := newTestTransaction("TXN-B0", "other@example.com", 999, domain.StatusApproved)
	if err := repo.CreateTransaction(ctx, other); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	since := time.Now().Add(-time.Hour)

	count, err := repo.CountByEmailSince(ctx, "buyer@example.com", since)
	if err != nil {
		t.Fatalf("CountByEmailSince: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	sum, err := repo.SumAmountByEmailSince(ctx, "buyer@example.com", since)
	if err != nil {
		t.Fatalf("SumAmountByEmailSince: %v", err)
	}
	if sum != 400 {
		t.Errorf("sum = %v, want 400", sum)
	}

	dup, err := repo.HasDuplicate(ctx, "buyer@example.com", 100, since)
	if err != nil {
		t.Fatalf("HasDuplicate: %v", err)
	}
	if !dup {
		t.Error("expected duplicate for identical amount")
	}

	dup, err = repo.HasDuplicate(ctx, "buyer@example.com", 123.45, since)
	if err != nil {
		t.Fatalf("HasDuplicate: %v", err)
	}
	if dup {
		t.Error("unexpected duplicate for unseen amount")
	}
}

func TestRejectionBatchAndStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rejections := []*domain.RejectionAttribution{
		{RuleID: 1, TransactionID: 10, RuleType: domain.RuleBlockedFranchise, RejectionReason: "Blocked franchise: amex", FraudScore: 0.8, TransactionAmount: 100, CustomerEmail: "a@example.com", CardType: "amex", RejectedAt: now},
		{RuleID: 1, TransactionID: 11, RuleType: domain.RuleBlockedFranchise, RejectionReason: "Blocked franchise: amex", FraudScore: 0.9, TransactionAmount: 300, CustomerEmail: "b@example.com", CardType: "amex", RejectedAt: now},
		{RuleID: 2, TransactionID: 12, RuleType: domain.RuleSuspiciousDomain, RejectionReason: "Suspicious domain: tempmail.com", FraudScore: 0.7, TransactionAmount: 50, CustomerEmail: "c@tempmail.com", CardType: "visa", RejectedAt: now},
	}
	if err := repo.CreateRejections(ctx, rejections); err != nil {
		t.Fatalf("CreateRejections: %v", err)
	}

	stats, err := repo.RejectionStats(ctx, domain.RejectionFilter{})
	if err != nil {
		t.Fatalf("RejectionStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if len(stats.ByType) != 2 {
		t.Fatalf("by type groups = %d, want 2", len(stats.ByType))
	}
	if stats.ByType[0].RuleType != domain.RuleBlockedFranchise || stats.ByType[0].Count != 2 {
		t.Errorf("top type = %s/%d", stats.ByType[0].RuleType, stats.ByType[0].Count)
	}
	if stats.ByType[0].TotalAmount != 400 {
		t.Errorf("total amount = %v, want 400", stats.ByType[0].TotalAmount)
	}
	if len(stats.ByRule) != 2 {
		t.Errorf("by rule groups = %d, want 2", len(stats.ByRule))
	}

	filtered, err := repo.RejectionStats(ctx, domain.RejectionFilter{RuleType: domain.RuleSuspiciousDomain})
	if err != nil {
		t.Fatalf("RejectionStats filtered: %v", err)
	}
	if filtered.Total != 1 {
		t.Errorf("filtered total = %d, want 1", filtered.Total)
	}
}

func TestAuditTrail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := &domain.AuditEntry{
		Actor:      "admin@smaf.io",
		Action:     domain.AuditActionCreate,
		EntityType: "fraud_rule",
		EntityID:   1,
		NewValues:  `{"name":"block amex"}`,
		Reason:     "chargeback spike",
		IPAddress:  "10.0.0.1",
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected assigned audit entry id")
	}

	entries, total, err := repo.ListAuditEntries(ctx, domain.AuditFilter{EntityType: "fraud_rule", Limit: 10})
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("total = %d, len = %d", total, len(entries))
	}
	if entries[0].Actor != "admin@smaf.io" || entries[0].Reason != "chargeback spike" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestTransactionStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []struct {
		status domain.TransactionStatus
		risk   domain.RiskLevel
	}{
		{domain.StatusApproved, domain.RiskLow},
		{domain.StatusPending, domain.RiskMedium},
		{domain.StatusPending, domain.RiskHigh},
		{domain.StatusRejected, domain.RiskHigh},
	}
	for i, s := range seed {
		tx := newTestTransaction("TXN-S"+string(rune('0'+i)), "buyer@example.com", 100, s.status)
		tx.RiskLevel = s.risk
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	stats, err := repo.TransactionStats(ctx)
	if err != nil {
		t.Fatalf("TransactionStats: %v", err)
	}
	if stats.Total != 4 || stats.Approved != 1 || stats.Pending != 2 || stats.Rejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.HighRisk != 2 || stats.PendingHighRisk != 1 {
		t.Errorf("risk stats = %+v", stats)
	}
}

func TestSQLiteDSNCarriesPragmas(t *testing.T) {
	dsn := sqliteDSN("/data/smaf.db")
	if !strings.HasPrefix(dsn, "file:/data/smaf.db?") {
		t.Errorf("dsn = %q", dsn)
	}
	for _, pragma := range sqlitePragmas {
		if !strings.Contains(dsn, "_pragma="+pragma) {
			t.Errorf("dsn %q missing pragma %s", dsn, pragma)
		}
	}
}

func TestPostgresDSNDefaults(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{Driver: "postgres"})
	for _, want := range []string{"host=localhost", "port=5432", "dbname=smaf", "sslmode=disable"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn = %q, missing %q", dsn, want)
		}
	}
	if strings.Contains(dsn, "user=") || strings.Contains(dsn, "password=") {
		t.Errorf("dsn = %q, empty credentials should be omitted", dsn)
	}

	dsn = postgresDSN(domain.RepositoryConfig{
		Driver:           "postgres",
		PostgresHost:     "db.internal",
		PostgresUser:     "smaf",
		PostgresPassword: "secret",
		PostgresDB:       "fraud",
		PostgresSSLMode:  "require",
	})
	for _, want := range []string{"host=db.internal", "dbname=fraud", "sslmode=require", "user=smaf", "password=secret"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn = %q, missing %q", dsn, want)
		}
	}
}
