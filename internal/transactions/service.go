// Package transactions implements transaction creation, lookup and
// manual review flows on top of the scoring pipeline.
package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/activity"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/card"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/metrics"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/processor"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/rejection"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/scoring"
)

// ErrNotPending is returned when a review decision targets a
// transaction that is not awaiting review.
var ErrNotPending = errors.New("only pending transactions can be reviewed")

// Service orchestrates the transaction flows.
type Service struct {
	store     domain.TransactionStore
	processor *processor.Processor
	engine    *scoring.Engine
	recorder  *rejection.Recorder
	activity  *activity.Service
	audit     domain.AuditTrail
	bus       domain.EventBus
	metrics   *metrics.Metrics
	cfg       domain.ScoringConfig
}

// NewService creates the transaction service. audit, bus, activity and
// metrics are optional.
func NewService(
	store domain.TransactionStore,
	proc *processor.Processor,
	engine *scoring.Engine,
	recorder *rejection.Recorder,
	act *activity.Service,
	audit domain.AuditTrail,
	bus domain.EventBus,
	m *metrics.Metrics,
	cfg domain.ScoringConfig,
) *Service {
	return &Service{
		store:     store,
		processor: proc,
		engine:    engine,
		recorder:  recorder,
		activity:  act,
		audit:     audit,
		bus:       bus,
		metrics:   m,
		cfg:       cfg,
	}
}

// ProcessAndStore runs the full pipeline: normalize, score, classify,
// persist, then attribute rejections against the assigned record id.
func (s *Service) ProcessAndStore(ctx context.Context, in *domain.TransactionInput) (*domain.Transaction, error) {
	tx, pending, err := s.processor.Process(ctx, in)
	if err != nil {
		return nil, err
	}

	tx.CreatedAt = time.Now().UTC()
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	// Attribution needs the store-assigned id, so it runs strictly
	// after the insert.
	if pending != nil {
		s.recorder.RecordRejections(ctx, pending.Input, pending.Result, tx.ID)
	}

	s.finishScoring(ctx, tx)
	return tx, nil
}

// Create scores and persists a transaction using the stricter status
// mapping, where a score of exactly 0.7 is held for review rather than
// rejected.
func (s *Service) Create(ctx context.Context, in *domain.TransactionInput) (*domain.Transaction, error) {
	normalized := *in
	if normalized.TransactionID == "" {
		normalized.TransactionID = dateTransactionID()
	}
	if normalized.Currency == "" {
		normalized.Currency = processor.DefaultCurrency
	}
	if normalized.MerchantID == "" {
		normalized.MerchantID = processor.DefaultMerchantID
	}
	if normalized.MerchantName == "" {
		normalized.MerchantName = processor.DefaultMerchantName
	}
	if normalized.OperationType == "" {
		normalized.OperationType = domain.OperationCredit
	}

	result, err := s.engine.Evaluate(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate transaction: %w", err)
	}

	status := scoring.StrictStatusFromScore(result.Score)

	now := time.Now().UTC()
	tx := &domain.Transaction{
		TransactionID: normalized.TransactionID,
		Amount:        normalized.Amount,
		Currency:      normalized.Currency,
		MerchantID:    normalized.MerchantID,
		MerchantName:  normalized.MerchantName,
		CardHash:      card.Hash(normalized.CardNumber),
		LastFour:      card.LastFour(normalized.CardNumber),
		CardType:      normalized.CardType,
		OperationType: normalized.OperationType,
		CustomerEmail: normalized.CustomerEmail,
		Country:       normalized.Country,
		Description:   normalized.Description,
		FraudScore:    result.Score,
		FraudReasons:  result.Reasons,
		RiskLevel:     result.RiskLevel,
		AppliedRules:  result.AppliedRules,
		Status:        status,
		ProcessedAt:   now,
		CreatedAt:     now,
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	if status == domain.StatusRejected {
		s.recorder.RecordRejections(ctx, &normalized, result, tx.ID)
	}

	s.finishScoring(ctx, tx)
	return tx, nil
}

// finishScoring handles the shared post-persist side effects: velocity
// counters, metrics and bus notifications. All best-effort.
func (s *Service) finishScoring(ctx context.Context, tx *domain.Transaction) {
	if s.activity != nil {
		s.activity.Observe(ctx, tx.CustomerEmail, tx.Amount, s.cfg.VelocityWindow)
	}

	s.metrics.ObserveTransaction(string(tx.Status), tx.FraudScore)

	s.publishEvent(ctx, domain.TopicTransactionScored, tx)
	if tx.Status == domain.StatusRejected {
		s.publishEvent(ctx, domain.TopicTransactionRejected, tx)
	}

	slog.Info("transaction scored",
		"transaction_id", tx.TransactionID,
		"status", tx.Status,
		"fraud_score", tx.FraudScore,
		"risk_level", tx.RiskLevel,
	)
}

func (s *Service) publishEvent(ctx context.Context, topic string, tx *domain.Transaction) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.TransactionEvent{
		TransactionID: tx.TransactionID,
		RecordID:      tx.ID,
		Status:        tx.Status,
		Score:         tx.FraudScore,
		RiskLevel:     tx.RiskLevel,
		CustomerEmail: tx.CustomerEmail,
		Amount:        tx.Amount,
		Reasons:       tx.FraudReasons,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish transaction event", "topic", topic, "transaction_id", tx.TransactionID, "error", err)
	}
}

// Get returns one transaction by record id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// GetByRef returns one transaction by its external identifier.
func (s *Service) GetByRef(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.store.GetTransactionByRef(ctx, transactionID)
}

// List returns transactions matching the filter plus the total count.
func (s *Service) List(ctx context.Context, f domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	return s.store.ListTransactions(ctx, f)
}

// Stats returns aggregate transaction counts.
func (s *Service) Stats(ctx context.Context) (*domain.TransactionStats, error) {
	return s.store.TransactionStats(ctx)
}

// Approve resolves a pending transaction as approved.
func (s *Service) Approve(ctx context.Context, id int64, reason, reviewer, ip string) (*domain.Transaction, error) {
	return s.review(ctx, id, domain.StatusApproved, domain.AuditActionApproveTransaction, reason, reviewer, ip)
}

// Reject resolves a pending transaction as rejected.
func (s *Service) Reject(ctx context.Context, id int64, reason, reviewer, ip string) (*domain.Transaction, error) {
	return s.review(ctx, id, domain.StatusRejected, domain.AuditActionRejectTransaction, reason, reviewer, ip)
}

func (s *Service) review(ctx context.Context, id int64, status domain.TransactionStatus, action, reason, reviewer, ip string) (*domain.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusPending {
		return nil, ErrNotPending
	}

	old, _ := json.Marshal(tx)

	now := time.Now().UTC()
	tx.Status = status
	tx.ReviewedBy = reviewer
	tx.ReviewedAt = &now
	tx.ReviewReason = reason

	if err := s.store.UpdateReview(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction review: %w", err)
	}

	if s.audit != nil {
		updated, _ := json.Marshal(tx)
		entry := &domain.AuditEntry{
			Actor:      reviewer,
			Action:     action,
			EntityType: "transaction",
			EntityID:   tx.ID,
			OldValues:  string(old),
			NewValues:  string(updated),
			Reason:     reason,
			IPAddress:  ip,
			CreatedAt:  now,
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			slog.Error("failed to record review audit entry", "transaction_id", tx.ID, "error", err)
		}
	}

	slog.Info("transaction reviewed",
		"transaction_id", tx.TransactionID,
		"status", status,
		"reviewer", reviewer,
	)
	return tx, nil
}

// dateTransactionID builds the date-based identifier used by the direct
// creation flow.
func dateTransactionID() string {
	return fmt.Sprintf("TXN-%s-%03d", time.Now().UTC().Format("20060102"), rand.Intn(1000))
}
