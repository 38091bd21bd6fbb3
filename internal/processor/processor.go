// Package processor orchestrates transaction normalization, scoring,
// classification and result assembly.
package processor

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/card"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/scoring"
)

// Defaults filled in for optional transaction fields.
const (
	DefaultCurrency     = "USD"
	DefaultMerchantID   = "MERCHANT-001"
	DefaultMerchantName = "SMAF System"
)

// PendingAttribution defers rejection attribution until the transaction
// row exists. Attribution rows reference the store-assigned id, so the
// caller invokes the recorder with it after the insert, ideally inside
// the same storage transaction.
type PendingAttribution struct {
	Input  *domain.TransactionInput
	Result *domain.ScoreResult
}

// Processor is the transaction scoring entry point used by creation
// flows.
type Processor struct {
	engine *scoring.Engine
}

// New creates a transaction processor.
func New(engine *scoring.Engine) *Processor {
	return &Processor{engine: engine}
}

// Process normalizes the input, scores it and assembles the persistable
// record. For rejected outcomes it also returns a PendingAttribution;
// otherwise that return is nil.
func (p *Processor) Process(ctx context.Context, in *domain.TransactionInput) (*domain.Transaction, *PendingAttribution, error) {
	normalized := *in
	if normalized.TransactionID == "" {
		normalized.TransactionID = NewTransactionID()
	}
	if normalized.Currency == "" {
		normalized.Currency = DefaultCurrency
	}
	if normalized.MerchantID == "" {
		normalized.MerchantID = DefaultMerchantID
	}
	if normalized.MerchantName == "" {
		normalized.MerchantName = DefaultMerchantName
	}
	if normalized.OperationType == "" {
		normalized.OperationType = domain.OperationCredit
	}
	if normalized.Timestamp.IsZero() {
		normalized.Timestamp = time.Now().UTC()
	}

	result, err := p.engine.Evaluate(ctx, &normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate transaction: %w", err)
	}

	status := scoring.StatusFromScore(result.Score)

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
		ProcessedAt:   time.Now().UTC(),
	}

	var pending *PendingAttribution
	if status == domain.StatusRejected {
		pending = &PendingAttribution{Input: &normalized, Result: result}
	}
	return tx, pending, nil
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewTransactionID generates a collision-resistant transaction
// identifier. Uniqueness is best-effort, not guaranteed.
func NewTransactionID() string {
	var sb strings.Builder
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idAlphabet))))
		if err != nil {
			// crypto/rand failing means the platform is broken;
			// fall back to a time-derived digit.
			sb.WriteByte(idAlphabet[time.Now().UnixNano()%int64(len(idAlphabet))])
			continue
		}
		sb.WriteByte(idAlphabet[n.Int64()])
	}
	return fmt.Sprintf("TXN-%d-%s", time.Now().UnixMilli(), sb.String())
}
