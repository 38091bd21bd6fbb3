package domain

import (
	"time"
)

// OperationType is the movement direction of a transaction. Certain
// rule types (low_amount, blocked_card) apply to credit operations only.
type OperationType string

const (
	OperationCredit OperationType = "credit"
	OperationDebit  OperationType = "debit"
)

// Valid reports whether t is a supported operation type.
func (t OperationType) Valid() bool {
	return t == OperationCredit || t == OperationDebit
}

// TransactionStatus is the approval state of a transaction.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

// RiskLevel is the coarse risk bucket derived from the fraud score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// TransactionInput is the raw transaction submitted for scoring. The
// raw card number is hashed internally and never persisted or logged
// beyond its last four digits.
type TransactionInput struct {
	TransactionID string        `json:"transactionId,omitempty"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency,omitempty"`
	CardType      string        `json:"cardType"`
	CardNumber    string        `json:"cardNumber"`
	OperationType OperationType `json:"operationType,omitempty"`
	CustomerEmail string        `json:"customerEmail"`
	Country       string        `json:"country,omitempty"`
	MerchantID    string        `json:"merchantId,omitempty"`
	MerchantName  string        `json:"merchantName,omitempty"`
	Description   string        `json:"description,omitempty"`
	Timestamp     time.Time     `json:"timestamp,omitempty"`
}

// EmailDomain returns the domain part of the customer email, or "" when
// the email has no domain.
func (in *TransactionInput) EmailDomain() string {
	for i := 0; i < len(in.CustomerEmail); i++ {
		if in.CustomerEmail[i] == '@' {
			return in.CustomerEmail[i+1:]
		}
	}
	return ""
}

// ScoreResult is the outcome of one scoring engine evaluation. It is
// produced fresh per call and never mutated afterward.
type ScoreResult struct {
	// Score is the normalized fraud score in [0, 1], rounded to two
	// decimal places.
	Score float64 `json:"score"`

	// Reasons lists human-readable explanations in evaluation order.
	Reasons []string `json:"reasons"`

	RiskLevel RiskLevel `json:"riskLevel"`

	// AppliedRules lists the ids of every rule that matched, in
	// evaluation order.
	AppliedRules []int64 `json:"appliedRules"`
}

// Transaction is the persistable scored transaction record. The ID is
// assigned by the store on insert; CardHash holds the SHA-256 hash of
// the card number, never the raw PAN.
type Transaction struct {
	ID            int64             `json:"id"`
	TransactionID string            `json:"transactionId"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	MerchantID    string            `json:"merchantId"`
	MerchantName  string            `json:"merchantName"`
	CardHash      string            `json:"cardNumber"`
	LastFour      string            `json:"lastFourDigits"`
	CardType      string            `json:"cardType"`
	OperationType OperationType     `json:"operationType"`
	CustomerEmail string            `json:"customerEmail"`
	Country       string            `json:"country,omitempty"`
	Description   string            `json:"description,omitempty"`
	FraudScore    float64           `json:"fraudScore"`
	FraudReasons  []string          `json:"fraudReasons"`
	RiskLevel     RiskLevel         `json:"riskLevel"`
	AppliedRules  []int64           `json:"appliedRules"`
	Status        TransactionStatus `json:"status"`
	ReviewedBy    string            `json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewedAt,omitempty"`
	ReviewReason  string            `json:"reviewReason,omitempty"`
	ProcessedAt   time.Time         `json:"processedAt"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	Status    TransactionStatus
	RiskLevel RiskLevel
	CardType  string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	Limit     int
}

// TransactionStats summarizes transactions for dashboards.
type TransactionStats struct {
	Total           int64 `json:"total"`
	Approved        int64 `json:"approved"`
	Pending         int64 `json:"pending"`
	Rejected        int64 `json:"rejected"`
	LowRisk         int64 `json:"lowRisk"`
	MediumRisk      int64 `json:"mediumRisk"`
	HighRisk        int64 `json:"highRisk"`
	PendingHighRisk int64 `json:"pendingHighRisk"`
}
