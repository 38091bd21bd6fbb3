// Package domain defines the core types and interfaces for SMAF.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleType identifies one of the six supported fraud rule kinds.
// The set is fixed; rules are data, not expressions.
type RuleType string

const (
	RuleLowAmount        RuleType = "low_amount"
	RuleBlockedFranchise RuleType = "blocked_franchise"
	RuleSuspiciousDomain RuleType = "suspicious_domain"
	RuleEmailWhitelist   RuleType = "email_whitelist"
	RuleBlockedCard      RuleType = "blocked_card"
	RuleCardWhitelist    RuleType = "card_whitelist"
)

// RuleTypes lists every supported rule type.
var RuleTypes = []RuleType{
	RuleLowAmount,
	RuleBlockedFranchise,
	RuleSuspiciousDomain,
	RuleEmailWhitelist,
	RuleBlockedCard,
	RuleCardWhitelist,
}

// Valid reports whether t is one of the supported rule types.
func (t RuleType) Valid() bool {
	for _, rt := range RuleTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// Blacklist reports whether a match on this rule type increases risk.
// Blacklist matches take precedence over all whitelist evaluation.
func (t RuleType) Blacklist() bool {
	return t == RuleBlockedFranchise || t == RuleSuspiciousDomain || t == RuleBlockedCard
}

// CardBound reports whether the rule value carries a hashed card number.
func (t RuleType) CardBound() bool {
	return t == RuleBlockedCard || t == RuleCardWhitelist
}

// RulePayload is the typed value of a rule. Each rule type carries its
// own payload struct, validated once when the rule is loaded or written,
// instead of being re-parsed from JSON at every evaluation.
type RulePayload interface {
	PayloadType() RuleType
}

// LowAmountPayload marks transactions of a franchise at or below a
// threshold amount as low risk. Credit operations only.
type LowAmountPayload struct {
	Franchise string  `json:"franchise"`
	Amount    float64 `json:"amount"`
}

func (LowAmountPayload) PayloadType() RuleType { return RuleLowAmount }

// BlockedFranchisePayload blocks an entire card franchise.
type BlockedFranchisePayload struct {
	Franchise string `json:"franchise"`
}

func (BlockedFranchisePayload) PayloadType() RuleType { return RuleBlockedFranchise }

// SuspiciousDomainPayload flags customer emails on a domain.
type SuspiciousDomainPayload struct {
	Domain string `json:"domain"`
}

func (SuspiciousDomainPayload) PayloadType() RuleType { return RuleSuspiciousDomain }

// EmailWhitelistPayload lowers risk for an exact customer email.
type EmailWhitelistPayload struct {
	Email string `json:"email"`
}

func (EmailWhitelistPayload) PayloadType() RuleType { return RuleEmailWhitelist }

// BlockedCardPayload blocks a specific card. Only the one-way hash and
// the last four digits are ever stored; never the raw number.
type BlockedCardPayload struct {
	CardHash string `json:"cardHash"`
	LastFour string `json:"lastFourDigits"`
}

func (BlockedCardPayload) PayloadType() RuleType { return RuleBlockedCard }

// CardWhitelistPayload lowers risk for a specific card, stored hashed.
type CardWhitelistPayload struct {
	CardHash string `json:"cardHash"`
	LastFour string `json:"lastFourDigits"`
}

func (CardWhitelistPayload) PayloadType() RuleType { return RuleCardWhitelist }

// ParsePayload decodes and validates a rule value for the given type.
// Callers that load rules from storage treat an error as "rule matches
// nothing" so one malformed row cannot block scoring.
func ParsePayload(t RuleType, value string) (RulePayload, error) {
	switch t {
	case RuleLowAmount:
		var p LowAmountPayload
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if p.Franchise == "" || p.Amount <= 0 {
			return nil, fmt.Errorf("invalid %s value: franchise and positive amount are required", t)
		}
		return p, nil

	case RuleBlockedFranchise:
		var p BlockedFranchisePayload
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if p.Franchise == "" {
			return nil, fmt.Errorf("invalid %s value: franchise is required", t)
		}
		return p, nil

	case RuleSuspiciousDomain:
		var p SuspiciousDomainPayload
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if p.Domain == "" {
			return nil, fmt.Errorf("invalid %s value: domain is required", t)
		}
		return p, nil

	case RuleEmailWhitelist:
		var p EmailWhitelistPayload
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if p.Email == "" {
			return nil, fmt.Errorf("invalid %s value: email is required", t)
		}
		return p, nil

	case RuleBlockedCard:
		var p BlockedCardPayload
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if p.CardHash == "" {
			return nil, fmt.Errorf("invalid %s value: cardHash is required", t)
		}
		return p, nil

	case RuleCardWhitelist:
		var p CardWhitelistPayload
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if p.CardHash == "" {
			return nil, fmt.Errorf("invalid %s value: cardHash is required", t)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported rule type: %s", t)
	}
}

// Rule is a versioned fraud rule record.
type Rule struct {
	ID          int64    `json:"id"`
	Type        RuleType `json:"ruleType"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`

	// Value is the JSON-encoded payload as persisted. Payload is the
	// parsed, typed form; nil when Value is malformed.
	Value   string      `json:"value"`
	Payload RulePayload `json:"-"`

	// ScoreImpact is added to the running score on match, in [-1, 1].
	// Positive for blacklist rules, typically negative for whitelist.
	ScoreImpact float64 `json:"scoreImpact"`

	IsActive   bool       `json:"isActive"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`

	// Reason documents why the rule exists (required for audit).
	Reason string `json:"reason,omitempty"`

	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidOn reports whether the rule is active and within its validity
// window on the given day. Date comparison is day-granular.
func (r *Rule) ValidOn(day time.Time) bool {
	if !r.IsActive {
		return false
	}
	d := day.Format(DateLayout)
	if r.ValidFrom != nil && d < r.ValidFrom.Format(DateLayout) {
		return false
	}
	if r.ValidUntil != nil && d > r.ValidUntil.Format(DateLayout) {
		return false
	}
	return true
}

// DateLayout is the day-granular format used for rule validity windows.
const DateLayout = "2006-01-02"
