package domain

import "time"

// RejectionAttribution links a rejected transaction to one blacklist
// rule that contributed to the rejection. Rows are written only after
// the owning transaction is durably persisted, and are immutable.
type RejectionAttribution struct {
	ID                int64     `json:"id"`
	RuleID            int64     `json:"ruleId"`
	TransactionID     int64     `json:"transactionId"`
	RuleType          RuleType  `json:"ruleType"`
	RejectionReason   string    `json:"rejectionReason"`
	FraudScore        float64   `json:"fraudScore"`
	TransactionAmount float64   `json:"transactionAmount"`
	CustomerEmail     string    `json:"customerEmail,omitempty"`
	CardType          string    `json:"cardType"`
	RejectedAt        time.Time `json:"rejectedAt"`
}

// RejectionFilter narrows rejection statistics queries.
type RejectionFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	RuleType RuleType
	RuleID   int64
}

// RejectionTypeCount aggregates attributions for one rule type.
type RejectionTypeCount struct {
	RuleType      RuleType `json:"ruleType"`
	Count         int64    `json:"rejectionCount"`
	TotalAmount   float64  `json:"totalAmount"`
	AvgFraudScore float64  `json:"avgFraudScore"`
}

// RejectionRuleCount aggregates attributions for one specific rule.
type RejectionRuleCount struct {
	RuleID      int64    `json:"ruleId"`
	RuleType    RuleType `json:"ruleType"`
	Count       int64    `json:"rejectionCount"`
	TotalAmount float64  `json:"totalAmount"`
}

// RejectionStats is the aggregate view of rule-caused rejections.
type RejectionStats struct {
	Total  int64                `json:"totalRejections"`
	ByType []RejectionTypeCount `json:"rejectionsByType"`
	ByRule []RejectionRuleCount `json:"rejectionsByRule"`
}
