package domain

import (
	"context"
)

// EventBus carries decision notifications to downstream consumers.
// Scoring itself is synchronous; the bus is informational only, so
// publish failures never affect a transaction outcome.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is one event on the bus.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription is an active topic subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics published by the transaction pipeline.
const (
	TopicTransactionScored   = "smaf.transaction.scored"
	TopicTransactionRejected = "smaf.transaction.rejected"
	TopicRuleChanged         = "smaf.rule.changed"
)

// TransactionEvent is the payload for transaction topics.
type TransactionEvent struct {
	TransactionID string            `json:"transactionId"`
	RecordID      int64             `json:"recordId"`
	Status        TransactionStatus `json:"status"`
	Score         float64           `json:"score"`
	RiskLevel     RiskLevel         `json:"riskLevel"`
	CustomerEmail string            `json:"customerEmail"`
	Amount        float64           `json:"amount"`
	Reasons       []string          `json:"reasons,omitempty"`
}

// RuleEvent is the payload for the rule-changed topic.
type RuleEvent struct {
	RuleID int64    `json:"ruleId"`
	Type   RuleType `json:"ruleType"`
	Action string   `json:"action"`
}
