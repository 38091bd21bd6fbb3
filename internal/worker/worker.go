// Package worker runs background consumers for the transaction
// pipeline's bus topics.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// systemActor names the automated pipeline in audit records, as
// opposed to a human reviewer.
const systemActor = "system"

// RejectionAuditor subscribes to rejected-transaction events and
// mirrors them into the audit trail, so automatic rejections show up
// next to manual review decisions.
type RejectionAuditor struct {
	bus   domain.EventBus
	audit domain.AuditTrail
	sub   domain.Subscription
}

// NewRejectionAuditor creates an auditor. Call Start to begin consuming.
func NewRejectionAuditor(bus domain.EventBus, audit domain.AuditTrail) *RejectionAuditor {
	return &RejectionAuditor{bus: bus, audit: audit}
}

// Start subscribes to the rejected-transaction topic.
func (w *RejectionAuditor) Start(ctx context.Context) error {
	sub, err := w.bus.Subscribe(ctx, domain.TopicTransactionRejected, w.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicTransactionRejected, err)
	}
	w.sub = sub

	slog.Info("rejection auditor started", "topic", domain.TopicTransactionRejected)
	return nil
}

// Stop unsubscribes from the bus.
func (w *RejectionAuditor) Stop() error {
	if w.sub == nil {
		return nil
	}
	return w.sub.Unsubscribe()
}

func (w *RejectionAuditor) handle(ctx context.Context, msg *domain.Message) error {
	var event domain.TransactionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Warn("failed to decode rejected transaction event",
			"message_id", msg.ID,
			"error", err)
		return err
	}

	newValues, _ := json.Marshal(map[string]any{
		"transactionId": event.TransactionID,
		"status":        event.Status,
		"fraudScore":    event.Score,
		"riskLevel":     event.RiskLevel,
	})

	entry := &domain.AuditEntry{
		Actor:      systemActor,
		Action:     domain.AuditActionAutoReject,
		EntityType: "transaction",
		EntityID:   event.RecordID,
		NewValues:  string(newValues),
		Reason:     reasonSummary(event.Reasons),
	}

	if err := w.audit.Record(ctx, entry); err != nil {
		slog.Error("failed to record auto-rejection audit entry",
			"transaction_id", event.TransactionID,
			"error", err)
		return err
	}

	slog.Info("auto-rejection audited",
		"transaction_id", event.TransactionID,
		"score", event.Score)
	return nil
}

func reasonSummary(reasons []string) string {
	if len(reasons) == 0 {
		return "fraud score above rejection threshold"
	}
	summary := reasons[0]
	for _, r := range reasons[1:] {
		summary += "; " + r
	}
	return summary
}
