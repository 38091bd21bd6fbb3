package domain

import (
	"context"
	"time"
)

// Audit actions recorded by the trail.
const (
	AuditActionCreate             = "create"
	AuditActionUpdate             = "update"
	AuditActionDelete             = "delete"
	AuditActionActivate           = "activate"
	AuditActionDeactivate         = "deactivate"
	AuditActionApproveTransaction = "approve_transaction"
	AuditActionRejectTransaction  = "reject_transaction"
	AuditActionAutoReject         = "auto_reject"
)

// AuditEntry is one append-only record of a rule mutation or a manual
// review decision. Entries are immutable once written.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   int64     `json:"entityId"`
	OldValues  string    `json:"oldValues,omitempty"`
	NewValues  string    `json:"newValues,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuditFilter narrows audit trail listings.
type AuditFilter struct {
	Actor      string
	Action     string
	EntityType string
	EntityID   int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
}

// AuditTrail is the append-only change log. Record failures are logged
// by callers and never propagate into the primary operation.
type AuditTrail interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, f AuditFilter) ([]*AuditEntry, int64, error)
}
