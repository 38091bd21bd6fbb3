package repository

import "strings"

// Schema definitions for the SMAF database.
// Record ids are auto-assigned, which needs per-driver DDL: SQLite uses
// INTEGER PRIMARY KEY AUTOINCREMENT, PostgreSQL uses BIGSERIAL. The
// __ID__ marker is substituted per driver; everything else is shared.

const schemaFraudRules = `
CREATE TABLE IF NOT EXISTS fraud_rules (
    id __ID__,
    rule_type TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    value TEXT NOT NULL,
    score_impact REAL NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    valid_from TEXT,
    valid_until TEXT,
    reason TEXT,
    created_by TEXT,
    updated_by TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_rules_type ON fraud_rules(rule_type);
CREATE INDEX IF NOT EXISTS idx_fraud_rules_active ON fraud_rules(is_active);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id __ID__,
    transaction_id TEXT NOT NULL UNIQUE,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    merchant_id TEXT NOT NULL,
    merchant_name TEXT NOT NULL,
    card_number TEXT NOT NULL,
    last_four_digits TEXT NOT NULL,
    card_type TEXT NOT NULL,
    operation_type TEXT NOT NULL,
    customer_email TEXT NOT NULL,
    country TEXT,
    description TEXT,
    fraud_score REAL NOT NULL,
    fraud_reasons TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    applied_rules TEXT NOT NULL,
    status TEXT NOT NULL,
    reviewed_by TEXT,
    reviewed_at TIMESTAMP,
    review_reason TEXT,
    processed_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_ref ON transactions(transaction_id);
CREATE INDEX IF NOT EXISTS idx_transactions_email ON transactions(customer_email, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
CREATE INDEX IF NOT EXISTS idx_transactions_risk ON transactions(risk_level);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
`

const schemaRejections = `
CREATE TABLE IF NOT EXISTS fraud_rule_rejections (
    id __ID__,
    rule_id INTEGER NOT NULL,
    transaction_id INTEGER NOT NULL,
    rule_type TEXT NOT NULL,
    rejection_reason TEXT NOT NULL,
    fraud_score REAL NOT NULL,
    transaction_amount REAL NOT NULL,
    customer_email TEXT,
    card_type TEXT NOT NULL,
    rejected_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rejections_rule ON fraud_rule_rejections(rule_id);
CREATE INDEX IF NOT EXISTS idx_rejections_transaction ON fraud_rule_rejections(transaction_id);
CREATE INDEX IF NOT EXISTS idx_rejections_type ON fraud_rule_rejections(rule_type);
CREATE INDEX IF NOT EXISTS idx_rejections_rejected_at ON fraud_rule_rejections(rejected_at);
`

const schemaAuditLogs = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id __ID__,
    actor TEXT NOT NULL,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id INTEGER NOT NULL,
    old_values TEXT,
    new_values TEXT,
    reason TEXT,
    ip_address TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs(actor);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at);
`

// AllSchemas returns all schema statements for the given driver.
func AllSchemas(driver string) []string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	raw := []string{
		schemaFraudRules,
		schemaTransactions,
		schemaRejections,
		schemaAuditLogs,
	}

	schemas := make([]string, len(raw))
	for i, s := range raw {
		schemas[i] = strings.ReplaceAll(s, "__ID__", idColumn)
	}
	return schemas
}
