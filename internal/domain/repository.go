package domain

import (
	"context"
	"time"
)

// RuleRepository is the persistent store of fraud rule records.
type RuleRepository interface {
	// ListActiveRules returns every rule that is active and whose
	// validity window contains the given day.
	ListActiveRules(ctx context.Context, day time.Time) ([]*Rule, error)

	ListRules(ctx context.Context, f RuleFilter) ([]*Rule, int64, error)
	GetRule(ctx context.Context, id int64) (*Rule, error)
	CreateRule(ctx context.Context, rule *Rule) error
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id int64) error
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	Type     RuleType
	IsActive *bool
	Page     int
	Limit    int
}

// TransactionStore persists scored transactions and answers the
// windowed activity queries the scoring engine depends on.
type TransactionStore interface {
	// CreateTransaction inserts the record and assigns tx.ID.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	GetTransactionByRef(ctx context.Context, transactionID string) (*Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, int64, error)

	// UpdateReview persists a manual review decision.
	UpdateReview(ctx context.Context, tx *Transaction) error

	TransactionStats(ctx context.Context) (*TransactionStats, error)

	CountByEmailSince(ctx context.Context, email string, since time.Time) (int64, error)
	SumAmountByEmailSince(ctx context.Context, email string, since time.Time) (float64, error)
	HasDuplicate(ctx context.Context, email string, amount float64, since time.Time) (bool, error)
}

// RejectionStore persists rejection attributions.
type RejectionStore interface {
	// CreateRejections inserts all attributions in one batch.
	CreateRejections(ctx context.Context, rejections []*RejectionAttribution) error
	RejectionStats(ctx context.Context, f RejectionFilter) (*RejectionStats, error)
}

// ActivityQuery answers point queries against transaction history. The
// scoring engine consumes this contract only; the windows it uses are
// configuration, not literals.
type ActivityQuery interface {
	CountSince(ctx context.Context, email string, since time.Time) (int64, error)
	SumAmountSince(ctx context.Context, email string, since time.Time) (float64, error)
	HasDuplicate(ctx context.Context, email string, amount float64, since time.Time) (bool, error)
}

// Repository is the full persistence surface, implemented by the SQL
// repository for both SQLite and PostgreSQL.
type Repository interface {
	RuleRepository
	TransactionStore
	RejectionStore
	AuditTrail

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
