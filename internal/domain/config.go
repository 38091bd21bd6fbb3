package domain

import "time"

// Config holds the complete SMAF configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Repository RepositoryConfig `json:"repository"`
	RuleCache  RuleCacheConfig  `json:"ruleCache"`
	Activity   ActivityConfig   `json:"activity"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Scoring    ScoringConfig    `json:"scoring"`
	Auth       AuthConfig       `json:"auth"`
	Logging    LoggingConfig    `json:"logging"`
	Tracing    TracingConfig    `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// RuleCacheConfig holds rule cache settings.
type RuleCacheConfig struct {
	// TTL is how long a rule snapshot is served before a refetch.
	TTL time.Duration `json:"ttl"`
}

// ActivityConfig holds activity query settings. When RedisAddr is set,
// per-email velocity counters are kept in Redis as a fast path; the SQL
// store remains the source of truth.
type ActivityConfig struct {
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redisDb,omitempty"`
}

// ScoringConfig consolidates every scoring threshold and window so they
// can be tuned and tested without touching evaluation logic.
type ScoringConfig struct {
	// BaseScore is the pre-heuristic score when no rule matched.
	BaseScore float64 `json:"baseScore"`
	// LowAmountBaseScore replaces BaseScore when a low_amount rule matched.
	LowAmountBaseScore float64 `json:"lowAmountBaseScore"`

	// HighAmountThreshold triggers HighAmountScore when exceeded,
	// unless a low_amount rule already matched.
	HighAmountThreshold float64 `json:"highAmountThreshold"`
	HighAmountScore     float64 `json:"highAmountScore"`

	// SuspiciousCountries trigger SuspiciousCountryScore.
	SuspiciousCountries    []string `json:"suspiciousCountries"`
	SuspiciousCountryScore float64  `json:"suspiciousCountryScore"`

	// VelocityWindow bounds the transaction count and amount sum
	// heuristics; DuplicateWindow bounds duplicate detection.
	VelocityWindow  time.Duration `json:"velocityWindow"`
	DuplicateWindow time.Duration `json:"duplicateWindow"`

	MaxTransactionsPerWindow int64   `json:"maxTransactionsPerWindow"`
	VelocityScore            float64 `json:"velocityScore"`
	MaxAmountPerWindow       float64 `json:"maxAmountPerWindow"`
	AmountVelocityScore      float64 `json:"amountVelocityScore"`
	DuplicateScore           float64 `json:"duplicateScore"`
}

// AuthConfig holds JWT verification settings. User and session
// management live elsewhere; this service only verifies bearer tokens.
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	Secret  string `json:"-"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultRuleCacheTTL is how long the active rule snapshot is valid.
const DefaultRuleCacheTTL = 5 * time.Minute

// DefaultScoringConfig returns the production scoring thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:                0.5,
		LowAmountBaseScore:       0.1,
		HighAmountThreshold:      1000,
		HighAmountScore:          0.3,
		SuspiciousCountries:      []string{"XX", "YY"},
		SuspiciousCountryScore:   0.4,
		VelocityWindow:           time.Hour,
		DuplicateWindow:          5 * time.Minute,
		MaxTransactionsPerWindow: 5,
		VelocityScore:            0.5,
		MaxAmountPerWindow:       5000,
		AmountVelocityScore:      0.4,
		DuplicateScore:           0.6,
	}
}

// DefaultConfig returns a default configuration: SQLite storage, an
// in-process event bus, and no Redis counters.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./smaf.db",
		},
		RuleCache: RuleCacheConfig{
			TTL: DefaultRuleCacheTTL,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Auth: AuthConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "smaf",
		},
	}
}
