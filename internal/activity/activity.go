// Package activity answers the windowed transaction history queries the
// scoring engine depends on. The SQL store is the source of truth; when
// Redis is configured, per-email counters serve count and sum lookups
// without hitting the database on the payment path.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// Service implements domain.ActivityQuery.
type Service struct {
	store    domain.TransactionStore
	counters *Counters
}

// NewService creates an activity query service. counters is optional;
// without it every lookup goes to the store.
func NewService(store domain.TransactionStore, counters *Counters) *Service {
	return &Service{store: store, counters: counters}
}

// CountSince returns the number of transactions for an email since the
// given time. Counter errors fall back to the store.
func (s *Service) CountSince(ctx context.Context, email string, since time.Time) (int64, error) {
	if s.counters != nil {
		count, err := s.counters.Count(ctx, email, time.Since(since))
		if err == nil {
			return count, nil
		}
		slog.Warn("redis transaction counter unavailable, falling back to store", "error", err)
	}
	return s.store.CountByEmailSince(ctx, email, since)
}

// SumAmountSince returns the cumulative transaction amount for an email
// since the given time.
func (s *Service) SumAmountSince(ctx context.Context, email string, since time.Time) (float64, error) {
	if s.counters != nil {
		sum, err := s.counters.Sum(ctx, email, time.Since(since))
		if err == nil {
			return sum, nil
		}
		slog.Warn("redis amount counter unavailable, falling back to store", "error", err)
	}
	return s.store.SumAmountByEmailSince(ctx, email, since)
}

// HasDuplicate reports whether an identical-amount transaction exists
// for the email since the given time. Duplicate detection needs exact
// amounts, so it always queries the store.
func (s *Service) HasDuplicate(ctx context.Context, email string, amount float64, since time.Time) (bool, error) {
	return s.store.HasDuplicate(ctx, email, amount, since)
}

// Observe records a persisted transaction in the velocity counters.
// Callers invoke it after the store insert; failures are logged and
// swallowed since the store remains authoritative.
func (s *Service) Observe(ctx context.Context, email string, amount float64, window time.Duration) {
	if s.counters == nil {
		return
	}
	if err := s.counters.Observe(ctx, email, amount, window); err != nil {
		slog.Warn("failed to update velocity counters", "error", err, "customer_email", email)
	}
}

// Counters keeps windowed per-email transaction counters in Redis.
type Counters struct {
	client *redis.Client
}

// NewCounters connects to Redis and verifies connectivity.
func NewCounters(ctx context.Context, cfg domain.ActivityConfig) (*Counters, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Counters{client: client}, nil
}

// incrScript increments a counter and sets its TTL on first touch.
var incrScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// incrAmountScript accumulates a float amount with the same TTL rule.
var incrAmountScript = redis.NewScript(`
	local current = redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
	if redis.call('PTTL', KEYS[1]) < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// Observe bumps the count and amount counters for an email. Keys expire
// one window after first touch, so counts approximate a rolling window.
func (c *Counters) Observe(ctx context.Context, email string, amount float64, window time.Duration) error {
	countKey := counterKey("count", email)
	sumKey := counterKey("sum", email)

	if err := incrScript.Run(ctx, c.client, []string{countKey}, window.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to increment count: %w", err)
	}
	if err := incrAmountScript.Run(ctx, c.client, []string{sumKey},
		strconv.FormatFloat(amount, 'f', -1, 64), window.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to increment sum: %w", err)
	}
	return nil
}

// Count returns the windowed transaction count for an email. A missing
// key means no recent activity.
func (c *Counters) Count(ctx context.Context, email string, window time.Duration) (int64, error) {
	val, err := c.client.Get(ctx, counterKey("count", email)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Sum returns the windowed amount total for an email.
func (c *Counters) Sum(ctx context.Context, email string, window time.Duration) (float64, error) {
	val, err := c.client.Get(ctx, counterKey("sum", email)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Ping checks Redis connectivity.
func (c *Counters) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Counters) Close() error {
	return c.client.Close()
}

func counterKey(kind, email string) string {
	return "smaf:activity:" + kind + ":" + email
}
