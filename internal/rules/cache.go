// Package rules provides the fraud rule cache and the rule management
// service consumed by the scoring engine and the API layer.
package rules

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// Source yields the active rule set. The scoring engine depends on this
// narrow contract so tests can stub the rule set without a cache.
type Source interface {
	GetActiveRules(ctx context.Context) ([]*domain.Rule, error)
}

// Cache memoizes the active and currently valid rule set for a TTL.
// The snapshot is replaced wholesale on refresh; concurrent misses
// collapse into a single repository fetch. A refetch error propagates
// to the caller; an expired snapshot is never served.
type Cache struct {
	repo domain.RuleRepository
	ttl  time.Duration

	mu       sync.RWMutex
	snapshot *snapshot

	group singleflight.Group

	now       func() time.Time
	onRefresh func()
}

type snapshot struct {
	rules     []*domain.Rule
	expiresAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRefreshHook registers a callback invoked after every repository
// refetch, used for metrics.
func WithRefreshHook(fn func()) Option {
	return func(c *Cache) { c.onRefresh = fn }
}

// NewCache creates a rule cache over the given repository.
func NewCache(repo domain.RuleRepository, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = domain.DefaultRuleCacheTTL
	}
	c := &Cache{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetActiveRules returns the cached rule set, refetching when the
// snapshot is missing or expired.
func (c *Cache) GetActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()

	now := c.now()
	if snap != nil && now.Before(snap.expiresAt) {
		return snap.rules, nil
	}

	// Collapse concurrent misses into one in-flight refresh.
	v, err, _ := c.group.Do("active-rules", func() (any, error) {
		// A concurrent caller may have refreshed while this one
		// waited on the group.
		c.mu.RLock()
		cur := c.snapshot
		c.mu.RUnlock()
		if cur != nil && c.now().Before(cur.expiresAt) {
			return cur.rules, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Rule), nil
}

func (c *Cache) refresh(ctx context.Context) ([]*domain.Rule, error) {
	now := c.now()

	fetched, err := c.repo.ListActiveRules(ctx, now)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = &snapshot{rules: fetched, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	if c.onRefresh != nil {
		c.onRefresh()
	}
	slog.Info("fraud rules cache refreshed", "rules_count", len(fetched))

	return fetched, nil
}

// Invalidate forces the next GetActiveRules call to refetch. Every rule
// mutation must call this to avoid serving stale rules.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
	slog.Info("fraud rules cache invalidated")
}
