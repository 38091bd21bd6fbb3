package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/card"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// Service manages the fraud rule lifecycle. Every mutation invalidates
// the rule cache, appends an audit entry and publishes a rule-changed
// event; audit and bus failures are logged, never propagated.
type Service struct {
	repo  domain.RuleRepository
	cache *Cache
	audit domain.AuditTrail
	bus   domain.EventBus
}

// NewService creates a rule management service. Audit and bus are
// optional.
func NewService(repo domain.RuleRepository, cache *Cache, audit domain.AuditTrail, bus domain.EventBus) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		audit: audit,
		bus:   bus,
	}
}

// RuleInput carries the caller-supplied fields of a rule mutation.
type RuleInput struct {
	Type        domain.RuleType `json:"ruleType"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Value       json.RawMessage `json:"value"`
	ScoreImpact float64         `json:"scoreImpact"`
	IsActive    *bool           `json:"isActive,omitempty"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidUntil  *time.Time      `json:"validUntil,omitempty"`
	Reason      string          `json:"reason"`
}

func (in *RuleInput) validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("unsupported rule type: %s", in.Type)
	}
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.ScoreImpact < -1.0 || in.ScoreImpact > 1.0 {
		return fmt.Errorf("scoreImpact must be within [-1.0, 1.0]")
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && !in.ValidUntil.After(*in.ValidFrom) {
		return fmt.Errorf("validUntil must be after validFrom")
	}
	if len(in.Value) == 0 {
		return fmt.Errorf("value is required")
	}
	return nil
}

// normalizeValue validates the payload and, for card-bound rule types,
// replaces a raw card number with its hash and last four digits so the
// PAN is never stored.
func normalizeValue(t domain.RuleType, raw json.RawMessage) (string, domain.RulePayload, error) {
	value := string(raw)

	if t.CardBound() {
		var v struct {
			CardNumber string `json:"cardNumber"`
			CardHash   string `json:"cardHash"`
			LastFour   string `json:"lastFourDigits"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", nil, fmt.Errorf("invalid %s value: %w", t, err)
		}
		if v.CardNumber != "" {
			v.CardHash = card.Hash(v.CardNumber)
			v.LastFour = card.LastFour(v.CardNumber)
		}
		if v.CardHash == "" {
			return "", nil, fmt.Errorf("invalid %s value: cardNumber or cardHash is required", t)
		}
		hashed, err := json.Marshal(map[string]string{
			"cardHash":       v.CardHash,
			"lastFourDigits": v.LastFour,
		})
		if err != nil {
			return "", nil, err
		}
		value = string(hashed)
	}

	payload, err := domain.ParsePayload(t, value)
	if err != nil {
		return "", nil, err
	}
	return value, payload, nil
}

// Create validates, normalizes and persists a new rule.
func (s *Service) Create(ctx context.Context, in *RuleInput, actor, ip string) (*domain.Rule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	value, payload, err := normalizeValue(in.Type, in.Value)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule := &domain.Rule{
		Type:        in.Type,
		Name:        in.Name,
		Description: in.Description,
		Value:       value,
		Payload:     payload,
		ScoreImpact: in.ScoreImpact,
		IsActive:    true,
		ValidFrom:   in.ValidFrom,
		ValidUntil:  in.ValidUntil,
		Reason:      in.Reason,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	s.afterMutation(ctx, rule, domain.AuditActionCreate, "", rule, in.Reason, actor, ip)

	slog.Info("fraud rule created", "rule_id", rule.ID, "rule_type", rule.Type, "actor", actor)
	return rule, nil
}

// Update validates and persists changes to an existing rule.
func (s *Service) Update(ctx context.Context, id int64, in *RuleInput, actor, ip string) (*domain.Rule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	old := marshalRule(rule)

	value, payload, err := normalizeValue(in.Type, in.Value)
	if err != nil {
		return nil, err
	}

	rule.Type = in.Type
	rule.Name = in.Name
	rule.Description = in.Description
	rule.Value = value
	rule.Payload = payload
	rule.ScoreImpact = in.ScoreImpact
	rule.ValidFrom = in.ValidFrom
	rule.ValidUntil = in.ValidUntil
	if in.Reason != "" {
		rule.Reason = in.Reason
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
	rule.UpdatedBy = actor
	rule.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	s.afterMutation(ctx, rule, domain.AuditActionUpdate, old, rule, in.Reason, actor, ip)

	slog.Info("fraud rule updated", "rule_id", rule.ID, "actor", actor)
	return rule, nil
}

// Delete removes a rule permanently.
func (s *Service) Delete(ctx context.Context, id int64, reason, actor, ip string) error {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return err
	}
	old := marshalRule(rule)

	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	s.afterMutation(ctx, rule, domain.AuditActionDelete, old, nil, reason, actor, ip)

	slog.Info("fraud rule deleted", "rule_id", id, "actor", actor)
	return nil
}

// Toggle activates or deactivates a rule.
func (s *Service) Toggle(ctx context.Context, id int64, active bool, reason, actor, ip string) (*domain.Rule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	old := marshalRule(rule)

	rule.IsActive = active
	rule.UpdatedBy = actor
	rule.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to toggle rule: %w", err)
	}

	action := domain.AuditActionActivate
	if !active {
		action = domain.AuditActionDeactivate
	}
	s.afterMutation(ctx, rule, action, old, rule, reason, actor, ip)

	slog.Info("fraud rule status toggled", "rule_id", rule.ID, "is_active", active, "actor", actor)
	return rule, nil
}

// Get returns one rule by id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Rule, error) {
	return s.repo.GetRule(ctx, id)
}

// List returns rules matching the filter plus the total count.
func (s *Service) List(ctx context.Context, f domain.RuleFilter) ([]*domain.Rule, int64, error) {
	return s.repo.ListRules(ctx, f)
}

// afterMutation invalidates the cache and records the mutation. Audit
// and bus failures must not fail the mutation itself.
func (s *Service) afterMutation(ctx context.Context, rule *domain.Rule, action, old string, updated *domain.Rule, reason, actor, ip string) {
	s.cache.Invalidate()

	if s.audit != nil {
		entry := &domain.AuditEntry{
			Actor:      actor,
			Action:     action,
			EntityType: "fraud_rule",
			EntityID:   rule.ID,
			OldValues:  old,
			Reason:     reason,
			IPAddress:  ip,
			CreatedAt:  time.Now().UTC(),
		}
		if updated != nil {
			entry.NewValues = marshalRule(updated)
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			slog.Error("failed to record rule audit entry", "rule_id", rule.ID, "action", action, "error", err)
		}
	}

	if s.bus != nil {
		payload, _ := json.Marshal(domain.RuleEvent{RuleID: rule.ID, Type: rule.Type, Action: action})
		if err := s.bus.Publish(ctx, domain.TopicRuleChanged, payload); err != nil {
			slog.Error("failed to publish rule event", "rule_id", rule.ID, "error", err)
		}
	}
}

func marshalRule(r *domain.Rule) string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}
