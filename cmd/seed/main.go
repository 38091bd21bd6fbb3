// Command seed inserts the starter fraud rule set. It is idempotent:
// rules that already exist (same type and value) are skipped.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/repository"
)

const seedActor = "seed"

type seedRule struct {
	Type        domain.RuleType
	Name        string
	Description string
	Value       interface{}
	ScoreImpact float64
	Reason      string
}

func starterRules() []seedRule {
	var out []seedRule

	suspiciousDomains := []struct {
		domain string
		reason string
	}{
		{"yimail.com", "Nonexistent domain resembling Gmail"},
		{"hotmial.com", "Nonexistent domain resembling Hotmail"},
		{"gmial.com", "Nonexistent domain resembling Gmail"},
		{"outlok.com", "Nonexistent domain resembling Outlook"},
		{"yahooo.com", "Nonexistent domain resembling Yahoo"},
		{"tempmail.com", "Disposable mail service used in fraud"},
		{"10minutemail.com", "Disposable mail service used in fraud"},
		{"guerrillamail.com", "Disposable mail service used in fraud"},
		{"mailinator.com", "Disposable mail service used in fraud"},
	}
	for _, d := range suspiciousDomains {
		out = append(out, seedRule{
			Type:        domain.RuleSuspiciousDomain,
			Name:        fmt.Sprintf("Suspicious domain: %s", d.domain),
			Description: fmt.Sprintf("Automatic block for emails at %s", d.domain),
			Value:       map[string]string{"domain": d.domain},
			ScoreImpact: 0.7,
			Reason:      d.reason,
		})
	}

	lowAmounts := []struct {
		franchise string
		amount    float64
	}{
		{"visa", 50},
		{"mastercard", 50},
		{"amex", 100},
		{"discover", 50},
	}
	for _, r := range lowAmounts {
		out = append(out, seedRule{
			Type:        domain.RuleLowAmount,
			Name:        fmt.Sprintf("Low amounts %s", r.franchise),
			Description: fmt.Sprintf("%s transactions under $%.0f get a reduced base score", r.franchise, r.amount),
			Value:       map[string]interface{}{"franchise": r.franchise, "amount": r.amount},
			ScoreImpact: -0.2,
			Reason:      fmt.Sprintf("%s transactions under $%.0f are generally low risk", r.franchise, r.amount),
		})
	}

	return out
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg := domain.DefaultConfig()
	if v := os.Getenv("SMAF_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("SMAF_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	existing, _, err := repo.ListRules(ctx, domain.RuleFilter{Limit: 1000})
	if err != nil {
		slog.Error("failed to list existing rules", "error", err)
		os.Exit(1)
	}

	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[string(r.Type)+"|"+r.Value] = true
	}

	inserted := 0
	for _, s := range starterRules() {
		raw, err := json.Marshal(s.Value)
		if err != nil {
			slog.Error("failed to encode rule value", "name", s.Name, "error", err)
			os.Exit(1)
		}
		value := string(raw)

		if seen[string(s.Type)+"|"+value] {
			slog.Info("rule already exists, skipping", "name", s.Name)
			continue
		}

		payload, err := domain.ParsePayload(s.Type, value)
		if err != nil {
			slog.Error("invalid seed rule value", "name", s.Name, "error", err)
			os.Exit(1)
		}

		now := time.Now().UTC()
		rule := &domain.Rule{
			Type:        s.Type,
			Name:        s.Name,
			Description: s.Description,
			Value:       value,
			Payload:     payload,
			ScoreImpact: s.ScoreImpact,
			IsActive:    true,
			Reason:      s.Reason,
			CreatedBy:   seedActor,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.CreateRule(ctx, rule); err != nil {
			slog.Error("failed to insert rule", "name", s.Name, "error", err)
			os.Exit(1)
		}

		inserted++
		slog.Info("rule inserted", "id", rule.ID, "name", rule.Name)
	}

	slog.Info("seed complete", "inserted", inserted, "skipped", len(starterRules())-inserted)
}
