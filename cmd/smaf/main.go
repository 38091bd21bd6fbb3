// SMAF - real-time fraud scoring for card transactions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/activity"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/api"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/bus"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/metrics"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/processor"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/rejection"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/repository"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/rules"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/scoring"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/transactions"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := loadConfig()

	setupLogger(cfg.Logging)

	slog.Info("starting smaf",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"eventbus", cfg.EventBus.Type,
		"auth", cfg.Auth.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// Redis velocity counters are a fast path; the SQL store remains
	// authoritative when Redis is absent or unreachable.
	var counters *activity.Counters
	if cfg.Activity.RedisAddr != "" {
		counters, err = activity.NewCounters(ctx, cfg.Activity)
		if err != nil {
			slog.Warn("redis counters unavailable, falling back to sql activity queries", "error", err)
			counters = nil
		} else {
			slog.Info("redis activity counters initialized", "addr", cfg.Activity.RedisAddr)
		}
	}
	activitySvc := activity.NewService(repo, counters)

	// Scoring pipeline
	ruleCache := rules.NewCache(repo, cfg.RuleCache.TTL, rules.WithRefreshHook(m.ObserveCacheRefresh))
	engine := scoring.NewEngine(ruleCache, activitySvc, cfg.Scoring)
	recorder := rejection.NewRecorder(ruleCache, repo, m.ObserveRejections)
	proc := processor.New(engine)

	txSvc := transactions.NewService(repo, proc, engine, recorder, activitySvc, repo, busImpl, m, cfg.Scoring)
	ruleSvc := rules.NewService(repo, ruleCache, repo, busImpl)

	// Background auditor for automatic rejections
	auditor := worker.NewRejectionAuditor(busImpl, repo)
	if err := auditor.Start(ctx); err != nil {
		slog.Error("failed to start rejection auditor", "error", err)
		os.Exit(1)
	}
	defer auditor.Stop()

	// HTTP server
	srv := api.NewServer(cfg.Server, cfg.Auth, ruleSvc, txSvc, engine, repo, busImpl, m, registry, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("smaf is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("smaf shutdown complete")
}

// loadConfig applies SMAF_* environment overrides on top of the
// defaults.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	if v := os.Getenv("SMAF_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SMAF_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SMAF_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("SMAF_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("SMAF_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("SMAF_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Repository.PostgresPort = port
		}
	}
	if v := os.Getenv("SMAF_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("SMAF_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("SMAF_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("SMAF_POSTGRES_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := os.Getenv("SMAF_REDIS_ADDR"); v != "" {
		cfg.Activity.RedisAddr = v
		cfg.Activity.RedisPassword = os.Getenv("SMAF_REDIS_PASSWORD")
		if db := os.Getenv("SMAF_REDIS_DB"); db != "" {
			if n, err := strconv.Atoi(db); err == nil {
				cfg.Activity.RedisDB = n
			}
		}
	}

	if v := os.Getenv("SMAF_BUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("SMAF_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
		cfg.EventBus.NATSToken = os.Getenv("SMAF_NATS_TOKEN")
	}

	if v := os.Getenv("SMAF_RULE_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.RuleCache.TTL = ttl
		}
	}

	if v := os.Getenv("SMAF_AUTH_SECRET"); v != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Secret = v
	}

	if v := os.Getenv("SMAF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SMAF_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if os.Getenv("SMAF_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	return cfg
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  SMAF - Fraud Transaction Scoring")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /api/v1/evaluate                  - Score without persisting")
	fmt.Println("    POST   /api/v1/transactions              - Create and score a transaction")
	fmt.Println("    POST   /api/v1/transactions/process      - Full pipeline with defaults")
	fmt.Println("    GET    /api/v1/transactions              - List transactions")
	fmt.Println("    GET    /api/v1/transactions/stats        - Transaction statistics")
	fmt.Println("    POST   /api/v1/transactions/{id}/approve - Approve a pending transaction")
	fmt.Println("    POST   /api/v1/transactions/{id}/reject  - Reject a pending transaction")
	fmt.Println("    GET    /api/v1/rules                     - List fraud rules")
	fmt.Println("    POST   /api/v1/rules                     - Create a fraud rule")
	fmt.Println("    PATCH  /api/v1/rules/{id}/toggle         - Activate or deactivate a rule")
	fmt.Println("    GET    /api/v1/rejections/stats          - Rule rejection statistics")
	fmt.Println("    GET    /api/v1/audit-logs                - Audit trail")
	fmt.Println("    GET    /health                           - Health check")
	fmt.Println("    GET    /metrics                          - Prometheus metrics")
	fmt.Println()
}
