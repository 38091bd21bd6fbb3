package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/repository"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/rules"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/scoring"
	"github.com/VictorQ-I/SMAF-BACKEND/internal/transactions"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	rules        *rules.Service
	transactions *transactions.Service
	engine       *scoring.Engine
	repo         domain.Repository
	bus          domain.EventBus
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(ruleSvc *rules.Service, txSvc *transactions.Service, engine *scoring.Engine, repo domain.Repository, bus domain.EventBus, version string) *Handler {
	return &Handler{
		rules:        ruleSvc,
		transactions: txSvc,
		engine:       engine,
		repo:         repo,
		bus:          bus,
		version:      version,
	}
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	Score             float64                  `json:"score"`
	Reasons           []string                 `json:"reasons"`
	RiskLevel         domain.RiskLevel         `json:"riskLevel"`
	AppliedRules      []int64                  `json:"appliedRules"`
	RecommendedStatus domain.TransactionStatus `json:"recommendedStatus"`
	Metadata          struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /evaluate: it scores a transaction without
// persisting it.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	in, ok := decodeTransactionInput(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Evaluate(ctx, in)
	if err != nil {
		slog.Error("transaction evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	resp := EvaluateResponse{
		Score:             result.Score,
		Reasons:           result.Reasons,
		RiskLevel:         result.RiskLevel,
		AppliedRules:      result.AppliedRules,
		RecommendedStatus: scoring.StatusFromScore(result.Score),
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// CreateTransaction handles POST /transactions: it scores and persists
// a transaction using the strict status boundaries.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTransactionInput(w, r)
	if !ok {
		return
	}

	tx, err := h.transactions.Create(r.Context(), in)
	if err != nil {
		slog.Error("failed to create transaction", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to create transaction",
		})
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// ProcessTransaction handles POST /transactions/process: the full
// scoring pipeline with defaults and rejection attribution.
func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if in.Amount <= 0 || in.CustomerEmail == "" || in.CardNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount, customerEmail and cardNumber are required",
		})
		return
	}

	tx, err := h.transactions.ProcessAndStore(r.Context(), &in)
	if err != nil {
		slog.Error("failed to process transaction", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to process transaction",
		})
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// GetTransaction retrieves a transaction by numeric id or by its
// TXN reference.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := chi.URLParam(r, "id")

	var (
		tx  *domain.Transaction
		err error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		tx, err = h.transactions.Get(ctx, id)
	} else {
		tx, err = h.transactions.GetByRef(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "ref", ref, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions handles GET /transactions with filters and
// pagination.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := domain.TransactionFilter{
		Status:    domain.TransactionStatus(q.Get("status")),
		RiskLevel: domain.RiskLevel(q.Get("riskLevel")),
		CardType:  q.Get("cardType"),
		Page:      parseIntParam(q.Get("page"), 1),
		Limit:     parseIntParam(q.Get("limit"), 20),
	}
	f.DateFrom = parseTimeParam(q.Get("dateFrom"))
	f.DateTo = parseTimeParam(q.Get("dateTo"))

	txs, total, err := h.transactions.List(r.Context(), f)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, listResponse(txs, total, f.Page, f.Limit))
}

// TransactionStats handles GET /transactions/stats.
func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.transactions.Stats(r.Context())
	if err != nil {
		slog.Error("failed to compute transaction stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ReviewRequest is the request body for approve and reject.
type ReviewRequest struct {
	Reason string `json:"reason"`
}

// ApproveTransaction handles POST /transactions/{id}/approve.
func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.transactions.Approve)
}

// RejectTransaction handles POST /transactions/{id}/reject.
func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.transactions.Reject)
}

type reviewFunc func(ctx context.Context, id int64, reason, reviewer, ip string) (*domain.Transaction, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id must be numeric",
		})
		return
	}

	var req ReviewRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	tx, err := fn(ctx, id, req.Reason, GetActor(ctx), r.RemoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
		case errors.Is(err, transactions.ErrNotPending):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "only pending transactions can be reviewed",
			})
		default:
			slog.Error("failed to review transaction", "id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to review transaction",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListRules handles GET /rules with filters and pagination.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := domain.RuleFilter{
		Type:  domain.RuleType(q.Get("ruleType")),
		Page:  parseIntParam(q.Get("page"), 1),
		Limit: parseIntParam(q.Get("limit"), 20),
	}
	if v := q.Get("isActive"); v != "" {
		active := v == "true"
		f.IsActive = &active
	}

	ruleList, total, err := h.rules.List(r.Context(), f)
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, listResponse(ruleList, total, f.Page, f.Limit))
}

// GetRule handles GET /rules/{id}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id must be numeric",
		})
		return
	}

	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to get rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateRule handles POST /rules.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in rules.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rule, err := h.rules.Create(ctx, &in, GetActor(ctx), r.RemoteAddr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule handles PUT /rules/{id}.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id must be numeric",
		})
		return
	}

	var in rules.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rule, err := h.rules.Update(ctx, id, &in, GetActor(ctx), r.RemoteAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /rules/{id}.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id must be numeric",
		})
		return
	}

	var req ReviewRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.rules.Delete(ctx, id, req.Reason, GetActor(ctx), r.RemoteAddr); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ToggleRuleRequest is the request body for PATCH /rules/{id}/toggle.
type ToggleRuleRequest struct {
	IsActive bool   `json:"isActive"`
	Reason   string `json:"reason"`
}

// ToggleRule handles PATCH /rules/{id}/toggle.
func (h *Handler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id must be numeric",
		})
		return
	}

	var req ToggleRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rule, err := h.rules.Toggle(ctx, id, req.IsActive, req.Reason, GetActor(ctx), r.RemoteAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to toggle rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to toggle rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// RejectionStats handles GET /rejections/stats.
func (h *Handler) RejectionStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := domain.RejectionFilter{
		RuleType: domain.RuleType(q.Get("ruleType")),
	}
	if v := q.Get("ruleId"); v != "" {
		f.RuleID, _ = strconv.ParseInt(v, 10, 64)
	}
	f.DateFrom = parseTimeParam(q.Get("dateFrom"))
	f.DateTo = parseTimeParam(q.Get("dateTo"))

	stats, err := h.repo.RejectionStats(r.Context(), f)
	if err != nil {
		slog.Error("failed to compute rejection stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute rejection stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListAuditLogs handles GET /audit-logs.
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := domain.AuditFilter{
		Actor:      q.Get("actor"),
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		Page:       parseIntParam(q.Get("page"), 1),
		Limit:      parseIntParam(q.Get("limit"), 20),
	}
	if v := q.Get("entityId"); v != "" {
		f.EntityID, _ = strconv.ParseInt(v, 10, 64)
	}
	f.DateFrom = parseTimeParam(q.Get("dateFrom"))
	f.DateTo = parseTimeParam(q.Get("dateTo"))

	entries, total, err := h.repo.ListAuditEntries(r.Context(), f)
	if err != nil {
		slog.Error("failed to list audit entries", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list audit entries",
		})
		return
	}

	writeJSON(w, http.StatusOK, listResponse(entries, total, f.Page, f.Limit))
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func decodeTransactionInput(w http.ResponseWriter, r *http.Request) (*domain.TransactionInput, bool) {
	var in domain.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil, false
	}

	if in.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return nil, false
	}
	if in.CardType == "" || in.CardNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "cardType and cardNumber are required",
		})
		return nil, false
	}
	if in.CustomerEmail == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerEmail is required",
		})
		return nil, false
	}

	return &in, true
}

func parseIntParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseTimeParam(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		if t, err = time.Parse("2006-01-02", v); err != nil {
			return nil
		}
	}
	return &t
}

func listResponse[T any](items []T, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
