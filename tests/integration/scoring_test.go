//go:build integration
// +build integration

// Package integration provides end-to-end tests for the SMAF fraud
// scoring pipeline against a running server.
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The tests create the rules they need through the API, so they only
// require a server started with an empty database:
//
//	SMAF_SQLITE_PATH=$(mktemp) go run ./cmd/smaf
//	SMAF_TEST_URL=http://localhost:8080 go test -tags=integration ./tests/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("SMAF_TEST_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

var client = &http.Client{Timeout: 10 * time.Second}

func doRequest(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, baseURL()+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

type evaluateResponse struct {
	Score             float64  `json:"score"`
	Reasons           []string `json:"reasons"`
	RiskLevel         string   `json:"riskLevel"`
	AppliedRules      []int64  `json:"appliedRules"`
	RecommendedStatus string   `json:"recommendedStatus"`
}

type ruleResponse struct {
	ID int64 `json:"id"`
}

func createRule(t *testing.T, ruleType, name string, value interface{}, impact float64) int64 {
	t.Helper()

	var rule ruleResponse
	code := doRequest(t, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"ruleType":    ruleType,
		"name":        name,
		"value":       value,
		"scoreImpact": impact,
	}, &rule)
	if code != http.StatusCreated {
		t.Fatalf("failed to create rule %s: status %d", name, code)
	}

	t.Cleanup(func() {
		doRequest(t, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", rule.ID), nil, nil)
	})
	return rule.ID
}

func evaluate(t *testing.T, input map[string]interface{}) evaluateResponse {
	t.Helper()

	var resp evaluateResponse
	code := doRequest(t, http.MethodPost, "/api/v1/evaluate", input, &resp)
	if code != http.StatusOK {
		t.Fatalf("evaluate failed: status %d", code)
	}
	return resp
}

func TestServerHealthy(t *testing.T) {
	var resp map[string]string
	code := doRequest(t, http.MethodGet, "/health", nil, &resp)
	if code != http.StatusOK {
		t.Fatalf("health status %d", code)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %q", resp["status"])
	}
}

func TestBaselineScore(t *testing.T) {
	resp := evaluate(t, map[string]interface{}{
		"amount":        200,
		"cardType":      "visa",
		"cardNumber":    "4111111111111111",
		"customerEmail": "baseline@example.com",
	})

	if resp.Score != 0.5 {
		t.Errorf("score = %v, want base 0.5", resp.Score)
	}
	if resp.RecommendedStatus != "pending" {
		t.Errorf("recommended status = %q", resp.RecommendedStatus)
	}
}

func TestLowAmountPath(t *testing.T) {
	createRule(t, "low_amount", "Visa small purchases",
		map[string]interface{}{"franchise": "visa", "amount": 50}, -0.2)

	resp := evaluate(t, map[string]interface{}{
		"amount":        30,
		"cardType":      "visa",
		"cardNumber":    "4111111111111111",
		"customerEmail": "small@example.com",
		"operationType": "credit",
	})

	if resp.Score != 0.1 {
		t.Errorf("score = %v, want low-amount base 0.1", resp.Score)
	}
	if resp.RecommendedStatus != "approved" {
		t.Errorf("recommended status = %q", resp.RecommendedStatus)
	}
}

func TestBlacklistDominance(t *testing.T) {
	createRule(t, "blocked_franchise", "Block diners",
		map[string]interface{}{"franchise": "diners"}, 0.8)
	createRule(t, "email_whitelist", "Trusted buyer",
		map[string]interface{}{"email": "trusted@example.com"}, -0.5)

	// The whitelist must not soften a blacklist hit.
	resp := evaluate(t, map[string]interface{}{
		"amount":        100,
		"cardType":      "diners",
		"cardNumber":    "36700102000000",
		"customerEmail": "trusted@example.com",
		"operationType": "credit",
	})

	if resp.Score != 0.8 {
		t.Errorf("score = %v, want blacklist total 0.8", resp.Score)
	}
	if resp.RecommendedStatus != "rejected" {
		t.Errorf("recommended status = %q", resp.RecommendedStatus)
	}
	if len(resp.AppliedRules) != 1 {
		t.Errorf("applied rules = %v, want only the blacklist rule", resp.AppliedRules)
	}
}

func TestHighAmountHeuristic(t *testing.T) {
	resp := evaluate(t, map[string]interface{}{
		"amount":        2500,
		"cardType":      "visa",
		"cardNumber":    "4111111111111111",
		"customerEmail": "bigspender@example.com",
	})

	if resp.Score != 0.8 {
		t.Errorf("score = %v, want 0.5 base + 0.3 high amount", resp.Score)
	}
	found := false
	for _, r := range resp.Reasons {
		if r == "High amount" {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, missing high amount", resp.Reasons)
	}
}

func TestRejectedTransactionLifecycle(t *testing.T) {
	createRule(t, "suspicious_domain", "Disposable mail",
		map[string]interface{}{"domain": "wegwerfmail.test"}, 0.9)

	var tx struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	code := doRequest(t, http.MethodPost, "/api/v1/transactions/process", map[string]interface{}{
		"amount":        100,
		"cardType":      "visa",
		"cardNumber":    "4111111111111111",
		"customerEmail": "fraudster@wegwerfmail.test",
	}, &tx)
	if code != http.StatusCreated {
		t.Fatalf("process failed: status %d", code)
	}
	if tx.Status != "rejected" {
		t.Fatalf("status = %q, want rejected", tx.Status)
	}

	// A rejected transaction is final; manual review must refuse it.
	code = doRequest(t, http.MethodPost,
		fmt.Sprintf("/api/v1/transactions/%d/approve", tx.ID),
		map[string]string{"reason": "testing"}, nil)
	if code != http.StatusConflict {
		t.Errorf("approve on rejected: status %d, want 409", code)
	}

	var stats struct {
		Total int64 `json:"totalRejections"`
	}
	code = doRequest(t, http.MethodGet, "/api/v1/rejections/stats", nil, &stats)
	if code != http.StatusOK {
		t.Fatalf("rejection stats: status %d", code)
	}
	if stats.Total < 1 {
		t.Errorf("total rejections = %d, want at least 1", stats.Total)
	}
}
