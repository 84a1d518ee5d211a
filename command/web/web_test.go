package web

import (
	"context"
	"encoding/json"
	"errors"
	"finops-usage/analysis"
	"finops-usage/recommend"
	"finops-usage/refresh"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const sampleCSV = `ResourceName,ResourceType,Location,MeterCategory,MeterName,UsageQuantity,UnitPrice
vm1,Virtual Machine,eastus,Virtual Machines,D2s v3,730,0.62
sa1,Storage Account,eastus,Storage,Hot LRS,5000,0.03
`

type stubSource struct {
	mu   sync.Mutex
	body string
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func newTestServer(src *stubSource) http.Handler {
	engine := analysis.NewEngine(analysis.DefaultOptions(), recommend.New(recommend.DefaultPolicy()))
	return NewServer(refresh.New(src, engine), 10)
}

func do(t *testing.T, h http.Handler, method, target string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: invalid json %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, body
}

func TestCostSummary(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/cost-summary")
	if code != http.StatusOK {
		t.Fatalf("status %d: %v", code, body)
	}
	summary := body["summary"].(map[string]any)
	if summary["total_cost"] != 602.6 {
		t.Fatalf("total_cost = %v, want 602.6", summary["total_cost"])
	}
	if body["generation"] == "" || body["timestamp"] == nil {
		t.Fatalf("missing generation/timestamp: %v", body)
	}
}

func TestCostBreakdownPercentages(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/cost-breakdown?by=resource_type")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	buckets := body["breakdown"].([]any)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	first := buckets[0].(map[string]any)
	second := buckets[1].(map[string]any)
	if first["category"] != "Virtual Machine" || first["percentage"] != 75.11 || second["percentage"] != 24.89 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func TestRankingLimit(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/most-expensive-resources?limit=1")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	resources := body["resources"].([]any)
	if len(resources) != 1 || resources[0].(map[string]any)["name"] != "vm1" {
		t.Fatalf("unexpected resources: %v", resources)
	}
}

func TestRecommendationsIncludeTotal(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/recommendations")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if _, ok := body["total_potential_savings"].(float64); !ok {
		t.Fatalf("missing total_potential_savings: %v", body)
	}
	if n := int(body["count"].(float64)); n != len(body["recommendations"].([]any)) {
		t.Fatalf("count mismatch: %v", body)
	}
}

func TestEmptyDatasetIs404(t *testing.T) {
	h := newTestServer(&stubSource{body: "ResourceName,Location\n,eastus\n"})
	code, body := do(t, h, http.MethodGet, "/api/cost-summary")
	if code != http.StatusNotFound || body["error"] != "No usage data available" {
		t.Fatalf("expected 404, got %d %v", code, body)
	}
}

func TestSourceFailureIs503AndHealthDegraded(t *testing.T) {
	h := newTestServer(&stubSource{err: errors.New("connection refused")})
	code, _ := do(t, h, http.MethodGet, "/api/cost-summary")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	code, body := do(t, h, http.MethodGet, "/api/health")
	if code != http.StatusOK || body["status"] != "degraded" || body["state"] != "empty" {
		t.Fatalf("unexpected health: %d %v", code, body)
	}
}

func TestRefreshKeepsPreviousBundleOnFailure(t *testing.T) {
	src := &stubSource{body: sampleCSV}
	h := newTestServer(src)
	_, first := do(t, h, http.MethodPost, "/api/refresh-data")
	gen := first["generation"]

	src.mu.Lock()
	src.err = errors.New("timeout")
	src.mu.Unlock()
	code, _ := do(t, h, http.MethodPost, "/api/refresh-data")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on failed refresh, got %d", code)
	}

	code, body := do(t, h, http.MethodGet, "/api/cost-summary")
	if code != http.StatusOK || body["generation"] != gen {
		t.Fatalf("previous bundle should still be served: %d %v", code, body)
	}
	_, health := do(t, h, http.MethodGet, "/api/health")
	if health["status"] != "healthy" || health["last_error"] == nil {
		t.Fatalf("unexpected health: %v", health)
	}
}

func TestUsageReportFilter(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/usage-report?resource_type=storage&days=7")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	report := body["report"].(map[string]any)
	if report["total_cost"] != 150.0 || report["resource_count"] != 1.0 || report["period_days"] != 7.0 {
		t.Fatalf("unexpected report: %v", report)
	}
}

func TestTrendAnalysisLength(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/trend-analysis?days=7")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if n := len(body["trends"].([]any)); n != 7 {
		t.Fatalf("expected 7 trend points, got %d", n)
	}
	if body["synthetic"] != true {
		t.Fatalf("undated records should produce a synthetic trend")
	}
}

func TestHealthDegradedBeforeFirstComputation(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	code, body := do(t, h, http.MethodGet, "/api/health")
	if code != http.StatusOK || body["status"] != "degraded" || body["state"] != "empty" {
		t.Fatalf("unexpected health: %d %v", code, body)
	}
	if _, ok := body["last_error"]; ok {
		t.Fatalf("no refresh has failed yet: %v", body)
	}

	do(t, h, http.MethodGet, "/api/cost-summary")
	_, body = do(t, h, http.MethodGet, "/api/health")
	if body["status"] != "healthy" || body["state"] != "fresh" {
		t.Fatalf("unexpected health after first computation: %v", body)
	}
}

func TestDaysAboveMaximumRejected(t *testing.T) {
	h := newTestServer(&stubSource{body: sampleCSV})
	for _, path := range []string{"/api/trend-analysis?days=1000000000", "/api/usage-report?days=367"} {
		code, body := do(t, h, http.MethodGet, path)
		if code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %v", path, code, body)
		}
	}
	code, body := do(t, h, http.MethodGet, "/api/trend-analysis?days=366")
	if code != http.StatusOK || len(body["trends"].([]any)) != 366 {
		t.Fatalf("366 days should be accepted: %d", code)
	}
}
