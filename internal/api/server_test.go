package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expstat/adapters/report"
	"expstat/adapters/stats/engine"
	"expstat/app"
	"expstat/internal/policy"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	service := app.NewAnalysisService(
		engine.NewSRMChecker(0),
		engine.NewSignificanceAnalyzer(0),
		policy.NewDecisionPolicy(0, 0.05, 0, 0, engine.NewDistributions()),
	)
	return NewServer(
		Config{Port: "0"},
		service,
		engine.NewSampleSizeCalculator(),
		report.NewRenderer(t.TempDir()),
	)
}

func TestServer_Health(t *testing.T) {
	server := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestServer_SampleSize(t *testing.T) {
	server := newTestServer(t)

	body := `{
		"metric_kind": "proportion",
		"design": {"baseline_rate": 0.10, "minimum_detectable_effect": 0.05},
		"traffic_per_day": 20000
	}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/design/sample-size", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SampleSizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.RequiredUnitsPerVariant < 57000 || resp.RequiredUnitsPerVariant > 58600 {
		t.Errorf("Unexpected sample size: %d", resp.RequiredUnitsPerVariant)
	}
	if resp.TotalUnits != resp.RequiredUnitsPerVariant*2 {
		t.Errorf("Total units inconsistent: %+v", resp)
	}
	if resp.DurationDays == 0 {
		t.Error("Expected duration estimate with traffic_per_day set")
	}
}

func TestServer_SampleSizeRejectsInvalidDesign(t *testing.T) {
	server := newTestServer(t)

	body := `{"metric_kind": "proportion", "design": {"baseline_rate": 0.10, "minimum_detectable_effect": 0}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/design/sample-size", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for zero MDE, got %d", rec.Code)
	}
}

func TestServer_Analyze(t *testing.T) {
	server := newTestServer(t)

	body := `{
		"primary": {
			"control": {"name": "control", "kind": "proportion", "units": 10000, "successes": 1200},
			"treatment": {"name": "treatment", "kind": "proportion", "units": 10050, "successes": 1350}
		}
	}`

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp app.RunReport
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Decision.Recommendation != "Ship" {
			t.Errorf("Expected Ship, got %s", resp.Decision.Recommendation)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze?format=markdown", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "# Experiment Analysis") {
			t.Error("Expected a markdown document")
		}
	})

	t.Run("degenerate input maps to 422", func(t *testing.T) {
		bad := `{
			"primary": {
				"control": {"name": "control", "kind": "proportion", "units": 0},
				"treatment": {"name": "treatment", "kind": "proportion", "units": 100, "successes": 10}
			}
		}`
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(bad)))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
