package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"expstat/adapters/report"
	"expstat/app"
	"expstat/domain/core"
	"expstat/domain/experiment"
	"expstat/ports"
)

// Server exposes the engine over HTTP. It is a thin orchestration surface:
// handlers decode JSON into the engine's value types and encode the
// structured results back out.
type Server struct {
	router   *chi.Mux
	service  *app.AnalysisService
	calc     ports.SampleSizeCalculator
	renderer *report.Renderer
	port     string
}

// Config holds server configuration
type Config struct {
	Port string
}

// NewServer creates the HTTP server over the engine components.
func NewServer(config Config, service *app.AnalysisService, calc ports.SampleSizeCalculator, renderer *report.Renderer) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		service:  service,
		calc:     calc,
		renderer: renderer,
		port:     config.Port,
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/api/design/sample-size", s.handleSampleSize)
	s.router.Post("/api/analyze", s.handleAnalyze)

	return s
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	addr := ":" + s.port
	log.Printf("[API] Listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SampleSizeRequest is the design-time request body.
type SampleSizeRequest struct {
	MetricKind    experiment.MetricKind       `json:"metric_kind"`
	Design        experiment.ExperimentDesign `json:"design"`
	TrafficPerDay int                         `json:"traffic_per_day,omitempty"`
}

// SampleSizeResponse reports the computed requirement.
type SampleSizeResponse struct {
	RequiredUnitsPerVariant int `json:"required_units_per_variant"`
	TotalUnits              int `json:"total_units"`
	DurationDays            int `json:"duration_days,omitempty"`
}

func (s *Server) handleSampleSize(w http.ResponseWriter, r *http.Request) {
	var req SampleSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Design.Alpha == 0 {
		req.Design.Alpha = experiment.DefaultAlpha
	}
	if req.Design.Power == 0 {
		req.Design.Power = experiment.DefaultPower
	}
	if req.Design.AllocationRatio == 0 {
		req.Design.AllocationRatio = experiment.DefaultAllocationRatio
	}
	if req.Design.MDEKind == "" {
		req.Design.MDEKind = experiment.MDERelative
	}

	units, err := s.calc.Compute(req.Design, req.MetricKind)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := SampleSizeResponse{
		RequiredUnitsPerVariant: units,
		TotalUnits:              units * 2,
	}
	if req.TrafficPerDay > 0 {
		days, err := s.calc.Duration(units, req.TrafficPerDay)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		resp.DurationDays = days
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// AnalyzeRequest is the analysis-time request body.
type AnalyzeRequest struct {
	Primary         app.MetricPair                      `json:"primary"`
	Guardrails      map[string]app.MetricPair           `json:"guardrails,omitempty"`
	ExpectedRatio   map[string]float64                  `json:"expected_ratio,omitempty"`
	GuardrailPolicy map[string]experiment.GuardrailRule `json:"guardrail_policy,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	runReport, err := s.service.Run(r.Context(), app.AnalysisRequest{
		Primary:         req.Primary,
		Guardrails:      req.Guardrails,
		ExpectedRatio:   req.ExpectedRatio,
		GuardrailPolicy: req.GuardrailPolicy,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s.renderer.RenderMarkdown(runReport)))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.renderer.RenderHTML(runReport))
	default:
		s.writeJSON(w, http.StatusOK, runReport)
	}
}

// writeEngineError maps the engine's recoverable validation conditions to 422
// so callers can distinguish bad inputs from server faults.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	if core.IsValidationError(err) {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
