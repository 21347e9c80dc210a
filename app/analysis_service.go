package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expstat/domain/core"
	"expstat/domain/experiment"
	"expstat/ports"
)

// AnalysisService runs the full read-out pipeline: SRM check, primary metric
// analysis, guardrail analyses, decision. It holds only configuration and
// the engine ports; every run is independent and nothing persists.
type AnalysisService struct {
	srmChecker ports.SRMChecker
	analyzer   ports.SignificanceAnalyzer
	policy     ports.DecisionPolicy
}

// MetricPair is one metric's control/treatment arm pair.
type MetricPair struct {
	Control   experiment.VariantSample `json:"control"`
	Treatment experiment.VariantSample `json:"treatment"`
}

// AnalysisRequest defines the inputs for one experiment read-out.
type AnalysisRequest struct {
	RunID           core.RunID // optional, generated if empty
	Primary         MetricPair
	Guardrails      map[string]MetricPair
	ExpectedRatio   map[string]float64 // variant name -> allocation weight
	GuardrailPolicy map[string]experiment.GuardrailRule
}

// RunReport contains the complete output of one read-out.
type RunReport struct {
	RunID       core.RunID                           `json:"run_id"`
	SRM         experiment.SRMResult                 `json:"srm"`
	Primary     experiment.AnalysisResult            `json:"primary"`
	Guardrails  map[string]experiment.AnalysisResult `json:"guardrails,omitempty"`
	Decision    experiment.Decision                  `json:"decision"`
	Fingerprint core.Fingerprint                     `json:"fingerprint"`
	RuntimeMs   int64                                `json:"runtime_ms"`
}

// NewAnalysisService creates an analysis service over the given engine ports.
func NewAnalysisService(srmChecker ports.SRMChecker, analyzer ports.SignificanceAnalyzer, policy ports.DecisionPolicy) *AnalysisService {
	return &AnalysisService{
		srmChecker: srmChecker,
		analyzer:   analyzer,
		policy:     policy,
	}
}

// Run executes the pipeline. Guardrail metrics are analyzed concurrently;
// their results land in a name-keyed map, so scheduling order cannot change
// the decision.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*RunReport, error) {
	startTime := time.Now()

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}

	expectedRatio := req.ExpectedRatio
	if expectedRatio == nil {
		expectedRatio = map[string]float64{
			req.Primary.Control.Name:   1,
			req.Primary.Treatment.Name: 1,
		}
	}

	srm, err := s.srmChecker.Check(
		[]experiment.VariantSample{req.Primary.Control, req.Primary.Treatment},
		expectedRatio,
	)
	if err != nil {
		return nil, fmt.Errorf("SRM check failed: %w", err)
	}

	primary, err := s.analyzer.Analyze(req.Primary.Control, req.Primary.Treatment)
	if err != nil {
		return nil, fmt.Errorf("primary metric analysis failed: %w", err)
	}

	guardrails, err := s.analyzeGuardrails(ctx, req.Guardrails)
	if err != nil {
		return nil, err
	}

	decision := s.policy.Decide(srm, primary, guardrails, req.GuardrailPolicy)

	return &RunReport{
		RunID:       runID,
		SRM:         srm,
		Primary:     primary,
		Guardrails:  guardrails,
		Decision:    decision,
		Fingerprint: s.fingerprint(srm, primary, guardrails),
		RuntimeMs:   time.Since(startTime).Milliseconds(),
	}, nil
}

// analyzeGuardrails fans the guardrail metrics out across goroutines. The
// engine is pure, so no coordination beyond the results map is needed.
func (s *AnalysisService) analyzeGuardrails(ctx context.Context, pairs map[string]MetricPair) (map[string]experiment.AnalysisResult, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	results := make(map[string]experiment.AnalysisResult, len(pairs))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for name, pair := range pairs {
		name, pair := name, pair
		g.Go(func() error {
			result, err := s.analyzer.Analyze(pair.Control, pair.Treatment)
			if err != nil {
				return fmt.Errorf("guardrail %q analysis failed: %w", name, err)
			}
			result.Metric = name

			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fingerprint hashes every numeric output in canonical order so identical
// inputs always produce an identical report fingerprint.
func (s *AnalysisService) fingerprint(
	srm experiment.SRMResult,
	primary experiment.AnalysisResult,
	guardrails map[string]experiment.AnalysisResult,
) core.Fingerprint {
	fields := map[string]float64{
		"srm.statistic":           srm.ChiSquareStatistic,
		"srm.p_value":             srm.PValue,
		"primary.uplift_absolute": primary.UpliftAbsolute,
		"primary.uplift_relative": primary.UpliftRelative,
		"primary.ci_low":          primary.ConfidenceInt.Low,
		"primary.ci_high":         primary.ConfidenceInt.High,
		"primary.p_value":         primary.PValue,
	}

	names := make([]string, 0, len(guardrails))
	for name := range guardrails {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result := guardrails[name]
		fields["guardrail."+name+".uplift_absolute"] = result.UpliftAbsolute
		fields["guardrail."+name+".p_value"] = result.PValue
	}

	return core.NewFingerprint(fields)
}
