package ports

import (
	"expstat/domain/experiment"
)

// SampleSizeCalculator computes required per-variant sample sizes at design time.
type SampleSizeCalculator interface {
	Compute(design experiment.ExperimentDesign, kind experiment.MetricKind) (int, error)
	Duration(requiredUnitsPerVariant int, trafficPerDay int) (int, error)
}

// SRMChecker tests observed variant unit counts against the intended allocation.
type SRMChecker interface {
	Check(samples []experiment.VariantSample, expectedRatio map[string]float64) (experiment.SRMResult, error)
}

// SignificanceAnalyzer computes uplift, interval and p-value for one metric.
type SignificanceAnalyzer interface {
	Analyze(control, treatment experiment.VariantSample) (experiment.AnalysisResult, error)
}

// DecisionPolicy combines SRM, primary and guardrail results into a decision.
type DecisionPolicy interface {
	Decide(
		srm experiment.SRMResult,
		primary experiment.AnalysisResult,
		guardrails map[string]experiment.AnalysisResult,
		guardrailPolicy map[string]experiment.GuardrailRule,
	) experiment.Decision
}

// ResultsReader loads parsed tabular experiment results for the engine.
type ResultsReader interface {
	ReadResults() (*ResultsTable, error)
}

// ResultsTable is the parsed content of one results file: one metric, one
// sample per variant.
type ResultsTable struct {
	Metric  string
	Kind    experiment.MetricKind
	Samples []experiment.VariantSample
}

// Variant returns the sample with the given name, if present.
func (t *ResultsTable) Variant(name string) (experiment.VariantSample, bool) {
	for _, sample := range t.Samples {
		if sample.Name == name {
			return sample, true
		}
	}
	return experiment.VariantSample{}, false
}
