package experiment

import (
	"expstat/domain/core"
)

// ============================================================================
// METRIC PRIMITIVES
// ============================================================================

// MetricKind distinguishes proportion metrics (conversion-style counts) from
// continuous metrics (means with variance). Every sample in one analysis must
// share the same kind.
type MetricKind string

const (
	MetricProportion MetricKind = "proportion"
	MetricContinuous MetricKind = "continuous"
)

// VariantSample is one experiment arm's observed data.
// INVARIANTS:
// - Units >= 0
// - Proportion: 0 <= Successes <= Units
// - Continuous: Variance >= 0
type VariantSample struct {
	Name      string     `json:"name"`
	Kind      MetricKind `json:"kind"`
	Units     int        `json:"units"`
	Successes int        `json:"successes,omitempty"`
	Mean      float64    `json:"mean,omitempty"`
	Variance  float64    `json:"variance,omitempty"`
}

// NewProportionSample creates a proportion-metric arm from unit and success counts.
func NewProportionSample(name string, units, successes int) VariantSample {
	return VariantSample{
		Name:      name,
		Kind:      MetricProportion,
		Units:     units,
		Successes: successes,
	}
}

// NewContinuousSample creates a continuous-metric arm from summary statistics.
func NewContinuousSample(name string, units int, mean, variance float64) VariantSample {
	return VariantSample{
		Name:     name,
		Kind:     MetricContinuous,
		Units:    units,
		Mean:     mean,
		Variance: variance,
	}
}

// Validate checks the sample's internal invariants.
func (s VariantSample) Validate() error {
	if s.Units < 0 {
		return core.NewDegenerateSampleError(s.Name, "negative unit count")
	}
	switch s.Kind {
	case MetricProportion:
		if s.Successes < 0 {
			return core.NewDegenerateSampleError(s.Name, "negative success count")
		}
		if s.Successes > s.Units {
			return core.NewDegenerateSampleError(s.Name, "successes exceed units")
		}
	case MetricContinuous:
		if s.Variance < 0 {
			return core.NewDegenerateSampleError(s.Name, "negative variance")
		}
	default:
		return core.NewInvalidDesignError("kind", "unknown metric kind "+string(s.Kind))
	}
	return nil
}

// Value returns the arm's point estimate: conversion rate for proportions,
// mean for continuous metrics.
func (s VariantSample) Value() float64 {
	if s.Kind == MetricProportion {
		if s.Units == 0 {
			return 0
		}
		return float64(s.Successes) / float64(s.Units)
	}
	return s.Mean
}

// ============================================================================
// DESIGN-TIME INPUTS
// ============================================================================

// Default configuration surface. All overridable per call.
const (
	DefaultAlpha              = 0.05
	DefaultPower              = 0.8
	DefaultSRMThreshold       = 0.001
	DefaultSeverityMultiplier = 2.0
	DefaultAllocationRatio    = 1.0
)

// MDEKind states whether the minimum detectable effect is relative to the
// baseline or expressed in absolute metric units.
type MDEKind string

const (
	MDERelative MDEKind = "relative"
	MDEAbsolute MDEKind = "absolute"
)

// ExperimentDesign holds the design-time inputs to sample size computation.
type ExperimentDesign struct {
	BaselineRate    float64 `json:"baseline_rate,omitempty"`
	BaselineMean    float64 `json:"baseline_mean,omitempty"`
	BaselineStdDev  float64 `json:"baseline_stddev,omitempty"`
	MDE             float64 `json:"minimum_detectable_effect"`
	MDEKind         MDEKind `json:"mde_kind"`
	Alpha           float64 `json:"alpha"`
	Power           float64 `json:"power"`
	AllocationRatio float64 `json:"allocation_ratio"`
}

// NewDesign returns a design with the default alpha, power, allocation ratio
// and a relative MDE. Callers override fields before Compute.
func NewDesign() ExperimentDesign {
	return ExperimentDesign{
		MDEKind:         MDERelative,
		Alpha:           DefaultAlpha,
		Power:           DefaultPower,
		AllocationRatio: DefaultAllocationRatio,
	}
}

// Validate checks the shared design parameters. Metric-kind-specific checks
// (baseline rate range, stddev positivity) live in the calculator.
func (d ExperimentDesign) Validate() error {
	if d.MDE == 0 {
		return core.NewInvalidDesignError("minimum_detectable_effect", "must be non-zero")
	}
	if d.Alpha <= 0 || d.Alpha >= 1 {
		return core.NewInvalidDesignError("alpha", "must be in (0,1)")
	}
	if d.Power <= 0 || d.Power >= 1 {
		return core.NewInvalidDesignError("power", "must be in (0,1)")
	}
	if d.AllocationRatio <= 0 {
		return core.NewInvalidDesignError("allocation_ratio", "must be positive")
	}
	return nil
}

// ============================================================================
// ANALYSIS OUTPUTS
// ============================================================================

// ConfidenceInterval bounds the uplift at confidence 1 - alpha.
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Width returns the interval width.
func (ci ConfidenceInterval) Width() float64 { return ci.High - ci.Low }

// AnalysisResult is the significance analysis outcome for one metric.
// UpliftRelative is meaningless when RelativeUndefined is set (control value
// exactly zero); it is kept at 0 rather than NaN so results stay encodable.
type AnalysisResult struct {
	Metric            string             `json:"metric,omitempty"`
	Kind              MetricKind         `json:"kind"`
	Alpha             float64            `json:"alpha"`
	ControlValue      float64            `json:"control_value"`
	TreatmentValue    float64            `json:"treatment_value"`
	ControlUnits      int                `json:"control_units"`
	TreatmentUnits    int                `json:"treatment_units"`
	UpliftAbsolute    float64            `json:"uplift_absolute"`
	UpliftRelative    float64            `json:"uplift_relative"`
	RelativeUndefined bool               `json:"relative_undefined,omitempty"`
	ConfidenceInt     ConfidenceInterval `json:"confidence_interval"`
	PValue            float64            `json:"p_value"`
	IsSignificant     bool               `json:"is_significant"`
}

// Fingerprint returns a deterministic hash of the numeric outputs. Repeated
// analyses of identical inputs must fingerprint identically.
func (r AnalysisResult) Fingerprint() core.Fingerprint {
	return core.NewFingerprint(map[string]float64{
		"uplift_absolute": r.UpliftAbsolute,
		"uplift_relative": r.UpliftRelative,
		"ci_low":          r.ConfidenceInt.Low,
		"ci_high":         r.ConfidenceInt.High,
		"p_value":         r.PValue,
	})
}

// SRMResult is the outcome of a sample ratio mismatch check.
// Ratios are per-variant shares of total units, keyed by variant name.
type SRMResult struct {
	ExpectedRatio      map[string]float64 `json:"expected_ratio"`
	ObservedRatio      map[string]float64 `json:"observed_ratio"`
	ChiSquareStatistic float64            `json:"chi_square_statistic"`
	DegreesOfFreedom   int                `json:"degrees_of_freedom"`
	PValue             float64            `json:"p_value"`
	Threshold          float64            `json:"threshold"`
	IsSuspect          bool               `json:"is_suspect"`
}

// ============================================================================
// DECISION
// ============================================================================

// Recommendation is the terminal decision state.
type Recommendation string

const (
	RecommendShip    Recommendation = "Ship"
	RecommendIterate Recommendation = "Iterate"
	RecommendStop    Recommendation = "Stop"
)

// GuardrailDirection states which uplift direction counts as a regression.
type GuardrailDirection string

const (
	IncreaseIsBad GuardrailDirection = "increase_is_bad"
	DecreaseIsBad GuardrailDirection = "decrease_is_bad"
)

// GuardrailRule configures one guardrail metric: its bad direction and the
// MDE its regression severity is judged against. A zero MDE falls back to
// the policy's design MDE.
type GuardrailRule struct {
	Direction GuardrailDirection `json:"direction"`
	MDE       float64            `json:"mde,omitempty"`
}

// Decision is the terminal output of the decision policy. It carries no
// generated identity: identical inputs must produce identical decisions.
// GuardrailViolations is an unordered set keyed by metric name, so guardrail
// evaluation order never affects the result.
type Decision struct {
	Recommendation      Recommendation  `json:"recommendation"`
	Rationale           []string        `json:"rationale"`
	GuardrailViolations map[string]bool `json:"guardrail_violations,omitempty"`
}

// ============================================================================
// TREND
// ============================================================================

// TrendDirection classifies the movement between two analysis snapshots.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// TrendResult compares two immutable AnalysisResult snapshots of the same
// metric. It is a pure comparison; nothing is stored between runs.
type TrendResult struct {
	Direction           TrendDirection `json:"direction"`
	UpliftDelta         float64        `json:"uplift_delta"`
	BecameSignificant   bool           `json:"became_significant"`
	LostSignificance    bool           `json:"lost_significance"`
	IntervalsOverlap    bool           `json:"intervals_overlap"`
}
