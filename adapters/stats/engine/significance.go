package engine

import (
	"math"

	"expstat/domain/core"
	"expstat/domain/experiment"
)

// SignificanceAnalyzer computes effect size, confidence interval and p-value
// for a control/treatment pair. Proportions use a two-proportion z-test with
// the conventional variance split: pooled estimate under the null for the
// test statistic, unpooled for the interval. Continuous metrics use Welch's
// t-test with Welch-Satterthwaite degrees of freedom.
type SignificanceAnalyzer struct {
	alpha float64
	dist  *Distributions
}

// NewSignificanceAnalyzer creates an analyzer at the given significance
// threshold. A non-positive alpha selects the default (0.05).
func NewSignificanceAnalyzer(alpha float64) *SignificanceAnalyzer {
	if alpha <= 0 || alpha >= 1 {
		alpha = experiment.DefaultAlpha
	}
	return &SignificanceAnalyzer{alpha: alpha, dist: NewDistributions()}
}

// Analyze compares treatment against control. Swapping the arguments negates
// the uplift but leaves p-value and interval width unchanged.
func (a *SignificanceAnalyzer) Analyze(control, treatment experiment.VariantSample) (experiment.AnalysisResult, error) {
	if err := control.Validate(); err != nil {
		return experiment.AnalysisResult{}, err
	}
	if err := treatment.Validate(); err != nil {
		return experiment.AnalysisResult{}, err
	}
	if control.Kind != treatment.Kind {
		return experiment.AnalysisResult{}, core.NewMetricTypeMismatchError(string(control.Kind), string(treatment.Kind))
	}
	if control.Units == 0 {
		return experiment.AnalysisResult{}, core.NewDegenerateSampleError(control.Name, "zero units")
	}
	if treatment.Units == 0 {
		return experiment.AnalysisResult{}, core.NewDegenerateSampleError(treatment.Name, "zero units")
	}

	switch control.Kind {
	case experiment.MetricProportion:
		return a.analyzeProportions(control, treatment)
	case experiment.MetricContinuous:
		return a.analyzeContinuous(control, treatment)
	default:
		return experiment.AnalysisResult{}, core.NewInvalidDesignError("kind", "unknown metric kind "+string(control.Kind))
	}
}

func (a *SignificanceAnalyzer) analyzeProportions(control, treatment experiment.VariantSample) (experiment.AnalysisResult, error) {
	nc := float64(control.Units)
	nt := float64(treatment.Units)
	pc := float64(control.Successes) / nc
	pt := float64(treatment.Successes) / nt
	diff := pt - pc

	// Pooled rate under the null for the test statistic.
	pPool := float64(control.Successes+treatment.Successes) / (nc + nt)
	sePooled := math.Sqrt(pPool * (1 - pPool) * (1/nc + 1/nt))
	if sePooled == 0 {
		// All units in both arms share one outcome; no variance to test against.
		return experiment.AnalysisResult{}, core.NewDegenerateSampleError(control.Name, "no outcome variance across arms")
	}
	z := diff / sePooled
	pValue := a.dist.ZTestPValue(z)

	// Unpooled standard error for the interval estimate of the true difference.
	seUnpooled := math.Sqrt(pc*(1-pc)/nc + pt*(1-pt)/nt)
	zQuantile := a.dist.NormalQuantile(1 - a.alpha/2)

	return a.buildResult(control, treatment, pc, pt, diff, pValue, experiment.ConfidenceInterval{
		Low:  diff - zQuantile*seUnpooled,
		High: diff + zQuantile*seUnpooled,
	}), nil
}

func (a *SignificanceAnalyzer) analyzeContinuous(control, treatment experiment.VariantSample) (experiment.AnalysisResult, error) {
	if control.Units < 2 {
		return experiment.AnalysisResult{}, core.NewDegenerateSampleError(control.Name, "fewer than two units")
	}
	if treatment.Units < 2 {
		return experiment.AnalysisResult{}, core.NewDegenerateSampleError(treatment.Name, "fewer than two units")
	}

	nc := float64(control.Units)
	nt := float64(treatment.Units)
	diff := treatment.Mean - control.Mean

	vc := control.Variance / nc
	vt := treatment.Variance / nt
	se := math.Sqrt(vc + vt)
	if se == 0 {
		// Zero variance in both arms would turn the statistic into NaN.
		return experiment.AnalysisResult{}, core.NewDegenerateSampleError(control.Name, "zero variance in both arms")
	}

	// Welch-Satterthwaite degrees of freedom.
	df := (vc + vt) * (vc + vt) / (vc*vc/(nc-1) + vt*vt/(nt-1))

	t := diff / se
	pValue := a.dist.TTestPValue(t, df)
	tQuantile := a.dist.TQuantile(1-a.alpha/2, df)

	return a.buildResult(control, treatment, control.Mean, treatment.Mean, diff, pValue, experiment.ConfidenceInterval{
		Low:  diff - tQuantile*se,
		High: diff + tQuantile*se,
	}), nil
}

func (a *SignificanceAnalyzer) buildResult(
	control, treatment experiment.VariantSample,
	controlValue, treatmentValue, diff, pValue float64,
	ci experiment.ConfidenceInterval,
) experiment.AnalysisResult {
	result := experiment.AnalysisResult{
		Kind:           control.Kind,
		Alpha:          a.alpha,
		ControlValue:   controlValue,
		TreatmentValue: treatmentValue,
		ControlUnits:   control.Units,
		TreatmentUnits: treatment.Units,
		UpliftAbsolute: diff,
		ConfidenceInt:  ci,
		PValue:         pValue,
		IsSignificant:  pValue < a.alpha,
	}

	if controlValue == 0 {
		result.RelativeUndefined = true
	} else {
		result.UpliftRelative = diff / controlValue
	}

	return result
}
