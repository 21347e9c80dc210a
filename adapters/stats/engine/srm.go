package engine

import (
	"expstat/domain/core"
	"expstat/domain/experiment"
)

// SRMChecker runs a chi-square goodness-of-fit test of observed variant unit
// counts against the intended allocation ratio. The default threshold is
// deliberately stricter than ordinary significance: a false SRM alarm
// invalidates a whole experiment, so 0.001 keeps ordinary sampling noise out.
type SRMChecker struct {
	threshold float64
	dist      *Distributions
}

// NewSRMChecker creates an SRM checker. A non-positive threshold selects the
// default (0.001).
func NewSRMChecker(threshold float64) *SRMChecker {
	if threshold <= 0 {
		threshold = experiment.DefaultSRMThreshold
	}
	return &SRMChecker{threshold: threshold, dist: NewDistributions()}
}

// Check computes the chi-square statistic over all variants with
// variant_count - 1 degrees of freedom. Expected counts come from the total
// observed units split by the normalized expected ratio.
func (c *SRMChecker) Check(samples []experiment.VariantSample, expectedRatio map[string]float64) (experiment.SRMResult, error) {
	if len(samples) < 2 {
		return experiment.SRMResult{}, core.NewInvalidDesignError("samples", "SRM check needs at least two variants")
	}

	totalWeight := 0.0
	for name, weight := range expectedRatio {
		if weight <= 0 {
			return experiment.SRMResult{}, core.NewInvalidDesignError("expected_ratio", "non-positive weight for variant "+name)
		}
		totalWeight += weight
	}

	totalUnits := 0
	for _, sample := range samples {
		if sample.Units < 0 {
			return experiment.SRMResult{}, core.NewDegenerateSampleError(sample.Name, "negative unit count")
		}
		if _, ok := expectedRatio[sample.Name]; !ok {
			return experiment.SRMResult{}, core.NewInvalidDesignError("expected_ratio", "no weight for variant "+sample.Name)
		}
		totalUnits += sample.Units
	}
	if len(expectedRatio) != len(samples) {
		return experiment.SRMResult{}, core.NewInvalidDesignError("expected_ratio", "weight count does not match variant count")
	}

	expected := make(map[string]float64, len(samples))
	observed := make(map[string]float64, len(samples))
	statistic := 0.0
	for _, sample := range samples {
		share := expectedRatio[sample.Name] / totalWeight
		expectedCount := float64(totalUnits) * share
		if expectedCount < 1 {
			return experiment.SRMResult{}, core.NewInsufficientDataError(
				"expected count below 1 for variant " + sample.Name + "; chi-square test is unreliable")
		}

		diff := float64(sample.Units) - expectedCount
		statistic += diff * diff / expectedCount

		expected[sample.Name] = share
		observed[sample.Name] = float64(sample.Units) / float64(totalUnits)
	}

	dof := len(samples) - 1
	pValue := c.dist.ChiSquarePValue(statistic, dof)

	return experiment.SRMResult{
		ExpectedRatio:      expected,
		ObservedRatio:      observed,
		ChiSquareStatistic: statistic,
		DegreesOfFreedom:   dof,
		PValue:             pValue,
		Threshold:          c.threshold,
		IsSuspect:          pValue < c.threshold,
	}, nil
}
