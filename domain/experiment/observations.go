package experiment

import (
	"expstat/domain/core"

	"github.com/montanaflynn/stats"
)

// SummarizeObservations builds a continuous-metric VariantSample from raw
// per-unit observations. Callers that only have summary statistics construct
// the sample directly with NewContinuousSample.
func SummarizeObservations(name string, observations []float64) (VariantSample, error) {
	if len(observations) == 0 {
		return VariantSample{}, core.NewDegenerateSampleError(name, "no observations")
	}

	mean, err := stats.Mean(observations)
	if err != nil {
		return VariantSample{}, core.NewDegenerateSampleError(name, err.Error())
	}

	// Sample variance (n-1 denominator); a single observation has none.
	variance := 0.0
	if len(observations) > 1 {
		variance, err = stats.SampleVariance(observations)
		if err != nil {
			return VariantSample{}, core.NewDegenerateSampleError(name, err.Error())
		}
	}

	return NewContinuousSample(name, len(observations), mean, variance), nil
}

// SummarizeBinaryObservations builds a proportion-metric VariantSample from
// raw 0/1 outcomes. Any non-zero value counts as a success.
func SummarizeBinaryObservations(name string, outcomes []bool) VariantSample {
	successes := 0
	for _, converted := range outcomes {
		if converted {
			successes++
		}
	}
	return NewProportionSample(name, len(outcomes), successes)
}
