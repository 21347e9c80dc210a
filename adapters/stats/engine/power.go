package engine

import (
	"math"

	"expstat/domain/core"
	"expstat/domain/experiment"
)

// SampleSizeCalculator computes required per-variant sample sizes at design
// time. Pure: no I/O, no state beyond the shared distribution tables.
type SampleSizeCalculator struct {
	dist *Distributions
}

// NewSampleSizeCalculator creates a new sample size calculator
func NewSampleSizeCalculator() *SampleSizeCalculator {
	return &SampleSizeCalculator{dist: NewDistributions()}
}

// Compute returns the required units per variant for the design. The result
// is the larger arm under unequal allocation and is always rounded up;
// under-powering is worse than slight oversampling.
func (c *SampleSizeCalculator) Compute(design experiment.ExperimentDesign, kind experiment.MetricKind) (int, error) {
	if err := design.Validate(); err != nil {
		return 0, err
	}

	zAlpha := c.dist.NormalQuantile(1 - design.Alpha/2)
	zPower := c.dist.NormalQuantile(design.Power)
	zSum := zAlpha + zPower
	ratio := design.AllocationRatio

	switch kind {
	case experiment.MetricProportion:
		p1 := design.BaselineRate
		if p1 <= 0 || p1 >= 1 {
			return 0, core.NewInvalidDesignError("baseline_rate", "must be in (0,1)")
		}

		p2 := p1 + design.MDE
		if design.MDEKind == experiment.MDERelative {
			p2 = p1 * (1 + design.MDE)
		}
		if p2 <= 0 || p2 >= 1 {
			return 0, core.NewInvalidDesignError("minimum_detectable_effect", "target rate falls outside (0,1)")
		}

		delta := p2 - p1
		// Control arm size with treatment variance scaled by the allocation
		// ratio; reduces to the standard pooled formula at ratio 1.
		nControl := zSum * zSum * (p1*(1-p1) + p2*(1-p2)/ratio) / (delta * delta)
		return ceilUnits(math.Max(nControl, ratio*nControl))

	case experiment.MetricContinuous:
		sigma := design.BaselineStdDev
		if sigma <= 0 {
			return 0, core.NewInvalidDesignError("baseline_stddev", "must be positive")
		}

		delta := design.MDE
		if design.MDEKind == experiment.MDERelative {
			if design.BaselineMean == 0 {
				return 0, core.NewInvalidDesignError("baseline_mean", "must be non-zero for a relative MDE")
			}
			delta = design.BaselineMean * design.MDE
		}

		nControl := zSum * zSum * sigma * sigma * (1 + 1/ratio) / (delta * delta)
		return ceilUnits(math.Max(nControl, ratio*nControl))

	default:
		return 0, core.NewInvalidDesignError("metric_kind", "unknown metric kind "+string(kind))
	}
}

// Duration estimates test length in days given total eligible traffic per day
// split across both arms.
func (c *SampleSizeCalculator) Duration(requiredUnitsPerVariant int, trafficPerDay int) (int, error) {
	if trafficPerDay <= 0 {
		return 0, core.NewInvalidDesignError("traffic_per_day", "must be positive")
	}
	total := float64(requiredUnitsPerVariant) * 2
	return int(math.Ceil(total / float64(trafficPerDay))), nil
}

func ceilUnits(n float64) (int, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, core.NewInvalidDesignError("sample_size", "computation did not converge")
	}
	return int(math.Ceil(n)), nil
}
