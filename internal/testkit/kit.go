package testkit

import (
	"math"
	"math/rand"

	"expstat/domain/experiment"
)

// Generator produces deterministic synthetic experiment data for tests.
// The same seed always yields the same samples, which the determinism tests
// depend on.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a fixed seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// ProportionArm draws a binomial success count at the given true rate and
// returns the arm as a proportion sample.
func (g *Generator) ProportionArm(name string, units int, trueRate float64) experiment.VariantSample {
	successes := 0
	for i := 0; i < units; i++ {
		if g.rng.Float64() < trueRate {
			successes++
		}
	}
	return experiment.NewProportionSample(name, units, successes)
}

// ContinuousArm draws normally distributed observations and returns the arm
// summarized as a continuous sample.
func (g *Generator) ContinuousArm(name string, units int, mean, stddev float64) experiment.VariantSample {
	sum := 0.0
	sumSq := 0.0
	for i := 0; i < units; i++ {
		value := mean + stddev*g.rng.NormFloat64()
		sum += value
		sumSq += value * value
	}

	sampleMean := sum / float64(units)
	variance := 0.0
	if units > 1 {
		variance = (sumSq - float64(units)*sampleMean*sampleMean) / float64(units-1)
		variance = math.Max(variance, 0)
	}
	return experiment.NewContinuousSample(name, units, sampleMean, variance)
}

// ClearWinPair returns the canonical clear-win scenario: a large, genuinely
// positive conversion lift that the analyzer should flag as significant.
func ClearWinPair() (control, treatment experiment.VariantSample) {
	return experiment.NewProportionSample("control", 10000, 1200),
		experiment.NewProportionSample("treatment", 10050, 1350)
}

// InconclusivePair returns the canonical underpowered scenario: a small lift
// on a sample far too small to resolve it.
func InconclusivePair() (control, treatment experiment.VariantSample) {
	return experiment.NewProportionSample("control", 500, 60),
		experiment.NewProportionSample("treatment", 500, 65)
}
