package engine

import (
	"math"
	"testing"

	"expstat/domain/core"
	"expstat/domain/experiment"
)

func TestSRMChecker_NullCase(t *testing.T) {
	checker := NewSRMChecker(0)

	// Exactly balanced counts against a 1:1 ratio carry zero imbalance.
	samples := []experiment.VariantSample{
		experiment.NewProportionSample("control", 5000, 600),
		experiment.NewProportionSample("treatment", 5000, 640),
	}
	result, err := checker.Check(samples, map[string]float64{"control": 1, "treatment": 1})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.ChiSquareStatistic != 0 {
		t.Errorf("Expected zero statistic, got %v", result.ChiSquareStatistic)
	}
	if math.Abs(result.PValue-1.0) > 1e-12 {
		t.Errorf("Expected p-value 1.0, got %v", result.PValue)
	}
	if result.IsSuspect {
		t.Error("Balanced allocation must not be suspect")
	}
}

func TestSRMChecker_DetectsMismatch(t *testing.T) {
	checker := NewSRMChecker(0)

	samples := []experiment.VariantSample{
		experiment.NewProportionSample("control", 10000, 0),
		experiment.NewProportionSample("treatment", 15000, 0),
	}
	result, err := checker.Check(samples, map[string]float64{"control": 1, "treatment": 1})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	// Expected 12500 per arm: chi-square = 2 * 2500^2 / 12500 = 1000.
	if math.Abs(result.ChiSquareStatistic-1000) > 1e-9 {
		t.Errorf("Expected statistic 1000, got %v", result.ChiSquareStatistic)
	}
	if !result.IsSuspect {
		t.Error("10000 vs 15000 against 1:1 must be flagged as SRM")
	}
	if result.DegreesOfFreedom != 1 {
		t.Errorf("Expected 1 degree of freedom, got %d", result.DegreesOfFreedom)
	}
}

func TestSRMChecker_ModestNoiseIsNotSuspect(t *testing.T) {
	checker := NewSRMChecker(0)

	// 50.3/49.7 split on 10k units is ordinary sampling noise; the strict
	// 0.001 threshold must not fire.
	samples := []experiment.VariantSample{
		experiment.NewProportionSample("control", 5030, 0),
		experiment.NewProportionSample("treatment", 4970, 0),
	}
	result, err := checker.Check(samples, map[string]float64{"control": 1, "treatment": 1})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.IsSuspect {
		t.Errorf("Small imbalance flagged as SRM (p=%v)", result.PValue)
	}
}

func TestSRMChecker_ThreeVariants(t *testing.T) {
	checker := NewSRMChecker(0)

	samples := []experiment.VariantSample{
		experiment.NewProportionSample("control", 4000, 0),
		experiment.NewProportionSample("variant_a", 4100, 0),
		experiment.NewProportionSample("variant_b", 3900, 0),
	}
	result, err := checker.Check(samples, map[string]float64{"control": 1, "variant_a": 1, "variant_b": 1})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.DegreesOfFreedom != 2 {
		t.Errorf("Expected 2 degrees of freedom for three variants, got %d", result.DegreesOfFreedom)
	}
}

func TestSRMChecker_Errors(t *testing.T) {
	checker := NewSRMChecker(0)

	t.Run("insufficient data", func(t *testing.T) {
		samples := []experiment.VariantSample{
			experiment.NewProportionSample("control", 1, 0),
			experiment.NewProportionSample("treatment", 0, 0),
		}
		// Expected count per cell is 0.5 < 1.
		_, err := checker.Check(samples, map[string]float64{"control": 1, "treatment": 1})
		if !core.IsInsufficientData(err) {
			t.Errorf("Expected InsufficientData, got: %v", err)
		}
	})

	t.Run("missing weight", func(t *testing.T) {
		samples := []experiment.VariantSample{
			experiment.NewProportionSample("control", 100, 0),
			experiment.NewProportionSample("treatment", 100, 0),
		}
		_, err := checker.Check(samples, map[string]float64{"control": 1})
		if !core.IsInvalidDesign(err) {
			t.Errorf("Expected InvalidDesign, got: %v", err)
		}
	})

	t.Run("single variant", func(t *testing.T) {
		samples := []experiment.VariantSample{
			experiment.NewProportionSample("control", 100, 0),
		}
		_, err := checker.Check(samples, map[string]float64{"control": 1})
		if !core.IsInvalidDesign(err) {
			t.Errorf("Expected InvalidDesign, got: %v", err)
		}
	})
}

func TestSRMChecker_Deterministic(t *testing.T) {
	checker := NewSRMChecker(0)
	samples := []experiment.VariantSample{
		experiment.NewProportionSample("control", 10123, 0),
		experiment.NewProportionSample("treatment", 9877, 0),
	}
	ratio := map[string]float64{"control": 1, "treatment": 1}

	first, err := checker.Check(samples, ratio)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	second, err := checker.Check(samples, ratio)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if first.ChiSquareStatistic != second.ChiSquareStatistic || first.PValue != second.PValue {
		t.Error("Repeated checks over identical inputs diverged")
	}
}
