package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"expstat/adapters/stats/engine"
	"expstat/domain/experiment"
	"expstat/internal/policy"
	"expstat/internal/testkit"
)

func newTestService() *AnalysisService {
	return NewAnalysisService(
		engine.NewSRMChecker(0),
		engine.NewSignificanceAnalyzer(0),
		policy.NewDecisionPolicy(0, 0.05, 0, 0, engine.NewDistributions()),
	)
}

func TestAnalysisService_ClearWin(t *testing.T) {
	service := newTestService()
	control, treatment := testkit.ClearWinPair()

	report, err := service.Run(context.Background(), AnalysisRequest{
		Primary: MetricPair{Control: control, Treatment: treatment},
	})
	require.NoError(t, err)

	require.False(t, report.SRM.IsSuspect)
	require.True(t, report.Primary.IsSignificant)
	require.Equal(t, experiment.RecommendShip, report.Decision.Recommendation)
	require.NotEmpty(t, report.RunID)
	require.False(t, report.Fingerprint.Equals(""))
}

func TestAnalysisService_Inconclusive(t *testing.T) {
	service := newTestService()
	control, treatment := testkit.InconclusivePair()

	report, err := service.Run(context.Background(), AnalysisRequest{
		Primary: MetricPair{Control: control, Treatment: treatment},
	})
	require.NoError(t, err)

	require.False(t, report.Primary.IsSignificant)
	require.Greater(t, report.Primary.PValue, 0.05)
	require.Equal(t, experiment.RecommendIterate, report.Decision.Recommendation)
}

func TestAnalysisService_SRMOverridesWin(t *testing.T) {
	service := newTestService()

	// Same strong treatment effect, but the allocation is badly off 1:1.
	report, err := service.Run(context.Background(), AnalysisRequest{
		Primary: MetricPair{
			Control:   experiment.NewProportionSample("control", 10000, 1200),
			Treatment: experiment.NewProportionSample("treatment", 15000, 2014),
		},
	})
	require.NoError(t, err)

	require.True(t, report.SRM.IsSuspect)
	require.Equal(t, experiment.RecommendStop, report.Decision.Recommendation)
}

func TestAnalysisService_GuardrailRegression(t *testing.T) {
	service := newTestService()
	control, treatment := testkit.ClearWinPair()

	report, err := service.Run(context.Background(), AnalysisRequest{
		Primary: MetricPair{Control: control, Treatment: treatment},
		Guardrails: map[string]MetricPair{
			"latency": {
				Control:   experiment.NewContinuousSample("control", 10000, 120, 900),
				Treatment: experiment.NewContinuousSample("treatment", 10050, 150, 1100),
			},
		},
		GuardrailPolicy: map[string]experiment.GuardrailRule{
			"latency": {Direction: experiment.IncreaseIsBad, MDE: 0.05},
		},
	})
	require.NoError(t, err)

	// Latency rose 25% with tight variance: significant and far beyond the
	// 2x severity bound.
	require.Equal(t, experiment.RecommendStop, report.Decision.Recommendation)
	require.True(t, report.Decision.GuardrailViolations["latency"])
}

func TestAnalysisService_Deterministic(t *testing.T) {
	service := newTestService()

	gen := testkit.NewGenerator(42)
	control := gen.ProportionArm("control", 5000, 0.10)
	treatment := gen.ProportionArm("treatment", 5000, 0.11)

	request := AnalysisRequest{
		Primary: MetricPair{Control: control, Treatment: treatment},
		Guardrails: map[string]MetricPair{
			"latency": {
				Control:   experiment.NewContinuousSample("control", 5000, 120, 900),
				Treatment: experiment.NewContinuousSample("treatment", 5000, 121, 910),
			},
			"errors": {
				Control:   experiment.NewProportionSample("control", 5000, 25),
				Treatment: experiment.NewProportionSample("treatment", 5000, 27),
			},
		},
		GuardrailPolicy: map[string]experiment.GuardrailRule{
			"latency": {Direction: experiment.IncreaseIsBad},
			"errors":  {Direction: experiment.IncreaseIsBad},
		},
	}

	first, err := service.Run(context.Background(), request)
	require.NoError(t, err)
	second, err := service.Run(context.Background(), request)
	require.NoError(t, err)

	// Guardrails run concurrently, yet identical inputs must fingerprint
	// identically and decide identically.
	require.True(t, first.Fingerprint.Equals(second.Fingerprint))
	require.Equal(t, first.Decision.Recommendation, second.Decision.Recommendation)
	require.Equal(t, first.Primary, second.Primary)
	require.Equal(t, first.Guardrails, second.Guardrails)
}

func TestAnalysisService_PropagatesEngineErrors(t *testing.T) {
	service := newTestService()

	_, err := service.Run(context.Background(), AnalysisRequest{
		Primary: MetricPair{
			Control:   experiment.NewProportionSample("control", 0, 0),
			Treatment: experiment.NewProportionSample("treatment", 100, 10),
		},
	})
	require.Error(t, err)
}
