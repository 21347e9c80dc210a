package policy

import (
	"fmt"
	"math"
	"sort"

	"expstat/domain/experiment"
)

// DecisionPolicy turns SRM, primary-metric and guardrail results into a
// ship/iterate/stop recommendation. Rules fire in strict precedence order;
// the ordering is part of the contract:
//
//  1. suspect SRM stops everything, before any effect is trusted
//  2. significant guardrail regressions stop (severe) or iterate (mild)
//  3. significant positive primary ships
//  4. significant negative primary stops
//  5. anything else iterates
type DecisionPolicy struct {
	severityMultiplier float64
	designMDE          float64
	alpha              float64
	power              float64
	dist               quantiler
}

type quantiler interface {
	NormalQuantile(p float64) float64
}

// NewDecisionPolicy creates a policy. severityMultiplier scales the MDE used
// to split guardrail regressions into severe vs mild (non-positive selects
// the default 2.0). designMDE is the fallback guardrail MDE when a rule does
// not carry its own; alpha/power feed the inconclusive-case sample size
// suggestion and fall back to the defaults when non-positive.
func NewDecisionPolicy(severityMultiplier, designMDE, alpha, power float64, dist quantiler) *DecisionPolicy {
	if severityMultiplier <= 0 {
		severityMultiplier = experiment.DefaultSeverityMultiplier
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = experiment.DefaultAlpha
	}
	if power <= 0 || power >= 1 {
		power = experiment.DefaultPower
	}
	return &DecisionPolicy{
		severityMultiplier: severityMultiplier,
		designMDE:          designMDE,
		alpha:              alpha,
		power:              power,
		dist:               dist,
	}
}

// Decide evaluates the precedence rules over the supplied results. Guardrail
// iteration order never affects the outcome: all guardrails are inspected,
// violations accumulate into a set, and severity is an aggregate maximum.
func (p *DecisionPolicy) Decide(
	srm experiment.SRMResult,
	primary experiment.AnalysisResult,
	guardrails map[string]experiment.AnalysisResult,
	guardrailPolicy map[string]experiment.GuardrailRule,
) experiment.Decision {
	decision := experiment.Decision{
		GuardrailViolations: map[string]bool{},
	}

	// Rule 1: unreliable randomization invalidates the rest of the analysis.
	if srm.IsSuspect {
		decision.Recommendation = experiment.RecommendStop
		decision.Rationale = append(decision.Rationale, fmt.Sprintf(
			"sample ratio mismatch detected (chi-square %.2f, p=%.2g < %.3g); randomization is suspect and no effect can be trusted",
			srm.ChiSquareStatistic, srm.PValue, srm.Threshold))
		return decision
	}
	decision.Rationale = append(decision.Rationale, "sample ratio matches the intended allocation")

	// Rule 2: guardrail regressions. Names are sorted only so the rationale
	// text is stable; the violation set and severity do not depend on order.
	severe := false
	names := make([]string, 0, len(guardrails))
	for name := range guardrails {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result := guardrails[name]
		rule, hasRule := guardrailPolicy[name]
		if !hasRule || !result.IsSignificant || !regressed(result, rule.Direction) {
			continue
		}

		decision.GuardrailViolations[name] = true
		if p.isSevere(result, rule) {
			severe = true
			decision.Rationale = append(decision.Rationale, fmt.Sprintf(
				"guardrail %q regressed significantly beyond %.1fx its detectable effect", name, p.severityMultiplier))
		} else {
			decision.Rationale = append(decision.Rationale, fmt.Sprintf(
				"guardrail %q shows a small but significant regression", name))
		}
	}

	if len(decision.GuardrailViolations) > 0 {
		if severe {
			decision.Recommendation = experiment.RecommendStop
		} else {
			decision.Recommendation = experiment.RecommendIterate
		}
		return decision
	}
	decision.Rationale = append(decision.Rationale, "no guardrail metric regressed significantly")

	// Rules 3 and 4: a trusted, significant primary effect decides directly.
	if primary.IsSignificant {
		if positiveUplift(primary) {
			decision.Recommendation = experiment.RecommendShip
			decision.Rationale = append(decision.Rationale, fmt.Sprintf(
				"primary metric improved significantly (p=%.4g, uplift %+.4g)", primary.PValue, primary.UpliftAbsolute))
		} else {
			decision.Recommendation = experiment.RecommendStop
			decision.Rationale = append(decision.Rationale, fmt.Sprintf(
				"primary metric regressed significantly (p=%.4g, uplift %+.4g)", primary.PValue, primary.UpliftAbsolute))
		}
		return decision
	}

	// Rule 5: inconclusive.
	decision.Recommendation = experiment.RecommendIterate
	decision.Rationale = append(decision.Rationale, fmt.Sprintf(
		"primary metric is inconclusive (p=%.4g >= %.4g)", primary.PValue, p.alpha))
	if extra, ok := p.unitsToSignificance(primary); ok {
		decision.Rationale = append(decision.Rationale, fmt.Sprintf(
			"roughly %d more units per variant would be needed to power the observed effect", extra))
	}
	return decision
}

// regressed reports whether the uplift moved in the rule's bad direction.
func regressed(result experiment.AnalysisResult, direction experiment.GuardrailDirection) bool {
	switch direction {
	case experiment.IncreaseIsBad:
		return result.UpliftAbsolute > 0
	case experiment.DecreaseIsBad:
		return result.UpliftAbsolute < 0
	default:
		return false
	}
}

// isSevere compares the regression magnitude against the severity-scaled MDE.
func (p *DecisionPolicy) isSevere(result experiment.AnalysisResult, rule experiment.GuardrailRule) bool {
	mde := rule.MDE
	if mde == 0 {
		mde = p.designMDE
	}
	if mde == 0 {
		// No MDE to judge against; any significant regression is severe.
		return true
	}

	magnitude := math.Abs(result.UpliftRelative)
	if result.RelativeUndefined {
		magnitude = math.Abs(result.UpliftAbsolute)
	}
	return magnitude > p.severityMultiplier*math.Abs(mde)
}

func positiveUplift(result experiment.AnalysisResult) bool {
	if result.RelativeUndefined {
		return result.UpliftAbsolute > 0
	}
	return result.UpliftRelative > 0
}

// unitsToSignificance estimates the additional units per variant required to
// reach significance at the observed effect size. Only feasible for
// proportion metrics with a usable control rate and a non-zero effect.
func (p *DecisionPolicy) unitsToSignificance(primary experiment.AnalysisResult) (int, bool) {
	if primary.Kind != experiment.MetricProportion || p.dist == nil {
		return 0, false
	}
	pc := primary.ControlValue
	pt := primary.TreatmentValue
	delta := pt - pc
	if pc <= 0 || pc >= 1 || pt <= 0 || pt >= 1 || delta == 0 {
		return 0, false
	}

	zSum := p.dist.NormalQuantile(1-p.alpha/2) + p.dist.NormalQuantile(p.power)
	needed := zSum * zSum * (pc*(1-pc) + pt*(1-pt)) / (delta * delta)

	current := primary.ControlUnits
	if primary.TreatmentUnits < current {
		current = primary.TreatmentUnits
	}
	extra := int(math.Ceil(needed)) - current
	if extra <= 0 {
		return 0, false
	}
	return extra, true
}
