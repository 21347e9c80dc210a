package engine

import (
	"expstat/domain/core"
	"expstat/domain/experiment"
)

// Trend compares two immutable analysis snapshots of the same metric, e.g.
// last week's read-out against this week's. Pure; nothing is persisted.
func Trend(previous, current experiment.AnalysisResult) (experiment.TrendResult, error) {
	if previous.Kind != current.Kind {
		return experiment.TrendResult{}, core.NewMetricTypeMismatchError(string(previous.Kind), string(current.Kind))
	}

	delta := current.UpliftAbsolute - previous.UpliftAbsolute

	direction := experiment.TrendStable
	switch {
	case delta > 0:
		direction = experiment.TrendImproving
	case delta < 0:
		direction = experiment.TrendDeclining
	}

	return experiment.TrendResult{
		Direction:         direction,
		UpliftDelta:       delta,
		BecameSignificant: current.IsSignificant && !previous.IsSignificant,
		LostSignificance:  !current.IsSignificant && previous.IsSignificant,
		IntervalsOverlap: previous.ConfidenceInt.Low <= current.ConfidenceInt.High &&
			current.ConfidenceInt.Low <= previous.ConfidenceInt.High,
	}, nil
}
