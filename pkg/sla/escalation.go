package sla

import (
	"sort"
)

// EscalationResult is the tracker's verdict for one evaluation
type EscalationResult struct {
	ElapsedPercent float64
	NewLevel       int
	Crossed        []EscalationLevel // ascending; every level above the current one whose threshold was reached
	ShouldEscalate bool
}

// ElapsedPercent is elapsed/resolution*100.
func ElapsedPercent(elapsedHours, resolutionHours float64) float64 {
	if resolutionHours <= 0 {
		return 0
	}
	return elapsedHours / resolutionHours * 100
}

// EvaluateEscalation finds the escalation levels reached at elapsedHours.
//
// All reached levels above currentLevel are returned, not just the highest, so a delayed
// tick that jumps two thresholds still triggers the side effects of the intermediate one.
// The returned level never drops below currentLevel.
func EvaluateEscalation(elapsedHours, resolutionHours float64, currentLevel int, levels []EscalationLevel) (EscalationResult, error) {
	if resolutionHours <= 0 {
		return EscalationResult{}, &ConfigurationError{Reason: "resolution time must be positive"}
	}

	res := EscalationResult{
		ElapsedPercent: ElapsedPercent(elapsedHours, resolutionHours),
		NewLevel:       currentLevel,
	}

	for _, lvl := range sortedLevels(levels) {
		if lvl.ThresholdPercent > res.ElapsedPercent {
			break
		}
		if lvl.Level <= currentLevel {
			continue
		}
		res.Crossed = append(res.Crossed, lvl)
		if lvl.Level > res.NewLevel {
			res.NewLevel = lvl.Level
		}
	}

	res.ShouldEscalate = res.NewLevel > currentLevel
	return res, nil
}

// CheckWarnings returns the thresholds reached at elapsedPercent that have not fired yet,
// ascending and without duplicates.
func CheckWarnings(elapsedPercent float64, thresholds, alreadyFired []float64) []float64 {
	fired := make(map[float64]struct{}, len(alreadyFired))
	for _, f := range alreadyFired {
		fired[f] = struct{}{}
	}

	var fresh []float64
	for _, t := range thresholds {
		if t > elapsedPercent {
			continue
		}
		if _, done := fired[t]; done {
			continue
		}
		fired[t] = struct{}{}
		fresh = append(fresh, t)
	}

	sort.Float64s(fresh)
	return fresh
}

func sortedLevels(levels []EscalationLevel) []EscalationLevel {
	out := make([]EscalationLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ThresholdPercent < out[j].ThresholdPercent
	})
	return out
}
