package labour

import (
	"sort"
)

// recentContractionCount is how many scored contractions the
// phase-progression rule averages over. Fewer than this and the rule
// proposes nothing — a single strong contraction is not a trend.
const recentContractionCount = 3

// derivePhase implements the phase-progression rule: it
// looks at the last three contractions with known intensity (most recent
// first) and proposes TRANSITION or ACTIVE based on their average
// intensity and duration. The result is then clamped so phases only ever
// advance and nothing ever leaves COMPLETE.
func derivePhase(state *State) Phase {
	if state.Phase == PhaseComplete {
		return PhaseComplete
	}

	candidate := state.Phase
	if len(state.Contractions) > 0 && rank[candidate] < rank[PhaseEarly] {
		candidate = PhaseEarly
	}

	recent := recentScoredContractions(state, recentContractionCount)
	if len(recent) >= recentContractionCount {
		avgIntensity, avgDuration := averageStats(recent)
		switch {
		case avgIntensity >= 8 && avgDuration >= 90: // 1.5 minutes in seconds
			candidate = maxPhase(candidate, PhaseTransition)
		case avgIntensity >= 6 && avgDuration >= 60: // 1 minute in seconds
			candidate = maxPhase(candidate, PhaseActive)
		}
	}

	return maxPhase(state.Phase, candidate)
}

// recentScoredContractions returns up to n of the most recently started
// contractions that have both ended and have a known intensity, most
// recent first.
func recentScoredContractions(state *State, n int) []Contraction {
	var scored []Contraction
	for _, c := range state.Contractions {
		if c.EndTime != nil && c.Intensity != nil {
			scored = append(scored, c)
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].StartTime.After(scored[j].StartTime)
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func averageStats(contractions []Contraction) (avgIntensity float64, avgDurationSeconds float64) {
	var sumIntensity, sumDuration float64
	for _, c := range contractions {
		sumIntensity += float64(*c.Intensity)
		sumDuration += c.Duration().Seconds()
	}
	n := float64(len(contractions))
	return sumIntensity / n, sumDuration / n
}

func maxPhase(a, b Phase) Phase {
	if rank[b] > rank[a] {
		return b
	}
	return a
}
