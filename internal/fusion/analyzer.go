package fusion

import (
	"math"

	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// DefaultConflictThreshold is the minimum pairwise probability gap recorded
// as a conflict.
const DefaultConflictThreshold = 0.20

// Conflict is one pair of agents whose fair probabilities disagree by more
// than the conflict threshold. Each unordered pair appears at most once.
type Conflict struct {
	AgentA    string  `json:"agent_a"`
	AgentB    string  `json:"agent_b"`
	Magnitude float64 `json:"magnitude"`
}

// IdentifyConflicts returns every unordered signal pair whose fair
// probabilities differ by more than threshold.
func IdentifyConflicts(signals []signal.AgentSignal, threshold float64) []Conflict {
	if threshold <= 0 {
		threshold = DefaultConflictThreshold
	}
	var conflicts []Conflict
	for i := 0; i < len(signals); i++ {
		for j := i + 1; j < len(signals); j++ {
			gap := math.Abs(signals[i].FairProbability - signals[j].FairProbability)
			if gap > threshold {
				conflicts = append(conflicts, Conflict{
					AgentA:    signals[i].AgentName,
					AgentB:    signals[j].AgentName,
					Magnitude: gap,
				})
			}
		}
	}
	return conflicts
}

// SignalAlignment maps the dispersion of fair probabilities to [0,1]:
// zero spread scores 1.0 and maximal spread (population stddev ~0.5)
// scores 0.0. Fewer than two signals trivially align.
func SignalAlignment(signals []signal.AgentSignal) float64 {
	if len(signals) < 2 {
		return 1.0
	}
	sigma := stdDev(probabilities(signals))
	return math.Max(0, 1-2*sigma)
}

// ProbabilityRange returns the min and max fair probability across signals.
func ProbabilityRange(signals []signal.AgentSignal) (min, max float64) {
	if len(signals) == 0 {
		return 0, 0
	}
	min, max = signals[0].FairProbability, signals[0].FairProbability
	for _, s := range signals[1:] {
		if s.FairProbability < min {
			min = s.FairProbability
		}
		if s.FairProbability > max {
			max = s.FairProbability
		}
	}
	return min, max
}

func probabilities(signals []signal.AgentSignal) []float64 {
	ps := make([]float64, len(signals))
	for i, s := range signals {
		ps[i] = s.FairProbability
	}
	return ps
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}
