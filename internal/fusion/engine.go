// Package fusion combines weighted agent signals into a single fused
// probability with a confidence score, penalizing disagreement and stale or
// low-quality inputs.
package fusion

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// Config controls the fusion engine for one cycle.
type Config struct {
	// ConflictThreshold is the pairwise gap above which a conflict is
	// recorded. Default 0.20.
	ConflictThreshold float64
	// AlignmentBonus scales the alignment contribution to fused confidence.
	// Default 0.20.
	AlignmentBonus float64
	// DivergenceThreshold is the probability range above which confidence is
	// halved and the extreme-divergence flag set. Default 0.70.
	DivergenceThreshold float64
}

// DefaultConfig returns the fusion defaults.
func DefaultConfig() Config {
	return Config{
		ConflictThreshold:   DefaultConflictThreshold,
		AlignmentBonus:      0.20,
		DivergenceThreshold: 0.70,
	}
}

const (
	qualityPenaltyCoeff = 0.3
	freshnessWindow     = time.Hour
	defaultDataQuality  = 0.5
)

// FusedSignal is the weighted aggregate of all agent signals for one cycle.
// Never mutated after creation.
type FusedSignal struct {
	FairProbability    float64            `json:"fair_probability"`
	Confidence         float64            `json:"confidence"`
	SignalAlignment    float64            `json:"signal_alignment"`
	ConflictingSignals []Conflict         `json:"conflicting_signals,omitempty"`
	ContributingAgents []string           `json:"contributing_agents"`
	Weights            map[string]float64 `json:"weights"`
	DataQuality        float64            `json:"data_quality"`
	ExtremeDivergence  bool               `json:"extreme_divergence"`
	ProbabilityRange   [2]float64         `json:"probability_range"`
}

// Engine fuses weighted signals.
type Engine struct {
	cfg Config
}

// NewEngine creates a fusion engine, filling zero config fields with
// defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ConflictThreshold <= 0 {
		cfg.ConflictThreshold = def.ConflictThreshold
	}
	if cfg.AlignmentBonus <= 0 {
		cfg.AlignmentBonus = def.AlignmentBonus
	}
	if cfg.DivergenceThreshold <= 0 {
		cfg.DivergenceThreshold = def.DivergenceThreshold
	}
	return &Engine{cfg: cfg}
}

// Fuse combines signals under the given weight map into a FusedSignal.
// With zero signals there is no fused signal and an error states the
// reason. Internal panics are recovered into errors so fusion can never
// abort a cycle.
func (e *Engine) Fuse(signals []signal.AgentSignal, weights map[string]float64, mctx *signal.MarketContext) (fused *FusedSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Fusion engine panicked")
			fused = nil
			err = fmt.Errorf("fusion failed: internal error: %v", r)
		}
	}()

	if len(signals) == 0 {
		return nil, fmt.Errorf("fusion skipped: no valid agent signals")
	}

	fairProb := 0.0
	baseConfidence := 0.0
	agents := make([]string, 0, len(signals))
	for _, s := range signals {
		w := weights[s.AgentName]
		fairProb += s.FairProbability * w
		baseConfidence += s.Confidence * w
		agents = append(agents, s.AgentName)
	}
	fairProb = clamp01(fairProb)

	alignment := SignalAlignment(signals)
	conflicts := IdentifyConflicts(signals, e.cfg.ConflictThreshold)
	quality := dataQuality(signals, mctx)

	confidence := baseConfidence + alignment*e.cfg.AlignmentBonus - (1-quality)*qualityPenaltyCoeff
	confidence = clamp01(confidence)

	lo, hi := ProbabilityRange(signals)
	extreme := hi-lo > e.cfg.DivergenceThreshold
	if extreme {
		// Hard safety rule: wide disagreement is never presented with
		// unreduced confidence.
		confidence /= 2
		log.Warn().
			Float64("range_low", lo).
			Float64("range_high", hi).
			Float64("confidence", confidence).
			Msg("Extreme signal divergence, confidence halved")
	}

	return &FusedSignal{
		FairProbability:    fairProb,
		Confidence:         confidence,
		SignalAlignment:    alignment,
		ConflictingSignals: conflicts,
		ContributingAgents: agents,
		Weights:            weights,
		DataQuality:        quality,
		ExtremeDivergence:  extreme,
		ProbabilityRange:   [2]float64{lo, hi},
	}, nil
}

// dataQuality averages mean agent confidence with the mean per-source
// freshness score (each source scored max(0, 1-age/1h)). With no freshness
// data only the confidence component counts; with no signals quality
// defaults to 0.5.
func dataQuality(signals []signal.AgentSignal, mctx *signal.MarketContext) float64 {
	if len(signals) == 0 {
		return defaultDataQuality
	}

	confSum := 0.0
	for _, s := range signals {
		confSum += s.Confidence
	}
	confMean := confSum / float64(len(signals))

	if mctx == nil || len(mctx.DataFreshness) == 0 {
		return confMean
	}

	freshSum := 0.0
	freshCount := 0
	for source := range mctx.DataFreshness {
		age, ok := mctx.SourceAge(source)
		if !ok {
			continue
		}
		freshSum += math.Max(0, 1-float64(age)/float64(freshnessWindow))
		freshCount++
	}
	if freshCount == 0 {
		return confMean
	}
	return (confMean + freshSum/float64(freshCount)) / 2
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
