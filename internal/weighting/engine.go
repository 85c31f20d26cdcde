// Package weighting assigns each agent signal a normalized weight from its
// category, stated confidence, data freshness, market liquidity, and
// historical accuracy.
package weighting

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// Config controls the weighting engine for one cycle. Treated as read-only
// while a cycle runs.
type Config struct {
	// BaseWeights maps category to base weight. Missing categories use the
	// built-in defaults.
	BaseWeights map[signal.Category]float64
	// ContextAdjustment enables the confidence/freshness/liquidity/accuracy
	// multipliers on top of the base weights.
	ContextAdjustment bool
}

// DefaultBaseWeights returns the built-in base weight per category.
func DefaultBaseWeights() map[signal.Category]float64 {
	return map[signal.Category]float64{
		signal.CategoryNews:           1.2,
		signal.CategoryPolling:        1.3,
		signal.CategorySentiment:      0.9,
		signal.CategoryMicrostructure: 1.1,
		signal.CategoryFundamentals:   1.2,
		signal.CategoryBaseline:       1.0,
	}
}

const (
	freshnessWindow    = time.Hour
	maxAgeMultiplier   = 3.0
	stalenessStep      = 0.2 // Reduction per freshness window beyond the first, capped at 40%
	lowLiquidityCutoff = 5.0
	lowAccuracyCutoff  = 0.4
	highAccuracyCutoff = 0.7
)

// AgentWeight is the computed weight for one agent with the factor
// breakdown that produced it. Factors multiply to the raw (pre-normalized)
// weight.
type AgentWeight struct {
	AgentName        string          `json:"agent_name"`
	Category         signal.Category `json:"category"`
	BaseWeight       float64         `json:"base_weight"`
	ConfidenceFactor float64         `json:"confidence_factor"`
	FreshnessFactor  float64         `json:"freshness_factor"`
	LiquidityFactor  float64         `json:"liquidity_factor"`
	AccuracyFactor   float64         `json:"accuracy_factor"`
	Raw              float64         `json:"raw"`
	Normalized       float64         `json:"normalized"`
}

// Report is the full weighting output for one cycle: a normalized weight
// map plus the per-agent breakdown for audit.
type Report struct {
	Weights             map[string]float64 `json:"weights"` // Sums to 1
	Breakdown           []AgentWeight      `json:"breakdown"`
	EqualWeightFallback bool               `json:"equal_weight_fallback"`
	FallbackReason      string             `json:"fallback_reason,omitempty"`
}

// Engine computes signal weights.
type Engine struct {
	cfg Config
}

// NewEngine creates a weighting engine. Nil base weights use the defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.BaseWeights == nil {
		cfg.BaseWeights = DefaultBaseWeights()
	}
	return &Engine{cfg: cfg}
}

// ComputeWeights returns a complete weight map over the given signals,
// summing to 1 with no negative entries. It never fails for a non-empty
// signal list: a zero weight total or an internal panic degrades to equal
// weights, reported on the returned Report.
func (e *Engine) ComputeWeights(signals []signal.AgentSignal, mctx *signal.MarketContext) (report Report) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Weighting engine panicked, falling back to equal weights")
			report = equalWeights(signals, "internal error during weighting")
		}
	}()

	report = Report{Weights: make(map[string]float64, len(signals))}
	if len(signals) == 0 {
		return report
	}

	total := 0.0
	for i := range signals {
		aw := e.weighAgent(&signals[i], mctx)
		report.Breakdown = append(report.Breakdown, aw)
		total += aw.Raw
	}

	if total <= 0 {
		return equalWeights(signals, "all agents weighted to zero")
	}

	for i := range report.Breakdown {
		aw := &report.Breakdown[i]
		aw.Normalized = aw.Raw / total
		report.Weights[aw.AgentName] = aw.Normalized
	}
	return report
}

// weighAgent computes one agent's raw weight and factor breakdown.
func (e *Engine) weighAgent(s *signal.AgentSignal, mctx *signal.MarketContext) AgentWeight {
	cat := signal.ClassifyAgent(s.AgentName)

	base, ok := e.cfg.BaseWeights[cat]
	if !ok {
		base = DefaultBaseWeights()[cat]
	}

	aw := AgentWeight{
		AgentName:        s.AgentName,
		Category:         cat,
		BaseWeight:       base,
		ConfidenceFactor: 1,
		FreshnessFactor:  1,
		LiquidityFactor:  1,
		AccuracyFactor:   1,
	}

	if e.cfg.ContextAdjustment && mctx != nil {
		// Confidence 0 -> 0.7x, confidence 1 -> 1.2x.
		aw.ConfidenceFactor = 0.7 + 0.5*s.Confidence
		aw.FreshnessFactor = freshnessFactor(cat, mctx)
		aw.LiquidityFactor = liquidityFactor(cat, mctx.LiquidityScore)
		aw.AccuracyFactor = accuracyFactor(mctx.AgentAccuracy, s.AgentName)
	}

	raw := base * aw.ConfidenceFactor * aw.FreshnessFactor * aw.LiquidityFactor * aw.AccuracyFactor
	aw.Raw = math.Max(0, raw)
	return aw
}

// freshnessFactor penalizes agents whose relevant data source is older than
// one hour. The penalty grows with staleness up to a 3x age multiplier,
// a 40% reduction at most.
func freshnessFactor(cat signal.Category, mctx *signal.MarketContext) float64 {
	source, ok := cat.FreshnessSource()
	if !ok {
		return 1
	}
	age, ok := mctx.SourceAge(source)
	if !ok || age <= freshnessWindow {
		return 1
	}
	ageMult := math.Min(float64(age)/float64(freshnessWindow), maxAgeMultiplier)
	return 1 - stalenessStep*(ageMult-1)
}

// liquidityFactor penalizes liquidity-sensitive agents in thin markets,
// linearly down to 0.5x at zero liquidity.
func liquidityFactor(cat signal.Category, liquidity float64) float64 {
	if !cat.LiquiditySensitive() || liquidity >= lowLiquidityCutoff {
		return 1
	}
	if liquidity < 0 {
		liquidity = 0
	}
	return 0.5 + 0.5*(liquidity/lowLiquidityCutoff)
}

// accuracyFactor scales by historical accuracy: below 0.4 down to 0.5x,
// above 0.7 up to 1.5x, neutral in between. Agents with no history are
// unscaled.
func accuracyFactor(accuracy map[string]float64, agentName string) float64 {
	acc, ok := accuracy[agentName]
	if !ok {
		return 1
	}
	switch {
	case acc < 0:
		return 0.5
	case acc < lowAccuracyCutoff:
		return 0.5 + (acc/lowAccuracyCutoff)*0.5
	case acc <= highAccuracyCutoff:
		return 1
	case acc <= 1:
		return 1 + ((acc-highAccuracyCutoff)/(1-highAccuracyCutoff))*0.5
	default:
		return 1.5
	}
}

// equalWeights builds the fallback report where every agent gets 1/n.
func equalWeights(signals []signal.AgentSignal, reason string) Report {
	report := Report{
		Weights:             make(map[string]float64, len(signals)),
		EqualWeightFallback: true,
		FallbackReason:      reason,
	}
	if len(signals) == 0 {
		return report
	}
	w := 1.0 / float64(len(signals))
	for i := range signals {
		cat := signal.ClassifyAgent(signals[i].AgentName)
		report.Weights[signals[i].AgentName] = w
		report.Breakdown = append(report.Breakdown, AgentWeight{
			AgentName:        signals[i].AgentName,
			Category:         cat,
			BaseWeight:       1,
			ConfidenceFactor: 1,
			FreshnessFactor:  1,
			LiquidityFactor:  1,
			AccuracyFactor:   1,
			Raw:              1,
			Normalized:       w,
		})
	}
	log.Warn().Int("agents", len(signals)).Str("reason", reason).Msg("Using equal-weight fallback")
	return report
}
