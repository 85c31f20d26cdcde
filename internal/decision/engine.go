// Package decision turns a consensus probability and the current market
// price into a trade recommendation with an expected-value justification.
// A non-positive expected value always forces NO_TRADE.
package decision

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/consensus"
	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// Action is the final trade decision.
type Action string

const (
	ActionLongYes Action = "LONG_YES"
	ActionLongNo  Action = "LONG_NO"
	ActionNoTrade Action = "NO_TRADE"
)

// LiquidityRisk classifies execution risk from the market's liquidity score.
type LiquidityRisk string

const (
	LiquidityLow    LiquidityRisk = "low"
	LiquidityMedium LiquidityRisk = "medium"
	LiquidityHigh   LiquidityRisk = "high"
)

// Config controls the decision engine.
type Config struct {
	// MinEdgeThreshold is the minimum |consensus - market| required to
	// consider trading at all. Default 0.05.
	MinEdgeThreshold float64
	// TransactionCost is the assumed round-trip cost in probability terms,
	// netted out of the edge. Default 0.02.
	TransactionCost float64
	// EntryZoneWidth is the half-width of the entry interval around the
	// market price. Default 0.02.
	EntryZoneWidth float64
	// TargetZoneWidth is the half-width of the target interval around the
	// consensus probability. Default 0.03.
	TargetZoneWidth float64
	// UncertaintyNoteThreshold is the disagreement index above which the
	// explanation carries an uncertainty note. Default 0.15.
	UncertaintyNoteThreshold float64
}

// DefaultConfig returns the decision defaults.
func DefaultConfig() Config {
	return Config{
		MinEdgeThreshold:         0.05,
		TransactionCost:          0.02,
		EntryZoneWidth:           0.02,
		TargetZoneWidth:          0.03,
		UncertaintyNoteThreshold: 0.15,
	}
}

// Zone is a price interval in YES-probability space with Min <= Max, both
// within [0,1].
type Zone struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Explanation is the structured human-readable justification attached to
// every recommendation. Summary and CoreThesis are always non-empty.
type Explanation struct {
	Summary          string   `json:"summary"`
	CoreThesis       string   `json:"core_thesis"`
	Catalysts        []string `json:"catalysts,omitempty"`
	FailureScenarios []string `json:"failure_scenarios,omitempty"`
	UncertaintyNote  string   `json:"uncertainty_note,omitempty"`
}

// Recommendation is the final output of the pipeline for one cycle.
type Recommendation struct {
	Action         Action         `json:"action"`
	EntryZone      Zone           `json:"entry_zone"`
	TargetZone     Zone           `json:"target_zone"`
	ExpectedValue  float64        `json:"expected_value"` // Dollars per $100 staked, net of costs
	WinProbability float64        `json:"win_probability"`
	LiquidityRisk  LiquidityRisk  `json:"liquidity_risk"`
	Explanation    Explanation    `json:"explanation"`
	Metadata       Metadata       `json:"metadata"`
}

// Metadata echoes the consensus inputs on the recommendation for audit.
type Metadata struct {
	ConsensusProbability float64          `json:"consensus_probability"`
	MarketProbability    float64          `json:"market_probability"`
	Edge                 float64          `json:"edge"`
	DisagreementIndex    float64          `json:"disagreement_index"`
	Regime               consensus.Regime `json:"regime"`
	EfficientlyPriced    bool             `json:"efficiently_priced"`
	NoTradeReason        string           `json:"no_trade_reason,omitempty"`
}

// Input carries the decision inputs for one cycle.
type Input struct {
	Consensus *consensus.Probability
	Market    *signal.MarketContext
	Bull      *signal.Thesis
	Bear      *signal.Thesis
}

// Engine produces trade recommendations.
type Engine struct {
	cfg Config
}

// NewEngine creates a decision engine, filling zero config fields with
// defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MinEdgeThreshold <= 0 {
		cfg.MinEdgeThreshold = def.MinEdgeThreshold
	}
	if cfg.TransactionCost <= 0 {
		cfg.TransactionCost = def.TransactionCost
	}
	if cfg.EntryZoneWidth <= 0 {
		cfg.EntryZoneWidth = def.EntryZoneWidth
	}
	if cfg.TargetZoneWidth <= 0 {
		cfg.TargetZoneWidth = def.TargetZoneWidth
	}
	if cfg.UncertaintyNoteThreshold <= 0 {
		cfg.UncertaintyNoteThreshold = def.UncertaintyNoteThreshold
	}
	return &Engine{cfg: cfg}
}

// Decide compares consensus to market-implied probability and produces a
// recommendation. Every path returns a recommendation; no-trade outcomes
// carry the reason in metadata rather than an error.
func (e *Engine) Decide(in Input) (*Recommendation, error) {
	if in.Consensus == nil || in.Market == nil {
		return nil, &consensus.Error{Code: consensus.FailureInsufficientData, Reason: "consensus and market context required"}
	}

	cp := in.Consensus.ConsensusProbability
	mp := in.Market.MarketProbability
	edge := cp - mp
	netEdge := math.Abs(edge) - e.cfg.TransactionCost
	expectedValue := netEdge * 100

	meta := Metadata{
		ConsensusProbability: cp,
		MarketProbability:    mp,
		Edge:                 edge,
		DisagreementIndex:    in.Consensus.DisagreementIndex,
		Regime:               in.Consensus.Regime,
		EfficientlyPriced:    in.Consensus.EfficientlyPriced,
	}

	if math.Abs(edge) < e.cfg.MinEdgeThreshold {
		meta.NoTradeReason = string(consensus.FailureNoEdge)
		return e.noTrade(in, meta, expectedValue,
			fmt.Sprintf("Edge %.3f below the %.2f minimum; no trade.", math.Abs(edge), e.cfg.MinEdgeThreshold)), nil
	}

	// The single most important invariant of the pipeline: a trade is never
	// recommended on non-positive expected value.
	if expectedValue <= 0 {
		meta.NoTradeReason = "negative_expected_value"
		return e.noTrade(in, meta, expectedValue,
			fmt.Sprintf("Expected value $%.2f per $100 after costs is non-positive; no trade.", expectedValue)), nil
	}

	action := ActionLongYes
	primary := in.Bull
	winProb := cp
	if edge < 0 {
		action = ActionLongNo
		primary = in.Bear
		winProb = 1 - cp
	}

	rec := &Recommendation{
		Action:         action,
		EntryZone:      zoneAround(mp, e.cfg.EntryZoneWidth),
		TargetZone:     zoneAround(cp, e.cfg.TargetZoneWidth),
		ExpectedValue:  expectedValue,
		WinProbability: winProb,
		LiquidityRisk:  classifyLiquidity(in.Market.LiquidityScore),
		Explanation:    e.explain(action, primary, in.Consensus, edge, expectedValue),
		Metadata:       meta,
	}

	log.Info().
		Str("market", in.Market.MarketID).
		Str("action", string(action)).
		Float64("edge", edge).
		Float64("expected_value", expectedValue).
		Float64("win_probability", winProb).
		Msg("Trade recommended")

	return rec, nil
}

// noTrade builds the NO_TRADE recommendation shared by the edge and EV
// gates. The computed net EV is reported for audit even though no position
// is taken.
func (e *Engine) noTrade(in Input, meta Metadata, expectedValue float64, summary string) *Recommendation {
	explanation := Explanation{
		Summary:    summary,
		CoreThesis: "Consensus does not diverge from the market price enough to overcome transaction costs.",
	}
	if in.Consensus.DisagreementIndex > e.cfg.UncertaintyNoteThreshold {
		explanation.UncertaintyNote = uncertaintyNote(in.Consensus)
	}

	log.Info().
		Str("market", in.Market.MarketID).
		Str("reason", meta.NoTradeReason).
		Float64("edge", meta.Edge).
		Float64("expected_value", expectedValue).
		Msg("No trade")

	return &Recommendation{
		Action:        ActionNoTrade,
		ExpectedValue: expectedValue,
		LiquidityRisk: classifyLiquidity(in.Market.LiquidityScore),
		Explanation:   explanation,
		Metadata:      meta,
	}
}

// explain assembles the structured justification. The primary thesis's
// catalysts and failure conditions are surfaced whenever present.
func (e *Engine) explain(action Action, primary *signal.Thesis, cons *consensus.Probability, edge, expectedValue float64) Explanation {
	side := "YES"
	if action == ActionLongNo {
		side = "NO"
	}

	ex := Explanation{
		Summary: fmt.Sprintf("Buy %s: consensus %.1f%% vs market %.1f%%, expected value $%.2f per $100.",
			side, cons.ConsensusProbability*100, (cons.ConsensusProbability-edge)*100, expectedValue),
		CoreThesis: fmt.Sprintf("The %s side is mispriced by %.1f points under a %s regime.",
			side, math.Abs(edge)*100, cons.Regime),
	}
	if primary != nil {
		if len(primary.Catalysts) > 0 {
			ex.Catalysts = primary.Catalysts
		}
		if len(primary.FailureConditions) > 0 {
			ex.FailureScenarios = primary.FailureConditions
		}
		if len(primary.SupportingSignals) > 0 {
			ex.CoreThesis += fmt.Sprintf(" Supported by %s.", strings.Join(primary.SupportingSignals, ", "))
		}
	}
	if cons.DisagreementIndex > e.cfg.UncertaintyNoteThreshold {
		ex.UncertaintyNote = uncertaintyNote(cons)
	}
	return ex
}

func uncertaintyNote(cons *consensus.Probability) string {
	return fmt.Sprintf("Agent disagreement is elevated (index %.2f); the consensus band [%.2f, %.2f] is wide.",
		cons.DisagreementIndex, cons.ConfidenceBand[0], cons.ConfidenceBand[1])
}

// zoneAround builds a price interval centered on p, clamped to [0,1].
func zoneAround(p, halfWidth float64) Zone {
	lo := math.Max(0, p-halfWidth)
	hi := math.Min(1, p+halfWidth)
	if lo > hi {
		lo = hi
	}
	return Zone{Min: lo, Max: hi}
}

func classifyLiquidity(score float64) LiquidityRisk {
	switch {
	case score >= 7:
		return LiquidityLow
	case score >= 4:
		return LiquidityMedium
	default:
		return LiquidityHigh
	}
}
