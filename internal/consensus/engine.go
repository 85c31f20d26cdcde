// Package consensus reconciles the bull and bear theses, the debate record,
// and the contributing agent signals into a bounded consensus probability
// with an uncertainty band and a confidence regime.
package consensus

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// FailureCode is the typed failure taxonomy for the consensus and decision
// stages. Callers must be able to distinguish "no trade recommended" from
// "pipeline failure", so these surface as typed results, never panics.
type FailureCode string

const (
	// FailureInsufficientData: missing theses, debate record, or too few
	// agent signals.
	FailureInsufficientData FailureCode = "INSUFFICIENT_DATA"
	// FailureConsensusFailed: agent disagreement above the hard threshold,
	// or an internal computation error.
	FailureConsensusFailed FailureCode = "CONSENSUS_FAILED"
	// FailureNoEdge: edge below the minimum threshold. Not a defect, a
	// legitimate decision not to trade.
	FailureNoEdge FailureCode = "NO_EDGE"
)

// Error is a typed stage failure.
type Error struct {
	Code   FailureCode
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Regime is the discrete confidence classification derived from agent
// disagreement.
type Regime string

const (
	RegimeHighConfidence     Regime = "high-confidence"
	RegimeModerateConfidence Regime = "moderate-confidence"
	RegimeHighUncertainty    Regime = "high-uncertainty"
)

// Config controls the consensus engine.
type Config struct {
	// MinAgentsRequired is the minimum number of contributing agent signals.
	MinAgentsRequired int
	// MaxDisagreement is the disagreement index above which consensus fails
	// outright. Default 0.30.
	MaxDisagreement float64
	// EfficientPriceBand marks a market as efficiently priced when
	// |consensus - market| falls inside it. Default 0.03.
	EfficientPriceBand float64
}

// DefaultConfig returns the consensus defaults.
func DefaultConfig() Config {
	return Config{
		MinAgentsRequired:  3,
		MaxDisagreement:    0.30,
		EfficientPriceBand: 0.03,
	}
}

const (
	bandBaseWidth            = 0.05
	bandDisagreementCoeff    = 3.0
	highConfidenceCutoff     = 0.10
	moderateConfidenceCutoff = 0.20
)

// Probability is the bounded consensus estimate for one cycle.
type Probability struct {
	ConsensusProbability float64    `json:"consensus_probability"`
	ConfidenceBand       [2]float64 `json:"confidence_band"` // [lower, upper] within [0,1]
	DisagreementIndex    float64    `json:"disagreement_index"`
	Regime               Regime     `json:"regime"`
	ContributingSignals  []string   `json:"contributing_signals"`
	EfficientlyPriced    bool       `json:"efficiently_priced"`
	BullWeight           float64    `json:"bull_weight"`
	BearWeight           float64    `json:"bear_weight"`
}

// Input carries everything the consensus engine consumes for one cycle.
type Input struct {
	Bull    *signal.Thesis
	Bear    *signal.Thesis
	Debate  *signal.DebateRecord
	Signals []signal.AgentSignal
	Market  *signal.MarketContext
}

// Engine computes weighted consensus.
type Engine struct {
	cfg Config
}

// NewEngine creates a consensus engine, filling zero config fields with
// defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MinAgentsRequired <= 0 {
		cfg.MinAgentsRequired = def.MinAgentsRequired
	}
	if cfg.MaxDisagreement <= 0 {
		cfg.MaxDisagreement = def.MaxDisagreement
	}
	if cfg.EfficientPriceBand <= 0 {
		cfg.EfficientPriceBand = def.EfficientPriceBand
	}
	return &Engine{cfg: cfg}
}

// Compute derives the consensus probability. Missing preconditions return
// an INSUFFICIENT_DATA error; disagreement above the hard threshold returns
// CONSENSUS_FAILED rather than a low-confidence result.
func (e *Engine) Compute(in Input) (prob *Probability, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Consensus engine panicked")
			prob = nil
			err = &Error{Code: FailureConsensusFailed, Reason: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	if in.Debate == nil {
		return nil, &Error{Code: FailureInsufficientData, Reason: "debate record missing"}
	}
	if in.Bull == nil || in.Bear == nil {
		return nil, &Error{Code: FailureInsufficientData, Reason: "both theses required"}
	}
	if len(in.Signals) < e.cfg.MinAgentsRequired {
		return nil, &Error{
			Code:   FailureInsufficientData,
			Reason: fmt.Sprintf("need at least %d agent signals, got %d", e.cfg.MinAgentsRequired, len(in.Signals)),
		}
	}

	// Shift debate scores from [-1,1] to weights in [0,2].
	bullWeight := in.Debate.BullScore + 1
	bearWeight := in.Debate.BearScore + 1

	// The bear thesis argues the NO side; invert to a YES probability.
	bullProb := in.Bull.FairProbability
	bearYesProb := 1 - in.Bear.FairProbability

	var consensusProb float64
	if bullWeight+bearWeight == 0 {
		consensusProb = (bullProb + bearYesProb) / 2
	} else {
		consensusProb = (bullProb*bullWeight + bearYesProb*bearWeight) / (bullWeight + bearWeight)
	}
	if math.IsNaN(consensusProb) {
		consensusProb = 0.5
	}
	consensusProb = clamp01(consensusProb)

	di := disagreementIndex(in.Signals)
	if di > e.cfg.MaxDisagreement {
		// Hard stop: disagreement this wide makes any consensus untrustworthy.
		return nil, &Error{
			Code:   FailureConsensusFailed,
			Reason: fmt.Sprintf("agent disagreement %.3f exceeds %.2f", di, e.cfg.MaxDisagreement),
		}
	}

	halfWidth := bandBaseWidth * (1 + bandDisagreementCoeff*di)
	band := [2]float64{clamp01(consensusProb - halfWidth), clamp01(consensusProb + halfWidth)}

	agents := make([]string, 0, len(in.Signals))
	for _, s := range in.Signals {
		agents = append(agents, s.AgentName)
	}

	efficient := false
	if in.Market != nil {
		efficient = math.Abs(consensusProb-in.Market.MarketProbability) < e.cfg.EfficientPriceBand
	}

	return &Probability{
		ConsensusProbability: consensusProb,
		ConfidenceBand:       band,
		DisagreementIndex:    di,
		Regime:               classifyRegime(di),
		ContributingSignals:  agents,
		EfficientlyPriced:    efficient,
		BullWeight:           bullWeight,
		BearWeight:           bearWeight,
	}, nil
}

// disagreementIndex is the population standard deviation of the
// contributing fair probabilities.
func disagreementIndex(signals []signal.AgentSignal) float64 {
	if len(signals) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range signals {
		sum += s.FairProbability
	}
	mean := sum / float64(len(signals))

	variance := 0.0
	for _, s := range signals {
		diff := s.FairProbability - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(signals)))
}

func classifyRegime(di float64) Regime {
	switch {
	case di < highConfidenceCutoff:
		return RegimeHighConfidence
	case di < moderateConfidenceCutoff:
		return RegimeModerateConfidence
	default:
		return RegimeHighUncertainty
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
