package signal

import (
	"time"
)

// Direction is the side of a binary market an agent leans toward.
type Direction string

const (
	DirectionYes     Direction = "YES"
	DirectionNo      Direction = "NO"
	DirectionNeutral Direction = "NEUTRAL"
)

// AgentSignal is one agent's opinion about a market, produced exactly once
// per agent per analysis cycle and immutable afterwards.
type AgentSignal struct {
	AgentName       string            `json:"agent_name"`
	Confidence      float64           `json:"confidence"`       // 0.0-1.0
	Direction       Direction         `json:"direction"`        // YES, NO, NEUTRAL
	FairProbability float64           `json:"fair_probability"` // Agent's estimate of true probability
	KeyDrivers      []string          `json:"key_drivers"`      // 1-5 short strings
	RiskFactors     []string          `json:"risk_factors,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// DataSource identifies an external data feed whose freshness affects
// signal weighting and fused data quality.
type DataSource string

const (
	SourceNews    DataSource = "news"
	SourcePolling DataSource = "polling"
	SourceSocial  DataSource = "social"
)

// MarketContext is the ambient market state supplied by the ingestion layer
// for one analysis cycle. Read-only for the duration of the cycle.
type MarketContext struct {
	MarketID          string                   `json:"market_id"`
	MarketProbability float64                  `json:"market_probability"` // Market-implied YES probability
	LiquidityScore    float64                  `json:"liquidity_score"`    // 0-10
	BidAskSpread      float64                  `json:"bid_ask_spread"`
	Volume            float64                  `json:"volume"`
	DataFreshness     map[DataSource]time.Time `json:"data_freshness,omitempty"` // Last update per source
	AgentAccuracy     map[string]float64       `json:"agent_accuracy,omitempty"` // Historical accuracy per agent
	AsOf              time.Time                `json:"as_of"`
}

// SourceAge returns how stale a data source is relative to the cycle time.
// The second return is false when no freshness timestamp exists for the source.
func (mc *MarketContext) SourceAge(source DataSource) (time.Duration, bool) {
	ts, ok := mc.DataFreshness[source]
	if !ok || ts.IsZero() {
		return 0, false
	}
	at := mc.AsOf
	if at.IsZero() {
		at = time.Now()
	}
	age := at.Sub(ts)
	if age < 0 {
		age = 0
	}
	return age, true
}

// Thesis is a structured argument for one side of the market, produced by
// the upstream argumentation stage. Two exist per cycle (bull and bear).
type Thesis struct {
	Direction         Direction `json:"direction"` // YES (bull) or NO (bear)
	FairProbability   float64   `json:"fair_probability"`
	MarketProbability float64   `json:"market_probability"`
	Edge              float64   `json:"edge"` // |fair - market|
	Catalysts         []string  `json:"catalysts,omitempty"`
	FailureConditions []string  `json:"failure_conditions,omitempty"`
	SupportingSignals []string  `json:"supporting_signals,omitempty"` // Agent names
}

// DebateOutcome classifies how a claim fared under cross-examination.
type DebateOutcome string

const (
	OutcomeSurvived DebateOutcome = "survived"
	OutcomeWeakened DebateOutcome = "weakened"
	OutcomeRefuted  DebateOutcome = "refuted"
)

// DebateTest is one adversarial test of a thesis claim.
type DebateTest struct {
	TestType  string        `json:"test_type"`
	Claim     string        `json:"claim"`
	Challenge string        `json:"challenge"`
	Outcome   DebateOutcome `json:"outcome"`
	Score     float64       `json:"score"` // -1.0 to 1.0
}

// DebateRecord is the result of adversarially testing the bull and bear
// theses against each other.
type DebateRecord struct {
	Tests            []DebateTest `json:"tests"`
	BullScore        float64      `json:"bull_score"` // -1.0 to 1.0
	BearScore        float64      `json:"bear_score"` // -1.0 to 1.0
	KeyDisagreements []string     `json:"key_disagreements,omitempty"`
}
