package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/predictfunk/internal/consensus"
	"github.com/ajitpratap0/predictfunk/internal/signal"
)

func makeInput(consensusProb, marketProb float64) Input {
	return Input{
		Consensus: &consensus.Probability{
			ConsensusProbability: consensusProb,
			ConfidenceBand:       [2]float64{consensusProb - 0.05, consensusProb + 0.05},
			DisagreementIndex:    0.08,
			Regime:               consensus.RegimeHighConfidence,
		},
		Market: &signal.MarketContext{
			MarketID:          "mkt-1",
			MarketProbability: marketProb,
			LiquidityScore:    8,
			AsOf:              time.Now(),
		},
		Bull: &signal.Thesis{
			Direction:         signal.DirectionYes,
			FairProbability:   consensusProb + 0.02,
			MarketProbability: marketProb,
			Catalysts:         []string{"upcoming ruling"},
			FailureConditions: []string{"ruling delayed past resolution"},
		},
		Bear: &signal.Thesis{
			Direction:         signal.DirectionNo,
			FairProbability:   1 - consensusProb + 0.02,
			MarketProbability: marketProb,
			Catalysts:         []string{"polling reversal"},
		},
	}
}

func TestDecideLongYes(t *testing.T) {
	engine := NewEngine(Config{})
	rec, err := engine.Decide(makeInput(0.58, 0.50))
	require.NoError(t, err)

	assert.Equal(t, ActionLongYes, rec.Action)
	assert.InDelta(t, 0.58, rec.WinProbability, 1e-9)
	// (|0.08| - 0.02) * 100 dollars per $100.
	assert.InDelta(t, 6.0, rec.ExpectedValue, 1e-9)
	assert.Equal(t, Zone{Min: 0.48, Max: 0.52}, rec.EntryZone)
	assert.InDelta(t, 0.55, rec.TargetZone.Min, 1e-9)
	assert.InDelta(t, 0.61, rec.TargetZone.Max, 1e-9)
	assert.Equal(t, LiquidityLow, rec.LiquidityRisk)
	assert.Empty(t, rec.Metadata.NoTradeReason)
	assert.Equal(t, []string{"upcoming ruling"}, rec.Explanation.Catalysts)
	assert.Equal(t, []string{"ruling delayed past resolution"}, rec.Explanation.FailureScenarios)
}

func TestDecideLongNo(t *testing.T) {
	engine := NewEngine(Config{})
	rec, err := engine.Decide(makeInput(0.40, 0.50))
	require.NoError(t, err)

	assert.Equal(t, ActionLongNo, rec.Action)
	// Long NO wins when the market resolves NO.
	assert.InDelta(t, 0.60, rec.WinProbability, 1e-9)
	assert.InDelta(t, 8.0, rec.ExpectedValue, 1e-9)
	// The bear thesis drives the explanation for a NO position.
	assert.Equal(t, []string{"polling reversal"}, rec.Explanation.Catalysts)
}

func TestDecideEdgeAtThresholdTrades(t *testing.T) {
	// An edge meeting the minimum exactly is enough to trade.
	engine := NewEngine(Config{})
	rec, err := engine.Decide(makeInput(0.55, 0.50))
	require.NoError(t, err)

	assert.Equal(t, ActionLongYes, rec.Action)
	assert.InDelta(t, 3.0, rec.ExpectedValue, 1e-9)
}

func TestDecideNoEdge(t *testing.T) {
	engine := NewEngine(Config{})
	rec, err := engine.Decide(makeInput(0.55, 0.53))
	require.NoError(t, err)

	assert.Equal(t, ActionNoTrade, rec.Action)
	assert.Equal(t, string(consensus.FailureNoEdge), rec.Metadata.NoTradeReason)
	// EV is still reported for audit even with no position.
	assert.InDelta(t, 0.0, rec.ExpectedValue, 1e-9)
	assert.NotEmpty(t, rec.Explanation.Summary)
	assert.NotEmpty(t, rec.Explanation.CoreThesis)
}

func TestDecideNegativeExpectedValue(t *testing.T) {
	// Edge clears the minimum but transaction costs consume it entirely.
	engine := NewEngine(Config{MinEdgeThreshold: 0.05, TransactionCost: 0.06})
	rec, err := engine.Decide(makeInput(0.55, 0.50))
	require.NoError(t, err)

	assert.Equal(t, ActionNoTrade, rec.Action)
	assert.Equal(t, "negative_expected_value", rec.Metadata.NoTradeReason)
	assert.LessOrEqual(t, rec.ExpectedValue, 0.0)
}

func TestDecideTradeImpliesPositiveEV(t *testing.T) {
	engine := NewEngine(Config{})
	for _, cp := range []float64{0.10, 0.30, 0.45, 0.56, 0.70, 0.95} {
		rec, err := engine.Decide(makeInput(cp, 0.50))
		require.NoError(t, err)
		if rec.Action != ActionNoTrade {
			assert.Greater(t, rec.ExpectedValue, 0.0, "consensus %.2f", cp)
		}
	}
}

func TestDecideMissingInputs(t *testing.T) {
	engine := NewEngine(Config{})

	_, err := engine.Decide(Input{})
	var cerr *consensus.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, consensus.FailureInsufficientData, cerr.Code)
}

func TestDecideZonesClamped(t *testing.T) {
	engine := NewEngine(Config{})
	rec, err := engine.Decide(makeInput(0.99, 0.90))
	require.NoError(t, err)

	assert.LessOrEqual(t, rec.TargetZone.Max, 1.0)
	assert.LessOrEqual(t, rec.TargetZone.Min, rec.TargetZone.Max)
	assert.GreaterOrEqual(t, rec.EntryZone.Min, 0.0)
}

func TestDecideUncertaintyNote(t *testing.T) {
	engine := NewEngine(Config{})

	in := makeInput(0.60, 0.50)
	in.Consensus.DisagreementIndex = 0.22
	in.Consensus.Regime = consensus.RegimeHighUncertainty
	rec, err := engine.Decide(in)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Explanation.UncertaintyNote)

	calm := makeInput(0.60, 0.50)
	rec, err = engine.Decide(calm)
	require.NoError(t, err)
	assert.Empty(t, rec.Explanation.UncertaintyNote)
}

func TestDecideMetadataEchoesConsensus(t *testing.T) {
	engine := NewEngine(Config{})
	in := makeInput(0.58, 0.50)
	in.Consensus.EfficientlyPriced = false

	rec, err := engine.Decide(in)
	require.NoError(t, err)

	assert.InDelta(t, 0.58, rec.Metadata.ConsensusProbability, 1e-9)
	assert.InDelta(t, 0.50, rec.Metadata.MarketProbability, 1e-9)
	assert.InDelta(t, 0.08, rec.Metadata.Edge, 1e-9)
	assert.Equal(t, consensus.RegimeHighConfidence, rec.Metadata.Regime)
	assert.Equal(t, in.Consensus.DisagreementIndex, rec.Metadata.DisagreementIndex)
}

func TestClassifyLiquidity(t *testing.T) {
	assert.Equal(t, LiquidityLow, classifyLiquidity(9))
	assert.Equal(t, LiquidityLow, classifyLiquidity(7))
	assert.Equal(t, LiquidityMedium, classifyLiquidity(5))
	assert.Equal(t, LiquidityMedium, classifyLiquidity(4))
	assert.Equal(t, LiquidityHigh, classifyLiquidity(3))
	assert.Equal(t, LiquidityHigh, classifyLiquidity(0))
}
