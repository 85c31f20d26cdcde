// Package pipeline runs the signal fusion -> consensus -> trade decision
// sequence for one market cycle. Data flows strictly forward; every stage
// is a pure function of its inputs plus read-only configuration, and every
// stage emits a structured audit record on success and failure.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/predictfunk/internal/audit"
	"github.com/ajitpratap0/predictfunk/internal/consensus"
	"github.com/ajitpratap0/predictfunk/internal/decision"
	"github.com/ajitpratap0/predictfunk/internal/fusion"
	"github.com/ajitpratap0/predictfunk/internal/metrics"
	"github.com/ajitpratap0/predictfunk/internal/signal"
	"github.com/ajitpratap0/predictfunk/internal/weighting"
)

// Config aggregates the per-stage configuration for one cycle. Read-only
// while cycles run.
type Config struct {
	Weighting weighting.Config
	Fusion    fusion.Config
	Consensus consensus.Config
	Decision  decision.Config
	// MaxParallelCycles bounds AnalyzeAll concurrency. Default 8.
	MaxParallelCycles int
}

// CycleInput is everything one market's analysis cycle consumes.
type CycleInput struct {
	Market  signal.MarketContext `json:"market"`
	Signals []signal.AgentSignal `json:"signals"`
	Bull    *signal.Thesis       `json:"bull_thesis"`
	Bear    *signal.Thesis       `json:"bear_thesis"`
	Debate  *signal.DebateRecord `json:"debate"`
}

// CycleResult is the full output of one cycle, including the audit trail.
type CycleResult struct {
	CycleID         uuid.UUID                `json:"cycle_id"`
	MarketID        string                   `json:"market_id"`
	StartedAt       time.Time                `json:"started_at"`
	Fused           *fusion.FusedSignal      `json:"fused_signal,omitempty"`
	Consensus       *consensus.Probability   `json:"consensus,omitempty"`
	Recommendation  *decision.Recommendation `json:"recommendation,omitempty"`
	RejectedSignals []signal.RejectedSignal  `json:"rejected_signals,omitempty"`
	Failure         *consensus.Error         `json:"-"`
	FailureCode     consensus.FailureCode    `json:"failure_code,omitempty"`
	FailureReason   string                   `json:"failure_reason,omitempty"`
	Audit           []audit.Record           `json:"audit"`
}

// Failed reports whether the cycle ended in a typed failure instead of a
// recommendation.
func (r *CycleResult) Failed() bool {
	return r.Failure != nil
}

// Pipeline wires the four stages with an audit recorder.
type Pipeline struct {
	cfg       Config
	weighting *weighting.Engine
	fusion    *fusion.Engine
	consensus *consensus.Engine
	decision  *decision.Engine
	recorder  audit.Recorder
}

// New builds a pipeline. A nil recorder falls back to log-only auditing.
func New(cfg Config, recorder audit.Recorder) *Pipeline {
	if recorder == nil {
		recorder = audit.LogRecorder{}
	}
	if cfg.MaxParallelCycles <= 0 {
		cfg.MaxParallelCycles = 8
	}
	return &Pipeline{
		cfg:       cfg,
		weighting: weighting.NewEngine(cfg.Weighting),
		fusion:    fusion.NewEngine(cfg.Fusion),
		consensus: consensus.NewEngine(cfg.Consensus),
		decision:  decision.NewEngine(cfg.Decision),
		recorder:  recorder,
	}
}

// Analyze runs one full cycle. It never panics and never returns a Go error
// for the typed pipeline failures; those land on CycleResult.Failure so
// callers can distinguish "no trade" from "pipeline broken".
func (p *Pipeline) Analyze(ctx context.Context, in CycleInput) *CycleResult {
	result := &CycleResult{
		CycleID:   uuid.New(),
		MarketID:  in.Market.MarketID,
		StartedAt: time.Now().UTC(),
	}

	// Input validation: out-of-range signals never reach fusion.
	valid, rejected := signal.FilterValid(in.Signals)
	result.RejectedSignals = rejected
	if len(rejected) > 0 {
		metrics.RecordRejectedSignals(len(rejected))
	}
	p.record(ctx, result, audit.StageValidation, true, "", map[string]any{
		"accepted": len(valid),
		"rejected": rejected,
	})

	// Signal weighting. Guaranteed not to fail for non-empty input.
	stageStart := time.Now()
	report := p.weighting.ComputeWeights(valid, &in.Market)
	metrics.RecordStageDuration(string(audit.StageWeighting), time.Since(stageStart).Seconds())
	p.record(ctx, result, audit.StageWeighting, true, "", map[string]any{
		"weights":               report.Weights,
		"breakdown":             report.Breakdown,
		"equal_weight_fallback": report.EqualWeightFallback,
		"fallback_reason":       report.FallbackReason,
	})

	// Fusion. A fusion error is recorded but does not abort the cycle; the
	// consensus stage runs on its own preconditions.
	stageStart = time.Now()
	fused, err := p.fusion.Fuse(valid, report.Weights, &in.Market)
	metrics.RecordStageDuration(string(audit.StageFusion), time.Since(stageStart).Seconds())
	if err != nil {
		p.record(ctx, result, audit.StageFusion, false, err.Error(), nil)
	} else {
		result.Fused = fused
		if fused.ExtremeDivergence {
			metrics.RecordExtremeDivergence()
		}
		p.record(ctx, result, audit.StageFusion, true, "", map[string]any{
			"fair_probability":   fused.FairProbability,
			"confidence":         fused.Confidence,
			"signal_alignment":   fused.SignalAlignment,
			"data_quality":       fused.DataQuality,
			"extreme_divergence": fused.ExtremeDivergence,
			"probability_range":  fused.ProbabilityRange,
			"conflicts":          fused.ConflictingSignals,
		})
	}

	// Consensus. Typed failures end the cycle.
	stageStart = time.Now()
	cons, err := p.consensus.Compute(consensus.Input{
		Bull:    in.Bull,
		Bear:    in.Bear,
		Debate:  in.Debate,
		Signals: valid,
		Market:  &in.Market,
	})
	metrics.RecordStageDuration(string(audit.StageConsensus), time.Since(stageStart).Seconds())
	if err != nil {
		return p.fail(ctx, result, audit.StageConsensus, err)
	}
	result.Consensus = cons
	p.record(ctx, result, audit.StageConsensus, true, "", map[string]any{
		"consensus_probability": cons.ConsensusProbability,
		"confidence_band":       cons.ConfidenceBand,
		"disagreement_index":    cons.DisagreementIndex,
		"regime":                cons.Regime,
		"efficiently_priced":    cons.EfficientlyPriced,
		"bull_weight":           cons.BullWeight,
		"bear_weight":           cons.BearWeight,
	})

	// Decision.
	stageStart = time.Now()
	rec, err := p.decision.Decide(decision.Input{
		Consensus: cons,
		Market:    &in.Market,
		Bull:      in.Bull,
		Bear:      in.Bear,
	})
	metrics.RecordStageDuration(string(audit.StageDecision), time.Since(stageStart).Seconds())
	if err != nil {
		return p.fail(ctx, result, audit.StageDecision, err)
	}
	result.Recommendation = rec
	metrics.RecordRecommendation(string(rec.Action))
	if rec.Action == decision.ActionNoTrade {
		metrics.RecordCycle(metrics.OutcomeNoTrade)
	} else {
		metrics.RecordCycle(metrics.OutcomeRecommended)
	}
	p.record(ctx, result, audit.StageDecision, true, "", map[string]any{
		"action":          rec.Action,
		"expected_value":  rec.ExpectedValue,
		"win_probability": rec.WinProbability,
		"entry_zone":      rec.EntryZone,
		"target_zone":     rec.TargetZone,
		"liquidity_risk":  rec.LiquidityRisk,
		"no_trade_reason": rec.Metadata.NoTradeReason,
	})

	return result
}

// AnalyzeAll runs independent market cycles in parallel. Cycles share only
// read-only configuration, so no coordination is needed beyond bounding
// concurrency.
func (p *Pipeline) AnalyzeAll(ctx context.Context, inputs []CycleInput) []*CycleResult {
	results := make([]*CycleResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxParallelCycles)
	for i := range inputs {
		g.Go(func() error {
			results[i] = p.Analyze(ctx, inputs[i])
			return nil
		})
	}
	// Workers never return errors; typed failures live on each result.
	_ = g.Wait()
	return results
}

// fail finalizes a cycle on a typed stage failure.
func (p *Pipeline) fail(ctx context.Context, result *CycleResult, stage audit.Stage, err error) *CycleResult {
	var typed *consensus.Error
	if !errors.As(err, &typed) {
		typed = &consensus.Error{Code: consensus.FailureConsensusFailed, Reason: err.Error()}
	}
	result.Failure = typed
	result.FailureCode = typed.Code
	result.FailureReason = typed.Reason

	metrics.RecordConsensusFailure(string(typed.Code))
	metrics.RecordCycle(metrics.OutcomeFailed)
	p.record(ctx, result, stage, false, typed.Error(), map[string]any{
		"failure_code": typed.Code,
	})

	log.Warn().
		Str("market_id", result.MarketID).
		Str("stage", string(stage)).
		Str("code", string(typed.Code)).
		Str("reason", typed.Reason).
		Msg("Cycle ended in typed failure")
	return result
}

// record appends the audit record to the result and forwards it to the
// recorder. Recorder errors are already logged downstream and never abort
// the cycle.
func (p *Pipeline) record(ctx context.Context, result *CycleResult, stage audit.Stage, success bool, errMsg string, data map[string]any) {
	rec := audit.Record{
		CycleID:  result.CycleID,
		MarketID: result.MarketID,
		Stage:    stage,
		Success:  success,
		ErrorMsg: errMsg,
		Data:     data,
	}
	if err := p.recorder.Record(ctx, &rec); err != nil {
		metrics.RecordAuditWrite(false)
	} else {
		metrics.RecordAuditWrite(true)
	}
	result.Audit = append(result.Audit, rec)
}
