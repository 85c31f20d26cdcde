// Package bus assembles analysis cycles from NATS messages published by the
// upstream collaborators (agent invocation, market ingestion, argumentation)
// and publishes the resulting recommendation.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/pipeline"
	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// Config configures the cycle collector.
type Config struct {
	// SubjectPrefix namespaces all subjects (default: "predictfunk").
	SubjectPrefix string
	// CycleTTL expires incomplete cycles that never received a debate
	// record (default: 10m).
	CycleTTL time.Duration
	// CleanupInterval controls how often expired cycles are swept
	// (default: 1m).
	CleanupInterval time.Duration
}

// Runner executes an assembled cycle. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Analyze(ctx context.Context, in pipeline.CycleInput) *pipeline.CycleResult
}

// ResultSink receives completed cycle results. Satisfied by
// *store.ResultStore.
type ResultSink interface {
	Put(ctx context.Context, result *pipeline.CycleResult) error
}

// pendingCycle accumulates one market's inputs until the debate record
// arrives.
type pendingCycle struct {
	input     pipeline.CycleInput
	updatedAt time.Time
}

// Collector subscribes to the input subjects, assembles cycles per market,
// and runs the pipeline when a cycle completes. The debate record is always
// the last input published upstream, so its arrival triggers analysis.
type Collector struct {
	nc      *nats.Conn
	runner  Runner
	sink    ResultSink // Optional
	cfg     Config
	pending map[string]*pendingCycle
	subs    []*nats.Subscription
	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewCollector creates a collector on an existing NATS connection.
func NewCollector(nc *nats.Conn, runner Runner, sink ResultSink, cfg Config) *Collector {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "predictfunk"
	}
	if cfg.CycleTTL <= 0 {
		cfg.CycleTTL = 10 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &Collector{
		nc:      nc,
		runner:  runner,
		sink:    sink,
		cfg:     cfg,
		pending: make(map[string]*pendingCycle),
		done:    make(chan struct{}),
	}
}

// Start subscribes to all input subjects and begins sweeping stale cycles.
func (c *Collector) Start(ctx context.Context) error {
	subjects := map[string]nats.MsgHandler{
		c.subject("signals.*"):  func(m *nats.Msg) { c.handleSignal(ctx, m) },
		c.subject("context.*"):  func(m *nats.Msg) { c.handleContext(ctx, m) },
		c.subject("theses.*.*"): func(m *nats.Msg) { c.handleThesis(ctx, m) },
		c.subject("debate.*"):   func(m *nats.Msg) { c.handleDebate(ctx, m) },
	}

	for subj, handler := range subjects {
		sub, err := c.nc.Subscribe(subj, handler)
		if err != nil {
			c.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subj, err)
		}
		c.subs = append(c.subs, sub)
	}

	c.wg.Add(1)
	go c.sweepLoop()

	log.Info().
		Str("prefix", c.cfg.SubjectPrefix).
		Msg("Cycle collector started")
	return nil
}

// Stop drains subscriptions and stops the sweeper.
func (c *Collector) Stop() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.wg.Wait()
}

// handleSignal appends one agent signal to the market's pending cycle.
// Malformed messages are dropped, never fatal.
func (c *Collector) handleSignal(_ context.Context, m *nats.Msg) {
	marketID := c.marketFromSubject(m.Subject, 1)
	var s signal.AgentSignal
	if err := json.Unmarshal(m.Data, &s); err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed agent signal")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pc := c.pendingLocked(marketID)
	pc.input.Signals = append(pc.input.Signals, s)
	pc.updatedAt = time.Now()

	log.Debug().
		Str("market_id", marketID).
		Str("agent", s.AgentName).
		Int("signals", len(pc.input.Signals)).
		Msg("Agent signal collected")
}

func (c *Collector) handleContext(_ context.Context, m *nats.Msg) {
	marketID := c.marketFromSubject(m.Subject, 1)
	var mctx signal.MarketContext
	if err := json.Unmarshal(m.Data, &mctx); err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed market context")
		return
	}
	if mctx.MarketID == "" {
		mctx.MarketID = marketID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pc := c.pendingLocked(marketID)
	pc.input.Market = mctx
	pc.updatedAt = time.Now()
}

func (c *Collector) handleThesis(_ context.Context, m *nats.Msg) {
	parts := strings.Split(m.Subject, ".")
	if len(parts) < 4 {
		log.Warn().Str("subject", m.Subject).Msg("Dropping thesis with malformed subject")
		return
	}
	marketID, side := parts[2], parts[3]

	var t signal.Thesis
	if err := json.Unmarshal(m.Data, &t); err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed thesis")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pc := c.pendingLocked(marketID)
	switch side {
	case "bull":
		pc.input.Bull = &t
	case "bear":
		pc.input.Bear = &t
	default:
		log.Warn().Str("side", side).Msg("Dropping thesis with unknown side")
		return
	}
	pc.updatedAt = time.Now()
}

// handleDebate completes the cycle: the debate record is the final upstream
// output, so its arrival runs the pipeline and publishes the result.
func (c *Collector) handleDebate(ctx context.Context, m *nats.Msg) {
	marketID := c.marketFromSubject(m.Subject, 1)
	var d signal.DebateRecord
	if err := json.Unmarshal(m.Data, &d); err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed debate record")
		return
	}

	c.mu.Lock()
	pc := c.pendingLocked(marketID)
	pc.input.Debate = &d
	input := pc.input
	if input.Market.MarketID == "" {
		input.Market.MarketID = marketID
	}
	delete(c.pending, marketID)
	c.mu.Unlock()

	result := c.runner.Analyze(ctx, input)

	if c.sink != nil {
		if err := c.sink.Put(ctx, result); err != nil {
			log.Error().Err(err).Str("market_id", marketID).Msg("Failed to store cycle result")
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Str("market_id", marketID).Msg("Failed to marshal cycle result")
		return
	}
	subject := c.subject("recommendations." + marketID)
	if err := c.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish recommendation")
		return
	}

	log.Info().
		Str("market_id", marketID).
		Str("cycle_id", result.CycleID.String()).
		Bool("failed", result.Failed()).
		Msg("Cycle analyzed and published")
}

// pendingLocked returns the market's pending cycle, creating it if needed.
// Caller holds c.mu.
func (c *Collector) pendingLocked(marketID string) *pendingCycle {
	pc, ok := c.pending[marketID]
	if !ok {
		pc = &pendingCycle{updatedAt: time.Now()}
		pc.input.Market.MarketID = marketID
		c.pending[marketID] = pc
	}
	return pc
}

// sweepLoop drops cycles that never completed within the TTL.
func (c *Collector) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Collector) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.cfg.CycleTTL)
	for marketID, pc := range c.pending {
		if pc.updatedAt.Before(cutoff) {
			delete(c.pending, marketID)
			log.Warn().
				Str("market_id", marketID).
				Int("signals", len(pc.input.Signals)).
				Msg("Expired incomplete cycle")
		}
	}
}

// PendingMarkets reports how many incomplete cycles are buffered.
func (c *Collector) PendingMarkets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Collector) subject(suffix string) string {
	return c.cfg.SubjectPrefix + "." + suffix
}

// marketFromSubject extracts the market id token after the prefix. offset
// is the token position past the prefix (signals.<market> -> 1).
func (c *Collector) marketFromSubject(subject string, offset int) string {
	parts := strings.Split(subject, ".")
	if len(parts) <= offset+1 {
		return ""
	}
	return parts[offset+1]
}
