package config

import (
	"fmt"

	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// Validate checks every threshold and coefficient before a pipeline is
// constructed. Out-of-range values are configuration defects, not runtime
// conditions to recover from.
func (c *Config) Validate() error {
	if err := c.Pipeline.validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api config: port %d out of range", c.API.Port)
	}
	if c.Monitoring.PrometheusPort < 0 || c.Monitoring.PrometheusPort > 65535 {
		return fmt.Errorf("monitoring config: prometheus port %d out of range", c.Monitoring.PrometheusPort)
	}
	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("database config: host required when audit persistence is enabled")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	inUnit := func(name string, v float64) error {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be in (0,1), got %.4f", name, v)
		}
		return nil
	}

	if err := inUnit("conflict_threshold", p.ConflictThreshold); err != nil {
		return err
	}
	if err := inUnit("alignment_bonus", p.AlignmentBonus); err != nil {
		return err
	}
	if err := inUnit("divergence_threshold", p.DivergenceThreshold); err != nil {
		return err
	}
	if err := inUnit("max_disagreement", p.MaxDisagreement); err != nil {
		return err
	}
	if err := inUnit("efficient_price_band", p.EfficientPriceBand); err != nil {
		return err
	}
	if err := inUnit("min_edge_threshold", p.MinEdgeThreshold); err != nil {
		return err
	}
	if err := inUnit("transaction_cost", p.TransactionCost); err != nil {
		return err
	}
	if err := inUnit("entry_zone_width", p.EntryZoneWidth); err != nil {
		return err
	}
	if err := inUnit("target_zone_width", p.TargetZoneWidth); err != nil {
		return err
	}
	if err := inUnit("uncertainty_note_threshold", p.UncertaintyNoteThreshold); err != nil {
		return err
	}

	if p.MinAgentsRequired < 1 {
		return fmt.Errorf("min_agents_required must be >= 1, got %d", p.MinAgentsRequired)
	}
	if p.MaxParallelCycles < 1 {
		return fmt.Errorf("max_parallel_cycles must be >= 1, got %d", p.MaxParallelCycles)
	}

	known := make(map[string]bool)
	for _, cat := range signal.Categories() {
		known[string(cat)] = true
	}
	for category, w := range p.BaseWeights {
		if !known[category] {
			return fmt.Errorf("base_weights: unknown category %q", category)
		}
		if w < 0 {
			return fmt.Errorf("base_weights: category %q has negative weight %.4f", category, w)
		}
	}
	return nil
}
