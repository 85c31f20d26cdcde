package signal

import (
	"fmt"
)

const (
	minKeyDrivers = 1
	maxKeyDrivers = 5
)

// Validate checks an AgentSignal against the input schema. Signals that fail
// validation must be rejected before they reach the weighting or fusion
// stages.
func (s *AgentSignal) Validate() error {
	if s.AgentName == "" {
		return fmt.Errorf("agent signal: agent name is required")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("agent signal %s: confidence %.4f outside [0,1]", s.AgentName, s.Confidence)
	}
	if s.FairProbability < 0 || s.FairProbability > 1 {
		return fmt.Errorf("agent signal %s: fair probability %.4f outside [0,1]", s.AgentName, s.FairProbability)
	}
	switch s.Direction {
	case DirectionYes, DirectionNo, DirectionNeutral:
	default:
		return fmt.Errorf("agent signal %s: unknown direction %q", s.AgentName, s.Direction)
	}
	if len(s.KeyDrivers) < minKeyDrivers {
		return fmt.Errorf("agent signal %s: at least %d key driver required", s.AgentName, minKeyDrivers)
	}
	if len(s.KeyDrivers) > maxKeyDrivers {
		return fmt.Errorf("agent signal %s: at most %d key drivers allowed, got %d", s.AgentName, maxKeyDrivers, len(s.KeyDrivers))
	}
	return nil
}

// Validate checks a Thesis for structural soundness.
func (t *Thesis) Validate() error {
	if t.Direction != DirectionYes && t.Direction != DirectionNo {
		return fmt.Errorf("thesis: direction must be YES or NO, got %q", t.Direction)
	}
	if t.FairProbability < 0 || t.FairProbability > 1 {
		return fmt.Errorf("thesis %s: fair probability %.4f outside [0,1]", t.Direction, t.FairProbability)
	}
	if t.MarketProbability < 0 || t.MarketProbability > 1 {
		return fmt.Errorf("thesis %s: market probability %.4f outside [0,1]", t.Direction, t.MarketProbability)
	}
	return nil
}

// Validate checks a DebateRecord: aggregate and per-test scores must stay
// within [-1,1] and every test outcome must be a known value.
func (d *DebateRecord) Validate() error {
	if d.BullScore < -1 || d.BullScore > 1 {
		return fmt.Errorf("debate record: bull score %.4f outside [-1,1]", d.BullScore)
	}
	if d.BearScore < -1 || d.BearScore > 1 {
		return fmt.Errorf("debate record: bear score %.4f outside [-1,1]", d.BearScore)
	}
	for i, test := range d.Tests {
		if test.Score < -1 || test.Score > 1 {
			return fmt.Errorf("debate record: test %d score %.4f outside [-1,1]", i, test.Score)
		}
		switch test.Outcome {
		case OutcomeSurvived, OutcomeWeakened, OutcomeRefuted:
		default:
			return fmt.Errorf("debate record: test %d has unknown outcome %q", i, test.Outcome)
		}
	}
	return nil
}

// FilterValid partitions signals into accepted and rejected sets. Rejected
// signals carry the validation error so the caller can audit the drop.
func FilterValid(signals []AgentSignal) (valid []AgentSignal, rejected []RejectedSignal) {
	for _, s := range signals {
		if err := s.Validate(); err != nil {
			rejected = append(rejected, RejectedSignal{AgentName: s.AgentName, Reason: err.Error()})
			continue
		}
		valid = append(valid, s)
	}
	return valid, rejected
}

// RejectedSignal records a signal dropped during input validation.
type RejectedSignal struct {
	AgentName string `json:"agent_name"`
	Reason    string `json:"reason"`
}
