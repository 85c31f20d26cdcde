// Package audit emits one structured record per pipeline stage, on success
// and failure alike. The record payload is sufficient to reconstruct every
// intermediate number of a cycle: weights, alignment, disagreement index,
// divergence flag.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Stage names the pipeline stage an audit record belongs to.
type Stage string

const (
	StageValidation Stage = "validation"
	StageWeighting  Stage = "weighting"
	StageFusion     Stage = "fusion"
	StageConsensus  Stage = "consensus"
	StageDecision   Stage = "decision"
)

// Record is one stage's audit entry for one analysis cycle.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	CycleID   uuid.UUID      `json:"cycle_id"`
	MarketID  string         `json:"market_id"`
	Stage     Stage          `json:"stage"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	ErrorMsg  string         `json:"error_message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Recorder receives audit records. Implementations must never block a cycle
// on sink failure.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}

// LogRecorder emits records to the structured logger only.
type LogRecorder struct{}

// Record logs the audit record at a level matching its success flag.
func (LogRecorder) Record(_ context.Context, rec *Record) error {
	fillDefaults(rec)
	ev := log.Info()
	if !rec.Success {
		ev = log.Warn()
	}
	ev.
		Str("cycle_id", rec.CycleID.String()).
		Str("market_id", rec.MarketID).
		Str("stage", string(rec.Stage)).
		Bool("success", rec.Success).
		Str("error", rec.ErrorMsg).
		Msg("Pipeline audit record")
	return nil
}

// ExecerPool is the subset of pgxpool.Pool the Postgres recorder needs.
// pgxmock satisfies it in tests.
type ExecerPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRecorder persists audit records to the audit_records table. The
// write path is guarded by a circuit breaker so a failing audit store
// degrades to log-only instead of stalling analysis cycles.
type PostgresRecorder struct {
	pool    ExecerPool
	breaker *gobreaker.CircuitBreaker
}

// NewPostgresRecorder creates a Postgres-backed recorder.
func NewPostgresRecorder(pool ExecerPool) *PostgresRecorder {
	settings := gobreaker.Settings{
		Name:        "audit-store",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Audit store circuit breaker state changed")
		},
	}
	return &PostgresRecorder{
		pool:    pool,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Record logs the record and then persists it through the breaker. The
// record is always logged even when persistence fails.
func (r *PostgresRecorder) Record(ctx context.Context, rec *Record) error {
	fillDefaults(rec)
	_ = LogRecorder{}.Record(ctx, rec)

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.persist(ctx, rec)
	})
	if err != nil {
		log.Error().Err(err).
			Str("cycle_id", rec.CycleID.String()).
			Str("stage", string(rec.Stage)).
			Msg("Failed to persist audit record")
		return err
	}
	return nil
}

func (r *PostgresRecorder) persist(ctx context.Context, rec *Record) error {
	var dataJSON []byte
	if rec.Data != nil {
		var err error
		dataJSON, err = json.Marshal(rec.Data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit record data")
			dataJSON = []byte("{}")
		}
	}

	query := `
		INSERT INTO audit_records (
			id, cycle_id, market_id, stage, timestamp, success, error_message, data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.CycleID,
		rec.MarketID,
		rec.Stage,
		rec.Timestamp,
		rec.Success,
		rec.ErrorMsg,
		dataJSON,
	)
	return err
}

func fillDefaults(rec *Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
}
