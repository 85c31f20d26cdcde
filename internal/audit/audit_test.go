package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return &Record{
		CycleID:  uuid.New(),
		MarketID: "mkt-1",
		Stage:    StageFusion,
		Success:  true,
		Data: map[string]any{
			"fair_probability": 0.61,
			"confidence":       0.72,
		},
	}
}

func TestLogRecorderFillsDefaults(t *testing.T) {
	rec := sampleRecord()
	require.NoError(t, LogRecorder{}.Record(context.Background(), rec))

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestPostgresRecorderPersists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "mkt-1", StageFusion,
			pgxmock.AnyArg(), true, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	recorder := NewPostgresRecorder(mock)
	require.NoError(t, recorder.Record(context.Background(), sampleRecord()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorderNilData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := sampleRecord()
	rec.Data = nil
	rec.Success = false
	rec.ErrorMsg = "CONSENSUS_FAILED: agent disagreement 0.340 exceeds 0.30"

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "mkt-1", StageFusion,
			pgxmock.AnyArg(), false, rec.ErrorMsg, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	recorder := NewPostgresRecorder(mock)
	require.NoError(t, recorder.Record(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorderWriteFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	recorder := NewPostgresRecorder(mock)
	err = recorder.Record(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresRecorderBreakerOpens(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Five straight failures trip the breaker (>=5 requests, >=60% failed).
	for i := 0; i < 5; i++ {
		mock.ExpectExec("INSERT INTO audit_records").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))
	}

	recorder := NewPostgresRecorder(mock)
	for i := 0; i < 5; i++ {
		require.Error(t, recorder.Record(context.Background(), sampleRecord()))
	}

	// The open breaker rejects without touching the pool; no further Exec
	// expectations are set, so a passthrough would fail the mock.
	err = recorder.Record(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
