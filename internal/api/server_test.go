package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/predictfunk/internal/consensus"
	"github.com/ajitpratap0/predictfunk/internal/decision"
	"github.com/ajitpratap0/predictfunk/internal/pipeline"
	"github.com/ajitpratap0/predictfunk/internal/signal"
)

// stubAnalyzer returns a canned result per cycle.
type stubAnalyzer struct {
	result func(in pipeline.CycleInput) *pipeline.CycleResult
}

func (s *stubAnalyzer) Analyze(_ context.Context, in pipeline.CycleInput) *pipeline.CycleResult {
	return s.result(in)
}

// stubReader serves canned stored results.
type stubReader struct {
	latest  map[string]*pipeline.CycleResult
	history map[string][]*pipeline.CycleResult
}

func (s *stubReader) Latest(_ context.Context, marketID string) (*pipeline.CycleResult, error) {
	return s.latest[marketID], nil
}

func (s *stubReader) History(_ context.Context, marketID string, limit int) ([]*pipeline.CycleResult, error) {
	h := s.history[marketID]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func successResult(in pipeline.CycleInput) *pipeline.CycleResult {
	return &pipeline.CycleResult{
		CycleID:   uuid.New(),
		MarketID:  in.Market.MarketID,
		StartedAt: time.Now().UTC(),
		Recommendation: &decision.Recommendation{
			Action:        decision.ActionLongYes,
			ExpectedValue: 6.0,
		},
	}
}

func failedResult(in pipeline.CycleInput) *pipeline.CycleResult {
	failure := &consensus.Error{Code: consensus.FailureInsufficientData, Reason: "debate record missing"}
	return &pipeline.CycleResult{
		CycleID:       uuid.New(),
		MarketID:      in.Market.MarketID,
		StartedAt:     time.Now().UTC(),
		Failure:       failure,
		FailureCode:   failure.Code,
		FailureReason: failure.Reason,
	}
}

func newTestServer(result func(pipeline.CycleInput) *pipeline.CycleResult, reader ResultReader) *Server {
	return NewServer(Config{Host: "127.0.0.1", Port: 0}, &stubAnalyzer{result: result}, reader)
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func analyzeBody(marketID string) pipeline.CycleInput {
	return pipeline.CycleInput{
		Market: signal.MarketContext{
			MarketID:          marketID,
			MarketProbability: 0.5,
			LiquidityScore:    8,
			AsOf:              time.Now(),
		},
		Signals: []signal.AgentSignal{{
			AgentName:       "news-analyst",
			Confidence:      0.8,
			Direction:       signal.DirectionYes,
			FairProbability: 0.6,
			KeyDrivers:      []string{"driver"},
		}},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(successResult, nil)
	w := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	server := newTestServer(successResult, nil)
	w := doRequest(t, server, http.MethodPost, "/api/v1/analyze", analyzeBody("mkt-1"))

	require.Equal(t, http.StatusOK, w.Code)
	var result pipeline.CycleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "mkt-1", result.MarketID)
	require.NotNil(t, result.Recommendation)
	assert.Equal(t, decision.ActionLongYes, result.Recommendation.Action)
}

func TestAnalyzeEndpointInvalidBody(t *testing.T) {
	server := newTestServer(successResult, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeEndpointMissingMarketID(t *testing.T) {
	server := newTestServer(successResult, nil)
	w := doRequest(t, server, http.MethodPost, "/api/v1/analyze", analyzeBody(""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeEndpointTypedFailure(t *testing.T) {
	server := newTestServer(failedResult, nil)
	w := doRequest(t, server, http.MethodPost, "/api/v1/analyze", analyzeBody("mkt-1"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var result pipeline.CycleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, consensus.FailureInsufficientData, result.FailureCode)
	assert.Contains(t, result.FailureReason, "debate record missing")
}

func TestLatestEndpoint(t *testing.T) {
	stored := successResult(analyzeBody("mkt-1"))
	reader := &stubReader{latest: map[string]*pipeline.CycleResult{"mkt-1": stored}}
	server := newTestServer(successResult, reader)

	w := doRequest(t, server, http.MethodGet, "/api/v1/results/mkt-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result pipeline.CycleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, stored.CycleID, result.CycleID)
}

func TestLatestEndpointNotFound(t *testing.T) {
	server := newTestServer(successResult, &stubReader{})
	w := doRequest(t, server, http.MethodGet, "/api/v1/results/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLatestEndpointNoStore(t *testing.T) {
	server := newTestServer(successResult, nil)
	w := doRequest(t, server, http.MethodGet, "/api/v1/results/mkt-1", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	var stored []*pipeline.CycleResult
	for i := 0; i < 5; i++ {
		stored = append(stored, successResult(analyzeBody("mkt-1")))
	}
	reader := &stubReader{history: map[string][]*pipeline.CycleResult{"mkt-1": stored}}
	server := newTestServer(successResult, reader)

	w := doRequest(t, server, http.MethodGet, "/api/v1/results/mkt-1/history?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Market  string                  `json:"market"`
		Results []*pipeline.CycleResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "mkt-1", body.Market)
	assert.Len(t, body.Results, 3)
}

func TestHistoryEndpointBadLimit(t *testing.T) {
	server := newTestServer(successResult, &stubReader{})
	for _, limit := range []string{"0", "-2", "abc"} {
		w := doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/v1/results/mkt-1/history?limit=%s", limit), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit %q", limit)
	}
}
