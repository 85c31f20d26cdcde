package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSignal() AgentSignal {
	return AgentSignal{
		AgentName:       "news-analyst",
		Confidence:      0.8,
		Direction:       DirectionYes,
		FairProbability: 0.6,
		KeyDrivers:      []string{"major policy announcement"},
	}
}

func TestAgentSignalValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AgentSignal)
		wantErr string
	}{
		{"valid", func(s *AgentSignal) {}, ""},
		{"missing name", func(s *AgentSignal) { s.AgentName = "" }, "agent name"},
		{"confidence too high", func(s *AgentSignal) { s.Confidence = 1.1 }, "confidence"},
		{"confidence negative", func(s *AgentSignal) { s.Confidence = -0.1 }, "confidence"},
		{"probability too high", func(s *AgentSignal) { s.FairProbability = 2 }, "fair probability"},
		{"unknown direction", func(s *AgentSignal) { s.Direction = "MAYBE" }, "direction"},
		{"no key drivers", func(s *AgentSignal) { s.KeyDrivers = nil }, "key driver"},
		{"too many key drivers", func(s *AgentSignal) {
			s.KeyDrivers = []string{"a", "b", "c", "d", "e", "f"}
		}, "key drivers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSignal()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFilterValid(t *testing.T) {
	good := validSignal()
	bad := validSignal()
	bad.Confidence = 3

	valid, rejected := FilterValid([]AgentSignal{good, bad})
	assert.Len(t, valid, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, bad.AgentName, rejected[0].AgentName)
	assert.Contains(t, rejected[0].Reason, "confidence")
}

func TestThesisValidate(t *testing.T) {
	thesis := Thesis{Direction: DirectionYes, FairProbability: 0.6, MarketProbability: 0.5}
	assert.NoError(t, thesis.Validate())

	thesis.Direction = DirectionNeutral
	assert.Error(t, thesis.Validate())

	thesis.Direction = DirectionNo
	thesis.FairProbability = -0.2
	assert.Error(t, thesis.Validate())
}

func TestDebateRecordValidate(t *testing.T) {
	record := DebateRecord{
		BullScore: 0.4,
		BearScore: -0.2,
		Tests: []DebateTest{
			{TestType: "evidence", Outcome: OutcomeSurvived, Score: 0.5},
		},
	}
	assert.NoError(t, record.Validate())

	record.Tests[0].Outcome = "destroyed"
	assert.Error(t, record.Validate())

	record.Tests[0].Outcome = OutcomeRefuted
	record.BullScore = 1.5
	assert.Error(t, record.Validate())
}

func TestClassifyAgent(t *testing.T) {
	assert.Equal(t, CategoryNews, ClassifyAgent("news-analyst"))
	assert.Equal(t, CategoryNews, ClassifyAgent("  News-Analyst "))
	assert.Equal(t, CategoryPolling, ClassifyAgent("poll-aggregator"))
	assert.Equal(t, CategoryMicrostructure, ClassifyAgent("orderbook-analyst"))
	// Unknown and renamed agents fall through to baseline, never a wrong
	// category.
	assert.Equal(t, CategoryBaseline, ClassifyAgent("renamed-news-agent"))
	assert.Equal(t, CategoryBaseline, ClassifyAgent(""))
}

func TestCategoryFreshnessSource(t *testing.T) {
	source, ok := CategoryNews.FreshnessSource()
	require.True(t, ok)
	assert.Equal(t, SourceNews, source)

	_, ok = CategoryMicrostructure.FreshnessSource()
	assert.False(t, ok)

	assert.True(t, CategoryMicrostructure.LiquiditySensitive())
	assert.False(t, CategoryNews.LiquiditySensitive())
}

func TestMarketContextSourceAge(t *testing.T) {
	now := time.Now()
	mctx := MarketContext{
		AsOf: now,
		DataFreshness: map[DataSource]time.Time{
			SourceNews: now.Add(-90 * time.Minute),
		},
	}

	age, ok := mctx.SourceAge(SourceNews)
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, age)

	_, ok = mctx.SourceAge(SourcePolling)
	assert.False(t, ok)

	// Timestamps from the future clamp to zero age.
	mctx.DataFreshness[SourceNews] = now.Add(time.Hour)
	age, ok = mctx.SourceAge(SourceNews)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), age)
}

func TestDecodeMetadata(t *testing.T) {
	s := validSignal()
	s.Metadata = map[string]string{
		"headline_count": "12",
		"primary_source": "wire",
	}

	md, err := DecodeMetadata(&s)
	require.NoError(t, err)
	assert.Equal(t, CategoryNews, md.Category)
	assert.Equal(t, 12, md.HeadlineCount)
	assert.Equal(t, "wire", md.PrimarySource)
}

func TestDecodeMetadataMalformed(t *testing.T) {
	s := validSignal()
	s.AgentName = "orderbook-analyst"
	s.Metadata = map[string]string{"order_imbalance": "not-a-number"}

	_, err := DecodeMetadata(&s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_imbalance")
}
