package signal

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the closed set of agent categories. Classification is an
// explicit lookup with a default case so a renamed agent degrades to the
// baseline weight instead of being silently misclassified.
type Category string

const (
	CategoryNews           Category = "news"
	CategoryPolling        Category = "polling"
	CategorySentiment      Category = "sentiment"
	CategoryMicrostructure Category = "microstructure"
	CategoryFundamentals   Category = "fundamentals"
	CategoryBaseline       Category = "baseline"
)

// Categories lists every known category, baseline last.
func Categories() []Category {
	return []Category{
		CategoryNews,
		CategoryPolling,
		CategorySentiment,
		CategoryMicrostructure,
		CategoryFundamentals,
		CategoryBaseline,
	}
}

var agentCategories = map[string]Category{
	"news-analyst":      CategoryNews,
	"headline-scanner":  CategoryNews,
	"polling-analyst":   CategoryPolling,
	"poll-aggregator":   CategoryPolling,
	"sentiment-analyst": CategorySentiment,
	"social-monitor":    CategorySentiment,
	"orderbook-analyst": CategoryMicrostructure,
	"flow-analyst":      CategoryMicrostructure,
	"base-rate-analyst": CategoryFundamentals,
	"fundamentals":      CategoryFundamentals,
}

// ClassifyAgent maps an agent name to its category. Unknown names fall
// through to baseline.
func ClassifyAgent(agentName string) Category {
	if cat, ok := agentCategories[strings.ToLower(strings.TrimSpace(agentName))]; ok {
		return cat
	}
	return CategoryBaseline
}

// FreshnessSource returns the external data source whose staleness is
// relevant to a category, if any.
func (c Category) FreshnessSource() (DataSource, bool) {
	switch c {
	case CategoryNews:
		return SourceNews, true
	case CategoryPolling:
		return SourcePolling, true
	case CategorySentiment:
		return SourceSocial, true
	default:
		return "", false
	}
}

// LiquiditySensitive reports whether a category's analysis depends on
// trading activity and is therefore penalized in illiquid markets.
func (c Category) LiquiditySensitive() bool {
	return c == CategoryMicrostructure
}

// CategoryMetadata is the decoded, category-specific shape of a signal's
// open metadata bag. Downstream consumers (explanation generation) rely on
// these fields rather than raw map access.
type CategoryMetadata struct {
	Category Category

	// News
	HeadlineCount int
	PrimarySource string

	// Polling
	PollCount     int
	SampleSize    int
	PollRecencyOK bool

	// Sentiment
	MentionVolume int
	SentimentTilt float64

	// Microstructure
	OrderImbalance float64
	DepthScore     float64
}

// DecodeMetadata interprets a signal's metadata according to its category.
// Missing keys decode to zero values; malformed numeric values are an error
// so a producer bug surfaces instead of silently reading zero.
func DecodeMetadata(s *AgentSignal) (CategoryMetadata, error) {
	cat := ClassifyAgent(s.AgentName)
	md := CategoryMetadata{Category: cat}

	getInt := func(key string) (int, error) {
		raw, ok := s.Metadata[key]
		if !ok || raw == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("metadata %q: %w", key, err)
		}
		return v, nil
	}
	getFloat := func(key string) (float64, error) {
		raw, ok := s.Metadata[key]
		if !ok || raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("metadata %q: %w", key, err)
		}
		return v, nil
	}

	var err error
	switch cat {
	case CategoryNews:
		if md.HeadlineCount, err = getInt("headline_count"); err != nil {
			return md, err
		}
		md.PrimarySource = s.Metadata["primary_source"]
	case CategoryPolling:
		if md.PollCount, err = getInt("poll_count"); err != nil {
			return md, err
		}
		if md.SampleSize, err = getInt("sample_size"); err != nil {
			return md, err
		}
		md.PollRecencyOK = s.Metadata["poll_recency"] == "fresh"
	case CategorySentiment:
		if md.MentionVolume, err = getInt("mention_volume"); err != nil {
			return md, err
		}
		if md.SentimentTilt, err = getFloat("sentiment_tilt"); err != nil {
			return md, err
		}
	case CategoryMicrostructure:
		if md.OrderImbalance, err = getFloat("order_imbalance"); err != nil {
			return md, err
		}
		if md.DepthScore, err = getFloat("depth_score"); err != nil {
			return md, err
		}
	}
	return md, nil
}
