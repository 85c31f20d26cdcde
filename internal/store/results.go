// Package store persists cycle results to Redis for downstream consumers
// (presentation, audit review). The pipeline itself never reads from here;
// data still flows strictly forward.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/pipeline"
)

// Config configures the result store.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix (default: "predictfunk:")
	TTL      time.Duration // Per-result TTL (default: 24h)
}

// ResultStore keeps the latest cycle result per market plus a bounded
// history index.
type ResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

const historyLimit = 100

// New connects to Redis and returns a result store.
func New(cfg Config) (*ResultStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.Prefix == "" {
		cfg.Prefix = "predictfunk:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	log.Info().
		Str("redis_addr", cfg.Addr).
		Str("prefix", cfg.Prefix).
		Msg("Result store initialized")

	return &ResultStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

// NewWithClient wraps an existing Redis client (used in tests).
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *ResultStore {
	if prefix == "" {
		prefix = "predictfunk:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultStore{client: client, prefix: prefix, ttl: ttl}
}

// Put stores a cycle result under its market and pushes it onto the
// market's history index.
func (s *ResultStore) Put(ctx context.Context, result *pipeline.CycleResult) error {
	if result == nil || result.MarketID == "" {
		return fmt.Errorf("result with market id required")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle result: %w", err)
	}

	latestKey := s.latestKey(result.MarketID)
	cycleKey := fmt.Sprintf("%scycle:%s", s.prefix, result.CycleID)
	historyKey := s.historyKey(result.MarketID)
	score := float64(result.StartedAt.UnixNano())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, latestKey, data, s.ttl)
	pipe.Set(ctx, cycleKey, data, s.ttl)
	pipe.ZAdd(ctx, historyKey, redis.Z{Score: score, Member: cycleKey})
	pipe.ZRemRangeByRank(ctx, historyKey, 0, -(historyLimit + 1))
	pipe.Expire(ctx, historyKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store cycle result: %w", err)
	}

	log.Debug().
		Str("market_id", result.MarketID).
		Str("cycle_id", result.CycleID.String()).
		Msg("Cycle result stored")
	return nil
}

// Latest returns the most recent cycle result for a market, or nil when
// none exists.
func (s *ResultStore) Latest(ctx context.Context, marketID string) (*pipeline.CycleResult, error) {
	data, err := s.client.Get(ctx, s.latestKey(marketID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest result: %w", err)
	}

	var result pipeline.CycleResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cycle result: %w", err)
	}
	return &result, nil
}

// History returns up to limit recent results for a market, newest first.
func (s *ResultStore) History(ctx context.Context, marketID string, limit int) ([]*pipeline.CycleResult, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	keys, err := s.client.ZRevRange(ctx, s.historyKey(marketID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history index: %w", err)
	}

	results := make([]*pipeline.CycleResult, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // Result expired but index entry survived
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load result %s: %w", key, err)
		}
		var result pipeline.CycleResult
		if err := json.Unmarshal(data, &result); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Skipping unreadable cycle result")
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}

// Close releases the Redis connection.
func (s *ResultStore) Close() error {
	return s.client.Close()
}

func (s *ResultStore) latestKey(marketID string) string {
	return fmt.Sprintf("%slatest:%s", s.prefix, marketID)
}

func (s *ResultStore) historyKey(marketID string) string {
	return fmt.Sprintf("%shistory:%s", s.prefix, marketID)
}
