// Package config loads and validates service configuration from YAML and
// environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/predictfunk/internal/consensus"
	"github.com/ajitpratap0/predictfunk/internal/decision"
	"github.com/ajitpratap0/predictfunk/internal/fusion"
	"github.com/ajitpratap0/predictfunk/internal/pipeline"
	"github.com/ajitpratap0/predictfunk/internal/signal"
	"github.com/ajitpratap0/predictfunk/internal/weighting"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// PipelineConfig contains every threshold and coefficient of the fusion
// pipeline. One read-only instance serves a whole cycle.
type PipelineConfig struct {
	BaseWeights              map[string]float64 `mapstructure:"base_weights"` // Category -> base weight
	ContextAdjustment        bool               `mapstructure:"context_adjustment"`
	ConflictThreshold        float64            `mapstructure:"conflict_threshold"`
	AlignmentBonus           float64            `mapstructure:"alignment_bonus"`
	DivergenceThreshold      float64            `mapstructure:"divergence_threshold"`
	MinAgentsRequired        int                `mapstructure:"min_agents_required"`
	MaxDisagreement          float64            `mapstructure:"max_disagreement"`
	EfficientPriceBand       float64            `mapstructure:"efficient_price_band"`
	MinEdgeThreshold         float64            `mapstructure:"min_edge_threshold"`
	TransactionCost          float64            `mapstructure:"transaction_cost"`
	EntryZoneWidth           float64            `mapstructure:"entry_zone_width"`
	TargetZoneWidth          float64            `mapstructure:"target_zone_width"`
	UncertaintyNoteThreshold float64            `mapstructure:"uncertainty_note_threshold"`
	MaxParallelCycles        int                `mapstructure:"max_parallel_cycles"`
}

// NATSConfig contains NATS messaging settings.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// RedisConfig contains Redis result store settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig contains PostgreSQL settings for the audit store.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// APIConfig contains REST API settings.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PREDICTFUNK")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "PredictFunk")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("pipeline.context_adjustment", true)
	v.SetDefault("pipeline.conflict_threshold", 0.20)
	v.SetDefault("pipeline.alignment_bonus", 0.20)
	v.SetDefault("pipeline.divergence_threshold", 0.70)
	v.SetDefault("pipeline.min_agents_required", 3)
	v.SetDefault("pipeline.max_disagreement", 0.30)
	v.SetDefault("pipeline.efficient_price_band", 0.03)
	v.SetDefault("pipeline.min_edge_threshold", 0.05)
	v.SetDefault("pipeline.transaction_cost", 0.02)
	v.SetDefault("pipeline.entry_zone_width", 0.02)
	v.SetDefault("pipeline.target_zone_width", 0.03)
	v.SetDefault("pipeline.uncertainty_note_threshold", 0.15)
	v.SetDefault("pipeline.max_parallel_cycles", 8)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "predictfunk")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "predictfunk")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// PipelineConfig converts the loaded settings into the per-stage config the
// pipeline consumes.
func (c *Config) PipelineConfig() pipeline.Config {
	baseWeights := weighting.DefaultBaseWeights()
	for category, w := range c.Pipeline.BaseWeights {
		baseWeights[signal.Category(category)] = w
	}
	return pipeline.Config{
		Weighting: weighting.Config{
			BaseWeights:       baseWeights,
			ContextAdjustment: c.Pipeline.ContextAdjustment,
		},
		Fusion: fusion.Config{
			ConflictThreshold:   c.Pipeline.ConflictThreshold,
			AlignmentBonus:      c.Pipeline.AlignmentBonus,
			DivergenceThreshold: c.Pipeline.DivergenceThreshold,
		},
		Consensus: consensus.Config{
			MinAgentsRequired:  c.Pipeline.MinAgentsRequired,
			MaxDisagreement:    c.Pipeline.MaxDisagreement,
			EfficientPriceBand: c.Pipeline.EfficientPriceBand,
		},
		Decision: decision.Config{
			MinEdgeThreshold:         c.Pipeline.MinEdgeThreshold,
			TransactionCost:          c.Pipeline.TransactionCost,
			EntryZoneWidth:           c.Pipeline.EntryZoneWidth,
			TargetZoneWidth:          c.Pipeline.TargetZoneWidth,
			UncertaintyNoteThreshold: c.Pipeline.UncertaintyNoteThreshold,
		},
		MaxParallelCycles: c.Pipeline.MaxParallelCycles,
	}
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
