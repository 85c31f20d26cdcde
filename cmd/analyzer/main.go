package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/audit"
	"github.com/ajitpratap0/predictfunk/internal/bus"
	"github.com/ajitpratap0/predictfunk/internal/config"
	"github.com/ajitpratap0/predictfunk/internal/metrics"
	"github.com/ajitpratap0/predictfunk/internal/pipeline"
	"github.com/ajitpratap0/predictfunk/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting PredictFunk analyzer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Postgres audit persistence; log-only otherwise.
	var recorder audit.Recorder = audit.LogRecorder{}
	if cfg.Database.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Postgres, audit persistence disabled")
		} else {
			defer pool.Close()
			recorder = audit.NewPostgresRecorder(pool)
		}
	}

	pipe := pipeline.New(cfg.PipelineConfig(), recorder)

	resultStore, err := store.New(store.Config{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Redis, results will not be stored")
		resultStore = nil
	} else {
		defer resultStore.Close()
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	var sink bus.ResultSink
	if resultStore != nil {
		sink = resultStore
	}
	collector := bus.NewCollector(nc, pipe, sink, bus.Config{
		SubjectPrefix: cfg.NATS.SubjectPrefix,
	})
	if err := collector.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start cycle collector")
	}
	defer collector.Stop()

	if cfg.Monitoring.EnableMetrics {
		metricsSrv := metrics.NewServer(cfg.Monitoring.PrometheusPort)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down analyzer")
}
