package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/predictfunk/internal/api"
	"github.com/ajitpratap0/predictfunk/internal/audit"
	"github.com/ajitpratap0/predictfunk/internal/config"
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
	log.Info().Str("version", cfg.App.Version).Msg("Starting PredictFunk API server")

	pipe := pipeline.New(cfg.PipelineConfig(), audit.LogRecorder{})

	var results api.ResultReader
	resultStore, err := store.New(store.Config{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, result endpoints disabled")
	} else {
		defer resultStore.Close()
		results = resultStore
	}

	server := api.NewServer(api.Config{Host: cfg.API.Host, Port: cfg.API.Port}, pipe, results)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
