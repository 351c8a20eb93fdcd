package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fieldops/backend/internal/assign"
	"github.com/fieldops/backend/internal/config"
	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/geocode"
	httpapi "github.com/fieldops/backend/internal/http"
	"github.com/fieldops/backend/internal/llm"
	"github.com/fieldops/backend/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "fieldops-backend").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	} else {
		logger.Info().Msg("redis not configured, events stay instance-local")
	}

	hub := realtime.NewHub(logger)
	bus := realtime.NewBus(hub, rdb, logger)
	if rdb != nil {
		go bus.Run(ctx)
	}

	var assistant llm.Assistant
	if cfg.LLMBaseURL == "" {
		assistant = llm.MockAssistant{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock assistant")
	} else {
		assistant = llm.OpenAICompatAssistant{
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			APIKey:    cfg.LLMAPIKey,
			MaxTokens: cfg.LLMMaxTokens,
		}
	}

	geocoder := &geocode.NominatimGeocoder{BaseURL: cfg.GeocodeURL}
	assigner := assign.NewService(store, bus, logger)
	assistantSvc := llm.NewService(store, assistant, logger)

	router := httpapi.Router(cfg, store, assigner, assistantSvc, geocoder, hub, bus, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
