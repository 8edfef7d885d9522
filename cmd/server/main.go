package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/contractline/backend/internal/config"
	"github.com/contractline/backend/internal/db"
	"github.com/contractline/backend/internal/extract"
	httpapi "github.com/contractline/backend/internal/http"
	"github.com/contractline/backend/internal/retry"
	"github.com/contractline/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "contractline-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	var extractor extract.Extractor
	if cfg.ExtractorURL == "" {
		extractor = extract.MockExtractor{}
		logger.Info().Msg("using mock extractor")
	} else {
		extractor = extract.HTTPExtractor{
			BaseURL: cfg.ExtractorURL,
			Model:   cfg.ExtractorModel,
			APIKey:  cfg.ExtractorAPIKey,
			Client:  &http.Client{Timeout: cfg.RequestTimeout},
		}
	}

	turns := &service.TurnService{
		Store:     store,
		Extractor: extractor,
		Retry:     retry.DefaultConfig(),
		Logger:    logger,
	}

	router := httpapi.Router(cfg, store, extractor, turns, logger)

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

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
