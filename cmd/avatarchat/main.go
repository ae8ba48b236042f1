package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/avatarchat/internal/app"
	"github.com/ent0n29/avatarchat/internal/config"
	"github.com/ent0n29/avatarchat/internal/observability"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("credentials",
		zap.String("elevenlabs_key", config.KeyPrefix(cfg.ElevenLabsAPIKey, 5)),
		zap.String("openai_key", config.KeyPrefix(cfg.OpenAIAPIKey, 5)),
		zap.String("gemini_key", config.KeyPrefix(cfg.GeminiAPIKey, 5)),
	)

	ctx := context.Background()
	built, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer func() {
		if built.Cleanup != nil {
			if err := built.Cleanup(); err != nil {
				logger.Warn("cleanup failed", zap.Error(err))
			}
		}
	}()

	logger.Info("providers ready",
		zap.String("voice_provider", built.Voice.Provider),
		zap.String("voice_detail", built.Voice.Detail),
		zap.String("voice_id", built.Voice.DefaultVoiceID),
		zap.String("model", built.Model.Name()),
	)

	if cfg.StartupValidateTTS && cfg.TTSConfigured() {
		validateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		err := built.Synthesizer.Validate(validateCtx, cfg.ArtifactDir, cfg.ElevenLabsVoiceID)
		cancel()
		if err != nil {
			logger.Fatal("speech provider validation failed", zap.Error(err))
		}
		logger.Info("speech provider validated")
	} else if !cfg.TTSConfigured() {
		logger.Warn("speech provider not configured; chat replies will be empty")
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
