package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/avatarchat/internal/artifact"
	"github.com/ent0n29/avatarchat/internal/config"
	"github.com/ent0n29/avatarchat/internal/execution"
	"github.com/ent0n29/avatarchat/internal/httpapi"
	"github.com/ent0n29/avatarchat/internal/lipsync"
	"github.com/ent0n29/avatarchat/internal/llm"
	"github.com/ent0n29/avatarchat/internal/observability"
	"github.com/ent0n29/avatarchat/internal/pipeline"
	"github.com/ent0n29/avatarchat/internal/runlog"
	"github.com/ent0n29/avatarchat/internal/tts"
)

type VoiceInfo struct {
	Provider       string
	Detail         string
	DefaultVoiceID string
	DefaultModelID string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *pipeline.Orchestrator
	Synthesizer  *tts.Synthesizer
	Model        llm.Model
	Runs         runlog.Store
	Metrics      *observability.Metrics
	Voice        VoiceInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires the chat pipeline and its HTTP surface from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	return build(ctx, cfg, logger, observability.NewMetrics(cfg.MetricsNamespace))
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir init failed: %w", err)
	}

	runs, err := runlog.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("run store init failed: %w", err)
	}

	voiceSetup, err := resolveVoiceProvider(cfg)
	if err != nil {
		_ = runs.Close()
		return nil, err
	}

	model, err := resolveModel(ctx, cfg)
	if err != nil {
		_ = runs.Close()
		return nil, err
	}

	waiter := artifact.NewWaiter(cfg.ArtifactWaitAttempts, cfg.ArtifactWaitDelay)
	synth := tts.NewSynthesizer(voiceSetup.backend, tts.Options{
		Attempts:   cfg.TTSAttempts,
		Backoff:    cfg.TTSRetryBackoff,
		MaxBackoff: 2 * time.Second,
		Waiter:     waiter,
		Logger:     logger,
		Metrics:    metrics,
	})

	extractor := lipsync.NewExtractor(lipsync.Config{
		FFmpegPath:  cfg.FFmpegPath,
		RhubarbPath: cfg.RhubarbPath,
	}, execution.NewExecRunner(), logger, metrics)

	orchestrator := pipeline.New(model, synth, waiter, extractor, runs, metrics, logger, pipeline.Options{
		VoiceID:         cfg.ElevenLabsVoiceID,
		MaxSegments:     cfg.MaxSegments,
		RejectOverflow:  cfg.RejectSegmentOverflow(),
		ScratchDir:      cfg.ArtifactDir,
		IsolateRequests: cfg.ArtifactIsolateRequests,
		Cleanup:         cfg.ArtifactCleanup,
		TTSConfigured:   cfg.TTSConfigured(),
		ModelConfigured: cfg.ModelConfigured(),
	})

	var voices httpapi.VoiceLister
	if voiceSetup.lister != nil {
		voices = voiceSetup.lister
	}
	api := httpapi.New(cfg, orchestrator, voices, runs, metrics, logger)

	cleanup := func() error {
		if err := runs.Close(); err != nil {
			return fmt.Errorf("run store close: %w", err)
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Synthesizer:  synth,
		Model:        model,
		Runs:         runs,
		Metrics:      metrics,
		Voice: VoiceInfo{
			Provider:       cfg.VoiceProvider,
			Detail:         voiceSetup.detail,
			DefaultVoiceID: cfg.ElevenLabsVoiceID,
			DefaultModelID: cfg.ElevenLabsModelID,
		},
		Cleanup: cleanup,
	}, nil
}
