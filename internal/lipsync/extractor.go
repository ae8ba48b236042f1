package lipsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/avatarchat/internal/artifact"
	"github.com/ent0n29/avatarchat/internal/audio"
	"github.com/ent0n29/avatarchat/internal/execution"
	"github.com/ent0n29/avatarchat/internal/observability"
)

type Stage string

const (
	StageTranscode Stage = "transcode"
	StageExtract   Stage = "extract"
)

// ErrLipSyncFailed matches every LipSyncFailedError.
var ErrLipSyncFailed = errors.New("lip-sync extraction failed")

// LipSyncFailedError carries the failing stage and the tool's captured output.
type LipSyncFailedError struct {
	Stage      Stage
	Diagnostic string
	Err        error
}

func (e *LipSyncFailedError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("lip-sync %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("lip-sync %s failed: %v: %s", e.Stage, e.Err, e.Diagnostic)
}

func (e *LipSyncFailedError) Unwrap() []error { return []error{ErrLipSyncFailed, e.Err} }

type Config struct {
	FFmpegPath  string
	RhubarbPath string
}

// Extractor turns a synthesized audio file into a viseme timing track.
type Extractor struct {
	ffmpeg  string
	rhubarb string
	runner  execution.Runner
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewExtractor(cfg Config, runner execution.Runner, logger *zap.Logger, metrics *observability.Metrics) *Extractor {
	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(cfg.RhubarbPath) == "" {
		cfg.RhubarbPath = "rhubarb"
	}
	if runner == nil {
		runner = execution.NewExecRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		ffmpeg:  cfg.FFmpegPath,
		rhubarb: cfg.RhubarbPath,
		runner:  runner,
		logger:  logger.Named("lipsync"),
		metrics: metrics,
	}
}

// Extract transcodes paths.Audio to paths.Wave and writes the timing track to
// paths.Timing, returning that path. Failures are not retried.
func (e *Extractor) Extract(ctx context.Context, paths artifact.Paths) (string, error) {
	if err := e.run(ctx, StageTranscode, "ffmpeg", e.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error", "-i", paths.Audio, paths.Wave,
	); err != nil {
		return "", err
	}
	if _, err := audio.ProbeWAVFile(paths.Wave); err != nil {
		e.metrics.IncToolRun("ffmpeg", "bad_output")
		return "", &LipSyncFailedError{Stage: StageTranscode, Err: err}
	}

	if err := e.run(ctx, StageExtract, "rhubarb", e.rhubarb,
		"-f", "json", "-o", paths.Timing, paths.Wave, "-r", "phonetic",
	); err != nil {
		return "", err
	}
	if info, err := os.Stat(paths.Timing); err != nil || info.Size() == 0 {
		e.metrics.IncToolRun("rhubarb", "bad_output")
		if err == nil {
			err = errors.New("empty timing file")
		}
		return "", &LipSyncFailedError{Stage: StageExtract, Err: err}
	}
	return paths.Timing, nil
}

func (e *Extractor) run(ctx context.Context, stage Stage, tool, bin string, args ...string) error {
	res, err := e.runner.Run(ctx, bin, args...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.metrics.IncToolRun(tool, "failure")
		return &LipSyncFailedError{Stage: stage, Diagnostic: res.Diagnostic(), Err: err}
	}
	e.metrics.IncToolRun(tool, "success")
	// Both tools print progress on stderr even on success.
	if diag := res.Diagnostic(); diag != "" {
		e.logger.Debug("tool output", zap.String("tool", tool), zap.String("output", diag))
	}
	return nil
}
