package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/avatarchat/internal/artifact"
	"github.com/ent0n29/avatarchat/internal/llm"
	"github.com/ent0n29/avatarchat/internal/observability"
	"github.com/ent0n29/avatarchat/internal/policy"
	"github.com/ent0n29/avatarchat/internal/reply"
	"github.com/ent0n29/avatarchat/internal/runlog"
)

type Options struct {
	VoiceID        string
	MaxSegments    int
	RejectOverflow bool

	ScratchDir      string
	IsolateRequests bool
	Cleanup         bool

	// Credential presence, checked before any collaborator is called.
	TTSConfigured   bool
	ModelConfigured bool
}

type Orchestrator struct {
	model     llm.Model
	synth     Synthesizer
	waiter    ReadyWaiter
	extractor Extractor
	runs      runlog.Store
	metrics   *observability.Metrics
	logger    *zap.Logger
	opts      Options

	newID func() string
}

func New(
	model llm.Model,
	synth Synthesizer,
	waiter ReadyWaiter,
	extractor Extractor,
	runs runlog.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if opts.MaxSegments <= 0 || opts.MaxSegments > reply.DefaultMaxSegments {
		opts.MaxSegments = reply.DefaultMaxSegments
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		model:     model,
		synth:     synth,
		waiter:    waiter,
		extractor: extractor,
		runs:      runs,
		metrics:   metrics,
		logger:    logger.Named("pipeline"),
		opts:      opts,
		newID:     uuid.NewString,
	}
}

// HandleChat turns a user message into fully packaged reply segments. Segments
// are processed strictly in order; any stage failure aborts the request and no
// partial list is returned.
func (o *Orchestrator) HandleChat(ctx context.Context, message string) (Response, error) {
	started := time.Now()
	rc := RequestContext{RequestID: o.newID()}
	logger := o.logger.With(zap.String("request_id", rc.RequestID))

	if strings.TrimSpace(message) == "" {
		o.finish(ctx, logger, rc, started, "empty", nil)
		return emptyResponse(), nil
	}
	if !o.opts.TTSConfigured || !o.opts.ModelConfigured {
		logger.Warn("provider credentials missing; replying with no messages",
			zap.Bool("tts_configured", o.opts.TTSConfigured),
			zap.Bool("model_configured", o.opts.ModelConfigured),
		)
		o.finish(ctx, logger, rc, started, "unconfigured", nil)
		return emptyResponse(), nil
	}

	rc.Fingerprint = artifact.Fingerprint(message)
	logger = logger.With(zap.String("fingerprint", rc.Fingerprint))
	logger.Debug("stage",
		zap.String("stage", string(StageReceived)),
		zap.String("message", policy.LogPreview(message, 80)),
	)

	segments, err := o.parse(ctx, logger, message)
	if err != nil {
		return o.fail(ctx, logger, rc, started, err)
	}
	rc.SegmentCount = len(segments)
	logger.Info("stage", zap.String("stage", string(StageParsed)), zap.Int("segments", rc.SegmentCount))

	layout := artifact.NewLayout(o.opts.ScratchDir)
	if o.opts.IsolateRequests {
		layout = layout.Scoped(rc.RequestID)
		if o.opts.Cleanup {
			defer func() {
				if err := os.RemoveAll(layout.Dir); err != nil {
					logger.Warn("artifact cleanup failed", zap.Error(err))
				}
			}()
		}
	}
	if err := layout.Ensure(); err != nil {
		return o.fail(ctx, logger, rc, started, err)
	}

	for i := range segments {
		if err := o.runSegment(ctx, logger, layout, rc, i, &segments[i]); err != nil {
			return o.fail(ctx, logger, rc, started, fmt.Errorf("segment %d: %w", i, err))
		}
	}
	logger.Debug("stage", zap.String("stage", string(StageAssembled)))

	o.metrics.ObserveSegments(len(segments))
	o.finish(ctx, logger, rc, started, "ok", nil)
	return Response{Messages: segments}, nil
}

func (o *Orchestrator) parse(ctx context.Context, logger *zap.Logger, message string) ([]reply.Segment, error) {
	t0 := time.Now()
	raw, err := o.model.Complete(ctx, llm.SystemPrompt, message)
	o.metrics.ObserveStage("model", time.Since(t0))
	if err != nil {
		return nil, err
	}

	t0 = time.Now()
	segments, err := reply.Parse(raw)
	if err != nil {
		return nil, err
	}
	segments, dropped, err := reply.ClampSegments(segments, o.opts.MaxSegments, o.opts.RejectOverflow)
	o.metrics.ObserveStage("parse", time.Since(t0))
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		logger.Warn("reply exceeded segment limit; truncating",
			zap.Int("dropped", dropped),
			zap.Int("max_segments", o.opts.MaxSegments),
		)
		o.metrics.ObserveIndicator("segments_truncated")
	}
	return segments, nil
}

func (o *Orchestrator) runSegment(ctx context.Context, logger *zap.Logger, layout artifact.Layout, rc RequestContext, index int, seg *reply.Segment) error {
	paths := layout.Paths(rc.Fingerprint, index)
	logger = logger.With(zap.Int("segment", index))

	if err := o.stage(logger, StageSynthesizing, "synthesize", func() error {
		return o.synth.Synthesize(ctx, seg.Text, o.opts.VoiceID, paths.Audio)
	}); err != nil {
		return err
	}
	if err := o.stage(logger, StageWaitingReady, "wait_ready", func() error {
		return o.waiter.WaitFor(ctx, paths.Audio)
	}); err != nil {
		return err
	}
	if err := o.stage(logger, StageExtractingSync, "extract_sync", func() error {
		timing, err := o.extractor.Extract(ctx, paths)
		if err == nil {
			paths.Timing = timing
		}
		return err
	}); err != nil {
		return err
	}
	return o.stage(logger, StagePackaging, "package", func() error {
		return artifact.Package(seg, paths)
	})
}

func (o *Orchestrator) stage(logger *zap.Logger, stage Stage, metric string, fn func() error) error {
	logger.Debug("stage", zap.String("stage", string(stage)))
	t0 := time.Now()
	err := fn()
	o.metrics.ObserveStage(metric, time.Since(t0))
	if err != nil {
		o.metrics.ObserveStageFailure(metric)
	}
	return err
}

func (o *Orchestrator) fail(ctx context.Context, logger *zap.Logger, rc RequestContext, started time.Time, err error) (Response, error) {
	kind := Classify(err)
	logger.Error("chat request aborted", zap.String("failure", string(kind)), zap.Error(err))
	o.finish(ctx, logger, rc, started, "error", err)
	return Response{}, err
}

func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, rc RequestContext, started time.Time, outcome string, err error) {
	elapsed := time.Since(started)
	o.metrics.IncChatRequest(outcome)
	o.metrics.ObserveStage("request_total", elapsed)
	if err == nil && outcome == "ok" {
		logger.Info("stage", zap.String("stage", string(StageResponded)), zap.Duration("elapsed", elapsed))
	}

	if o.runs == nil {
		return
	}
	record := runlog.Record{
		RequestID:    rc.RequestID,
		Fingerprint:  rc.Fingerprint,
		SegmentCount: rc.SegmentCount,
		Outcome:      outcome,
		FailureKind:  string(Classify(err)),
		DurationMS:   elapsed.Milliseconds(),
	}
	if o.model != nil {
		record.Model = o.model.Name()
	}
	// The request may already be canceled; the ledger entry is still wanted.
	if saveErr := o.runs.Save(context.WithoutCancel(ctx), record); saveErr != nil {
		logger.Warn("run ledger save failed", zap.Error(saveErr))
	}
}
