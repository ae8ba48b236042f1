package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/avatarchat/internal/observability"
	"github.com/ent0n29/avatarchat/internal/reliability"
)

const DefaultAttempts = 3

// ErrSynthesisFailed matches every SynthesisFailedError.
var ErrSynthesisFailed = errors.New("speech synthesis failed")

// SynthesisFailedError is returned once every attempt has failed.
type SynthesisFailedError struct {
	Attempts int
	Err      error
}

func (e *SynthesisFailedError) Error() string {
	return fmt.Sprintf("speech synthesis failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SynthesisFailedError) Unwrap() []error { return []error{ErrSynthesisFailed, e.Err} }

// ReadyWaiter blocks until an artifact is observable.
type ReadyWaiter interface {
	WaitFor(ctx context.Context, path string) error
}

type Options struct {
	Attempts int
	// Backoff is the linear step between attempts; zero retries immediately.
	Backoff    time.Duration
	MaxBackoff time.Duration
	Waiter     ReadyWaiter
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Synthesizer adds bounded sequential retries and a readiness wait to a Backend.
type Synthesizer struct {
	backend    Backend
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
	waiter     ReadyWaiter
	logger     *zap.Logger
	metrics    *observability.Metrics

	sleep func(context.Context, time.Duration) error
}

func NewSynthesizer(backend Backend, opts Options) *Synthesizer {
	if opts.Attempts <= 0 || opts.Attempts > DefaultAttempts {
		opts.Attempts = DefaultAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Synthesizer{
		backend:    backend,
		attempts:   opts.Attempts,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
		waiter:     opts.Waiter,
		logger:     opts.Logger.Named("tts"),
		metrics:    opts.Metrics,
		sleep:      sleepContext,
	}
}

// Synthesize writes audio for text to destPath. An attempt only succeeds once
// the backend returned and the file is observable.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID, destPath string) error {
	text = SpeakableText(text)
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.backend.Synthesize(ctx, text, voiceID, destPath)
		if err == nil && s.waiter != nil {
			err = s.waiter.WaitFor(ctx, destPath)
		}
		if err == nil {
			s.metrics.IncSynthesisAttempt("success")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		retryable := Retryable(err)
		outcome := "permanent_failure"
		if retryable {
			outcome = "retryable_failure"
		}
		s.metrics.IncSynthesisAttempt(outcome)
		s.logger.Warn("synthesis attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.attempts),
			zap.String("dest", filepath.Base(destPath)),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)

		if attempt < s.attempts {
			if err := s.sleep(ctx, reliability.LinearBackoff(attempt, s.backoff, s.maxBackoff)); err != nil {
				return err
			}
		}
	}
	return &SynthesisFailedError{Attempts: s.attempts, Err: lastErr}
}

const probeText = "Hello test"

// Validate synthesizes a short probe phrase into dir and removes it again.
// It is the startup check for a missing or revoked provider key.
func (s *Synthesizer) Validate(ctx context.Context, dir, voiceID string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create probe dir: %w", err)
	}
	dest := filepath.Join(dir, fmt.Sprintf("tts_probe_%d.mp3", time.Now().UnixNano()))
	defer os.Remove(dest)

	if err := s.backend.Synthesize(ctx, probeText, voiceID, dest); err != nil {
		return fmt.Errorf("validate tts provider: %w", err)
	}
	if s.waiter != nil {
		if err := s.waiter.WaitFor(ctx, dest); err != nil {
			return fmt.Errorf("validate tts provider: %w", err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
