package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

const (
	DefaultWaitAttempts = 30
	DefaultWaitDelay    = 300 * time.Millisecond
)

// ErrArtifactTimeout matches every TimeoutError.
var ErrArtifactTimeout = errors.New("artifact never appeared")

// TimeoutError reports an artifact that was still missing after the last poll.
type TimeoutError struct {
	Path     string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("artifact %s not found after %d polls", e.Path, e.Attempts)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrArtifactTimeout }

// Waiter polls the filesystem until an asynchronously written artifact shows up.
type Waiter struct {
	Attempts int
	Delay    time.Duration
	// Backoff, when set, overrides Delay for the sleep after poll n (1-based).
	Backoff func(poll int) time.Duration

	stat  func(string) (fs.FileInfo, error)
	sleep func(context.Context, time.Duration) error
}

// NewWaiter returns a waiter with the given bounds; non-positive values fall back to defaults.
func NewWaiter(attempts int, delay time.Duration) *Waiter {
	if attempts <= 0 {
		attempts = DefaultWaitAttempts
	}
	if delay <= 0 {
		delay = DefaultWaitDelay
	}
	return &Waiter{Attempts: attempts, Delay: delay}
}

// WaitFor returns as soon as path is observable as a non-empty file. It polls at most
// Attempts times and does not sleep after the final poll.
func (w *Waiter) WaitFor(ctx context.Context, path string) error {
	attempts := w.Attempts
	if attempts <= 0 {
		attempts = DefaultWaitAttempts
	}
	stat := w.stat
	if stat == nil {
		stat = os.Stat
	}
	sleep := w.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for poll := 1; poll <= attempts; poll++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info, err := stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
			return nil
		}
		if poll == attempts {
			break
		}
		if err := sleep(ctx, w.delayAfter(poll)); err != nil {
			return err
		}
	}
	return &TimeoutError{Path: path, Attempts: attempts}
}

func (w *Waiter) delayAfter(poll int) time.Duration {
	if w.Backoff != nil {
		return w.Backoff(poll)
	}
	return w.Delay
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
