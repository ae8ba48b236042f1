package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ent0n29/avatarchat/internal/reliability"
)

// Backend renders text to an audio file at destPath.
type Backend interface {
	Synthesize(ctx context.Context, text, voiceID, destPath string) error
}

// StatusError is a well-formed provider response with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, body)
}

func (e *StatusError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}

// Retryable reports whether err is a transient provider failure. Errors that
// carry no classification, such as transport errors or a missing artifact,
// count as transient. Attempts are spent either way.
func Retryable(err error) bool {
	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}
	return true
}

// StreamError is an error frame received on the websocket transport.
type StreamError struct {
	Code   string
	Detail string
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return "tts stream error: " + e.Detail
	}
	return fmt.Sprintf("tts stream error %s: %s", e.Code, e.Detail)
}

func (e *StreamError) Retryable() bool {
	return reliability.IsRetryableStreamMessageType(e.Code)
}

// writeFileAtomic streams fill into a temp file beside destPath and renames it
// into place, so readers never observe a partially written artifact.
func writeFileAtomic(destPath string, fill func(io.Writer) error) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp audio file: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp audio file: %w", err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return fmt.Errorf("move audio into place: %w", err)
	}
	ok = true
	return nil
}
