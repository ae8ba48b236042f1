package execution

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultWaitDelay bounds how long Run waits for output pipes after the
// process is killed; grandchildren may keep them open.
const DefaultWaitDelay = 2 * time.Second

// Result is the captured output of a finished process.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Diagnostic returns the most useful text for an error report: stderr when
// present, otherwise stdout, trimmed to the last 8KB.
func (r Result) Diagnostic() string {
	detail := strings.TrimSpace(string(r.Stderr))
	if detail == "" {
		detail = strings.TrimSpace(string(r.Stdout))
	}
	if len(detail) > 8<<10 {
		detail = strings.TrimSpace(detail[len(detail)-(8<<10):])
	}
	return detail
}

// Runner executes an external program to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// WaitDelay is passed to exec.Cmd; zero means DefaultWaitDelay.
	WaitDelay time.Duration
}

func NewExecRunner() *ExecRunner { return &ExecRunner{WaitDelay: DefaultWaitDelay} }

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if ctx.Err() != nil {
			// exec.CommandContext may surface "signal: killed" instead of context cancellation.
			return res, ctx.Err()
		}
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}
