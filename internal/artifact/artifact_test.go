package artifact

import (
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/avatarchat/internal/reply"
)

func TestFingerprintDeterministic(t *testing.T) {
	for _, msg := range []string{"Hello", "", "héllo wörld", strings.Repeat("x", 4096)} {
		a := Fingerprint(msg)
		b := Fingerprint(msg)
		if a != b {
			t.Fatalf("Fingerprint(%q) not stable: %q vs %q", msg, a, b)
		}
		if len(a) != 32 {
			t.Fatalf("len(Fingerprint(%q)) = %d, want 32", msg, len(a))
		}
	}
	// Fixed digest so a process restart cannot change the key.
	if got, want := Fingerprint("Hello"), "8b1a9953c4611296a827abf8c47804d7"; got != want {
		t.Fatalf("Fingerprint(Hello) = %q, want %q", got, want)
	}
	if Fingerprint("Hello") == Fingerprint("hello") {
		t.Fatalf("distinct messages share a fingerprint")
	}
}

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/scratch").Scoped("req-1")
	p := l.Paths("abc", 2)
	if p.Audio != filepath.Join("/scratch", "req-1", "message_abc_2.mp3") {
		t.Fatalf("Audio = %q", p.Audio)
	}
	if p.Wave != filepath.Join("/scratch", "req-1", "message_abc_2.wav") {
		t.Fatalf("Wave = %q", p.Wave)
	}
	if p.Timing != filepath.Join("/scratch", "req-1", "message_abc_2.json") {
		t.Fatalf("Timing = %q", p.Timing)
	}
	if got := NewLayout("/scratch").Scoped("  ").Dir; got != "/scratch" {
		t.Fatalf("blank scope Dir = %q, want /scratch", got)
	}
	if got := NewLayout("").Dir; got != os.TempDir() {
		t.Fatalf("default Dir = %q, want %q", got, os.TempDir())
	}
}

type fakeInfo struct{ fs.FileInfo }

func (fakeInfo) IsDir() bool { return false }
func (fakeInfo) Size() int64 { return 1 }

func countingWaiter(attempts, appearAfter int) (*Waiter, *int, *int) {
	polls, sleeps := 0, 0
	w := &Waiter{
		Attempts: attempts,
		Delay:    time.Millisecond,
		stat: func(string) (fs.FileInfo, error) {
			polls++
			if appearAfter >= 0 && polls > appearAfter {
				return fakeInfo{}, nil
			}
			return nil, fs.ErrNotExist
		},
		sleep: func(context.Context, time.Duration) error {
			sleeps++
			return nil
		},
	}
	return w, &polls, &sleeps
}

func TestWaitForReturnsOnPollAfterAppearance(t *testing.T) {
	for _, k := range []int{0, 1, 5, 19} {
		w, polls, sleeps := countingWaiter(20, k)
		if err := w.WaitFor(context.Background(), "x.mp3"); err != nil {
			t.Fatalf("k=%d WaitFor() error = %v", k, err)
		}
		if *polls != k+1 {
			t.Fatalf("k=%d polls = %d, want %d", k, *polls, k+1)
		}
		if *sleeps != k {
			t.Fatalf("k=%d sleeps = %d, want %d", k, *sleeps, k)
		}
	}
}

func TestWaitForTimesOutAfterExactlyMaxAttempts(t *testing.T) {
	w, polls, sleeps := countingWaiter(25, -1)
	err := w.WaitFor(context.Background(), "never.mp3")
	if !errors.Is(err, ErrArtifactTimeout) {
		t.Fatalf("WaitFor() error = %v, want ErrArtifactTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Attempts != 25 || te.Path != "never.mp3" {
		t.Fatalf("TimeoutError = %+v", te)
	}
	if *polls != 25 {
		t.Fatalf("polls = %d, want 25", *polls)
	}
	if *sleeps != 24 {
		t.Fatalf("sleeps = %d, want 24", *sleeps)
	}
}

func TestWaitForUsesBackoffSchedule(t *testing.T) {
	w, _, _ := countingWaiter(4, -1)
	var delays []time.Duration
	w.Backoff = func(poll int) time.Duration { return time.Duration(poll) * 10 * time.Millisecond }
	w.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	_ = w.WaitFor(context.Background(), "x")
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", delays, want)
		}
	}
}

func TestWaitForHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWaiter(20, time.Second)
	if err := w.WaitFor(ctx, filepath.Join(t.TempDir(), "missing")); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitFor() error = %v, want context.Canceled", err)
	}
}

func TestWaitForRealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.mp3")
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, []byte("ID3"), 0o644)
	}()
	w := NewWaiter(50, 10*time.Millisecond)
	if err := w.WaitFor(context.Background(), path); err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
}

func TestWaitForIgnoresDirectoriesAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWaiter(2, time.Millisecond)
	if err := w.WaitFor(context.Background(), dir); !errors.Is(err, ErrArtifactTimeout) {
		t.Fatalf("WaitFor(dir) error = %v, want timeout", err)
	}
	empty := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WaitFor(context.Background(), empty); !errors.Is(err, ErrArtifactTimeout) {
		t.Fatalf("WaitFor(empty) error = %v, want timeout", err)
	}
}

func TestPackageAttachesBothAssets(t *testing.T) {
	l := NewLayout(t.TempDir())
	p := l.Paths(Fingerprint("Hello"), 0)
	audio := []byte("0123456789")
	if err := os.WriteFile(p.Audio, audio, 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := os.WriteFile(p.Timing, []byte("{\n  \"mouthCues\": [ {\"start\": 0.0, \"end\": 0.1, \"value\": \"X\"} ]\n}\n"), 0o644); err != nil {
		t.Fatalf("write timing: %v", err)
	}

	seg := reply.Segment{Text: "Hi!"}
	if err := Package(&seg, p); err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(seg.Audio)
	if err != nil {
		t.Fatalf("audio not base64: %v", err)
	}
	if string(decoded) != string(audio) {
		t.Fatalf("audio = %q, want %q", decoded, audio)
	}
	if got := string(seg.Lipsync); got != `{"mouthCues":[{"start":0.0,"end":0.1,"value":"X"}]}` {
		t.Fatalf("lipsync = %s", got)
	}
	if !seg.Ready() {
		t.Fatalf("segment not ready after packaging")
	}
}

func TestPackageFailuresLeaveSegmentUntouched(t *testing.T) {
	dir := t.TempDir()
	p := NewLayout(dir).Paths("fp", 0)

	cases := []struct {
		name  string
		setup func()
	}{
		{"missing audio", func() {}},
		{"empty audio", func() { _ = os.WriteFile(p.Audio, nil, 0o644) }},
		{"missing timing", func() { _ = os.WriteFile(p.Audio, []byte("abc"), 0o644) }},
		{"invalid timing", func() {
			_ = os.WriteFile(p.Audio, []byte("abc"), 0o644)
			_ = os.WriteFile(p.Timing, []byte("{not json"), 0o644)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Remove(p.Audio)
			_ = os.Remove(p.Timing)
			tc.setup()
			seg := reply.Segment{Text: "x"}
			err := Package(&seg, p)
			if !errors.Is(err, ErrArtifactRead) {
				t.Fatalf("Package() error = %v, want ErrArtifactRead", err)
			}
			if seg.Audio != "" || seg.Lipsync != nil {
				t.Fatalf("segment mutated on failure: %+v", seg)
			}
		})
	}
}
