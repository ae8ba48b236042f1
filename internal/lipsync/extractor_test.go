package lipsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ent0n29/avatarchat/internal/artifact"
	"github.com/ent0n29/avatarchat/internal/audio"
	"github.com/ent0n29/avatarchat/internal/execution"
)

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type fixture struct {
	paths   artifact.Paths
	ffmpeg  string
	rhubarb string
	toolDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	toolDir := t.TempDir()
	wav := filepath.Join(toolDir, "fixture.wav")
	if err := audio.WriteWAVPCM16LEFile(wav, make([]byte, 320), 16000); err != nil {
		t.Fatalf("write fixture wav: %v", err)
	}
	paths := artifact.NewLayout(dir).Paths("fp", 0)
	if err := os.WriteFile(paths.Audio, []byte("ID3fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return fixture{
		paths: paths,
		// ffmpeg -y -hide_banner -loglevel error -i <in> <out>
		ffmpeg: writeTool(t, toolDir, "ffmpeg", `echo "size=1kB" >&2; cp "`+wav+`" "$7"`),
		// rhubarb -f json -o <out> <wav> -r phonetic
		rhubarb: writeTool(t, toolDir, "rhubarb", `echo "Progress: 100%" >&2; printf '{"mouthCues":[{"start":0.00,"end":0.10,"value":"X"}]}' > "$4"`),
		toolDir: toolDir,
	}
}

func TestExtractRunsBothStages(t *testing.T) {
	f := newFixture(t)
	e := NewExtractor(Config{FFmpegPath: f.ffmpeg, RhubarbPath: f.rhubarb}, nil, nil, nil)

	out, err := e.Extract(context.Background(), f.paths)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out != f.paths.Timing {
		t.Fatalf("Extract() = %q, want %q", out, f.paths.Timing)
	}
	data, _ := os.ReadFile(out)
	if !strings.Contains(string(data), "mouthCues") {
		t.Fatalf("timing = %s", data)
	}
}

func TestExtractTranscodeFailureCarriesDiagnostic(t *testing.T) {
	f := newFixture(t)
	ffmpeg := writeTool(t, f.toolDir, "ffmpeg-bad", `echo "Invalid data found when processing input" >&2; exit 1`)
	e := NewExtractor(Config{FFmpegPath: ffmpeg, RhubarbPath: f.rhubarb}, nil, nil, nil)

	_, err := e.Extract(context.Background(), f.paths)
	if !errors.Is(err, ErrLipSyncFailed) {
		t.Fatalf("Extract() error = %v, want ErrLipSyncFailed", err)
	}
	var le *LipSyncFailedError
	if !errors.As(err, &le) || le.Stage != StageTranscode {
		t.Fatalf("LipSyncFailedError = %+v", le)
	}
	if !strings.Contains(le.Diagnostic, "Invalid data") {
		t.Fatalf("Diagnostic = %q", le.Diagnostic)
	}
	if _, err := os.Stat(f.paths.Timing); !os.IsNotExist(err) {
		t.Fatalf("extract stage ran after transcode failure")
	}
}

func TestExtractRejectsNonWAVTranscodeOutput(t *testing.T) {
	f := newFixture(t)
	ffmpeg := writeTool(t, f.toolDir, "ffmpeg-garbage", `echo "not a wav" > "$7"`)
	e := NewExtractor(Config{FFmpegPath: ffmpeg, RhubarbPath: f.rhubarb}, nil, nil, nil)

	_, err := e.Extract(context.Background(), f.paths)
	var le *LipSyncFailedError
	if !errors.As(err, &le) || le.Stage != StageTranscode || !errors.Is(err, audio.ErrNotPCMWAV) {
		t.Fatalf("Extract() error = %v, want transcode failure for non-PCM output", err)
	}
}

func TestExtractAlignerFailure(t *testing.T) {
	f := newFixture(t)
	rhubarb := writeTool(t, f.toolDir, "rhubarb-bad", `echo "Error: could not open file" >&2; exit 2`)
	e := NewExtractor(Config{FFmpegPath: f.ffmpeg, RhubarbPath: rhubarb}, nil, nil, nil)

	_, err := e.Extract(context.Background(), f.paths)
	var le *LipSyncFailedError
	if !errors.As(err, &le) || le.Stage != StageExtract {
		t.Fatalf("Extract() error = %v, want extract-stage failure", err)
	}
	if !strings.Contains(le.Diagnostic, "could not open") {
		t.Fatalf("Diagnostic = %q", le.Diagnostic)
	}
}

func TestExtractMissingBinary(t *testing.T) {
	f := newFixture(t)
	e := NewExtractor(Config{FFmpegPath: filepath.Join(f.toolDir, "nope"), RhubarbPath: f.rhubarb}, nil, nil, nil)
	if _, err := e.Extract(context.Background(), f.paths); !errors.Is(err, ErrLipSyncFailed) {
		t.Fatalf("Extract() error = %v, want ErrLipSyncFailed", err)
	}
}

type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) (execution.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	// Stop after the first call; only the command line matters here.
	return execution.Result{}, errors.New("stop")
}

func TestExtractCommandLine(t *testing.T) {
	r := &recordingRunner{}
	paths := artifact.Paths{Audio: "a.mp3", Wave: "a.wav", Timing: "a.json"}
	_, _ = NewExtractor(Config{}, r, nil, nil).Extract(context.Background(), paths)

	want := "ffmpeg -y -hide_banner -loglevel error -i a.mp3 a.wav"
	if len(r.calls) != 1 || strings.Join(r.calls[0], " ") != want {
		t.Fatalf("calls = %v, want [%s]", r.calls, want)
	}
}
