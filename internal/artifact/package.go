package artifact

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ent0n29/avatarchat/internal/reply"
)

// ErrArtifactRead matches every ReadError.
var ErrArtifactRead = errors.New("artifact read failed")

// ReadError reports an artifact that could not be loaded back for packaging.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read artifact %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() []error { return []error{ErrArtifactRead, e.Err} }

// LoadAudio returns the audio file as standard base64.
func LoadAudio(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return "", &ReadError{Path: path, Err: errors.New("empty audio file")}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// LoadTiming returns the timing document, compacted but otherwise untouched.
func LoadTiming(path string) (reply.TimingTrack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("decode timing json: %w", err)}
	}
	if buf.Len() == 0 {
		return nil, &ReadError{Path: path, Err: errors.New("empty timing file")}
	}
	return reply.TimingTrack(buf.Bytes()), nil
}

// Package attaches audio and lipsync to seg. The segment is only modified when
// both artifacts load.
func Package(seg *reply.Segment, paths Paths) error {
	audio, err := LoadAudio(paths.Audio)
	if err != nil {
		return err
	}
	timing, err := LoadTiming(paths.Timing)
	if err != nil {
		return err
	}
	seg.Audio = audio
	seg.Lipsync = timing
	return nil
}
