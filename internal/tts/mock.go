package tts

import (
	"bytes"
	"context"
	"io"
	"time"
	"unicode/utf8"

	"github.com/ent0n29/avatarchat/internal/audio"
)

// Mock writes a short silent WAV clip sized to the text. ffmpeg probes input by
// content, so the clip transcodes fine despite the .mp3 name.
type Mock struct {
	SampleRate int
}

func NewMock() *Mock { return &Mock{SampleRate: 16000} }

func (m *Mock) Synthesize(ctx context.Context, text, _ string, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Roughly 60ms per character, at least a quarter second.
	d := time.Duration(utf8.RuneCountInString(text)) * 60 * time.Millisecond
	if d < 250*time.Millisecond {
		d = 250 * time.Millisecond
	}
	wav, err := audio.SilentWAV(d, m.SampleRate)
	if err != nil {
		return err
	}
	return writeFileAtomic(destPath, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(wav))
		return err
	})
}
