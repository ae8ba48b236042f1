package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths is the artifact triple for one segment.
type Paths struct {
	Audio  string
	Wave   string
	Timing string
}

// Layout resolves artifact paths inside a scratch directory.
type Layout struct {
	Dir string
}

// NewLayout returns a layout rooted at dir, or at the platform temp dir when dir is empty.
func NewLayout(dir string) Layout {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}
	return Layout{Dir: dir}
}

// Scoped returns a layout nested under a per-request subdirectory.
func (l Layout) Scoped(token string) Layout {
	token = strings.TrimSpace(token)
	if token == "" {
		return l
	}
	return Layout{Dir: filepath.Join(l.Dir, token)}
}

// Ensure creates the layout directory if needed.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	return nil
}

// Paths returns message_<fingerprint>_<index>.{mp3,wav,json}.
func (l Layout) Paths(fingerprint string, index int) Paths {
	base := filepath.Join(l.Dir, fmt.Sprintf("message_%s_%d", fingerprint, index))
	return Paths{
		Audio:  base + ".mp3",
		Wave:   base + ".wav",
		Timing: base + ".json",
	}
}
