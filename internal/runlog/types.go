package runlog

import (
	"context"
	"time"
)

// Record summarizes one chat request. Message text is never stored.
type Record struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	Fingerprint  string    `json:"fingerprint"`
	SegmentCount int       `json:"segment_count"`
	Outcome      string    `json:"outcome"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	Model        string    `json:"model,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists request records and lists the most recent ones first.
type Store interface {
	Save(ctx context.Context, record Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

const DefaultRecentLimit = 50
