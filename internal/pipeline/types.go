package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ent0n29/avatarchat/internal/artifact"
	"github.com/ent0n29/avatarchat/internal/lipsync"
	"github.com/ent0n29/avatarchat/internal/llm"
	"github.com/ent0n29/avatarchat/internal/reply"
	"github.com/ent0n29/avatarchat/internal/tts"
)

// Stage is a step of the per-request state machine.
type Stage string

const (
	StageReceived       Stage = "received"
	StageParsed         Stage = "parsed"
	StageSynthesizing   Stage = "synthesizing"
	StageWaitingReady   Stage = "waiting_ready"
	StageExtractingSync Stage = "extracting_sync"
	StagePackaging      Stage = "packaging"
	StageAssembled      Stage = "assembled"
	StageResponded      Stage = "responded"
)

// FailureKind is the terminal state a failed request ended in.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureModel        FailureKind = "model_failed"
	FailureParse        FailureKind = "parse_failed"
	FailureSynthesis    FailureKind = "synthesis_failed"
	FailureLipSync      FailureKind = "lipsync_failed"
	FailureArtifactRead FailureKind = "artifact_read_failed"
	FailureCanceled     FailureKind = "canceled"
	FailureInternal     FailureKind = "internal"
)

// Classify maps a pipeline error to its terminal failure state.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.Is(err, reply.ErrMalformedReply):
		return FailureParse
	case errors.Is(err, tts.ErrSynthesisFailed):
		return FailureSynthesis
	case errors.Is(err, artifact.ErrArtifactTimeout):
		// A readiness wait outside a synthesis attempt still means audio never landed.
		return FailureSynthesis
	case errors.Is(err, lipsync.ErrLipSyncFailed):
		return FailureLipSync
	case errors.Is(err, artifact.ErrArtifactRead):
		return FailureArtifactRead
	case errors.Is(err, llm.ErrModel):
		return FailureModel
	default:
		return FailureInternal
	}
}

// RequestContext identifies one request's artifact namespace.
type RequestContext struct {
	Fingerprint  string
	SegmentCount int
	RequestID    string
}

// Response is the all-or-nothing result of a chat request.
type Response struct {
	Messages []reply.Segment `json:"messages"`
}

// MarshalJSON always encodes messages as a list, never null.
func (r Response) MarshalJSON() ([]byte, error) {
	msgs := r.Messages
	if msgs == nil {
		msgs = []reply.Segment{}
	}
	return json.Marshal(struct {
		Messages []reply.Segment `json:"messages"`
	}{Messages: msgs})
}

func emptyResponse() Response {
	return Response{Messages: []reply.Segment{}}
}

// Synthesizer renders a segment's text to an audio file, retries included.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, destPath string) error
}

// ReadyWaiter blocks until an artifact is observable.
type ReadyWaiter interface {
	WaitFor(ctx context.Context, path string) error
}

// Extractor writes the timing track for a segment and returns its path.
type Extractor interface {
	Extract(ctx context.Context, paths artifact.Paths) (string, error)
}
