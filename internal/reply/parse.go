package reply

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedReply matches every parse failure.
var ErrMalformedReply = errors.New("malformed reply")

// MalformedReplyError describes model output that is not a segment list.
type MalformedReplyError struct {
	Reason string
	Err    error
}

func (e *MalformedReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed reply: %s: %v", e.Reason, e.Err)
	}
	return "malformed reply: " + e.Reason
}

func (e *MalformedReplyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedReply, e.Err}
	}
	return []error{ErrMalformedReply}
}

const (
	jsonFence  = "```json"
	plainFence = "```"
)

// StripFence removes a leading ```json (or bare ```) marker and a trailing ``` marker.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, jsonFence):
		s = s[len(jsonFence):]
	case strings.HasPrefix(s, plainFence):
		s = s[len(plainFence):]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, plainFence)
	return strings.TrimSpace(s)
}

// envelope is the object form of a reply: {"messages": [...]}.
type envelope struct {
	Messages *json.RawMessage `json:"messages"`
}

// Parse turns raw model output into ordered segments. The payload may be a bare
// array of segments or an object whose "messages" field holds that array, with or
// without markdown fencing around it.
func Parse(raw string) ([]Segment, error) {
	body := []byte(StripFence(raw))
	if len(body) == 0 {
		return nil, &MalformedReplyError{Reason: "empty model output"}
	}

	var list json.RawMessage
	switch body[0] {
	case '[':
		list = body
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, &MalformedReplyError{Reason: "decode envelope", Err: err}
		}
		if env.Messages == nil {
			return nil, &MalformedReplyError{Reason: `object without "messages" field`}
		}
		list = *env.Messages
	default:
		if !json.Valid(body) {
			return nil, &MalformedReplyError{Reason: "output is not JSON"}
		}
		return nil, &MalformedReplyError{Reason: "output is neither a list nor an envelope"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, &MalformedReplyError{Reason: "decode segment list", Err: err}
	}
	if items == nil {
		return nil, &MalformedReplyError{Reason: "segment list is null"}
	}

	segments := make([]Segment, 0, len(items))
	for i, item := range items {
		seg, err := decodeSegment(item)
		if err != nil {
			return nil, &MalformedReplyError{Reason: fmt.Sprintf("segment %d", i), Err: err}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func decodeSegment(item json.RawMessage) (Segment, error) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 || item[0] != '{' {
		return Segment{}, errors.New("not an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return Segment{}, err
	}
	text, ok := fields["text"]
	if !ok {
		return Segment{}, errors.New(`missing "text"`)
	}
	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		return Segment{}, fmt.Errorf(`"text" is not a string: %w`, err)
	}

	var seg Segment
	if err := json.Unmarshal(item, &seg); err != nil {
		return Segment{}, err
	}
	// Assets are produced by the pipeline, never taken from the model.
	seg.Audio = ""
	seg.Lipsync = nil
	return seg, nil
}

// ClampSegments enforces the maximum segment count. With reject set, an
// overflowing list is a MalformedReplyError; otherwise it is truncated and the
// number of dropped segments is returned.
func ClampSegments(segments []Segment, max int, reject bool) ([]Segment, int, error) {
	if max <= 0 || len(segments) <= max {
		return segments, 0, nil
	}
	if reject {
		return nil, 0, &MalformedReplyError{Reason: fmt.Sprintf("%d segments exceeds limit of %d", len(segments), max)}
	}
	return segments[:max], len(segments) - max, nil
}
