package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Mock echoes the user message back as a single talking segment.
type Mock struct {
	// Reply, when set, is returned verbatim.
	Reply string
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, _ string, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	text := strings.TrimSpace(user)
	if text == "" {
		text = "I am listening."
	}
	out, err := json.Marshal([]map[string]string{{
		"text":             "You said: " + text,
		"facialExpression": "smile",
		"animation":        "Talking_1",
	}})
	if err != nil {
		return "", wrapErr(m.Name(), err)
	}
	return string(out), nil
}
