package llm

import (
	"context"
	"errors"
	"fmt"
)

// Model produces one completion for a system prompt and a user message.
type Model interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// ErrModel matches every error returned by a Model.
var ErrModel = errors.New("language model call failed")

type modelError struct {
	provider string
	err      error
}

func (e *modelError) Error() string { return fmt.Sprintf("%s: %v", e.provider, e.err) }

func (e *modelError) Unwrap() []error { return []error{ErrModel, e.err} }

func wrapErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &modelError{provider: provider, err: err}
}

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.6
)

// SystemPrompt fixes the persona and the reply contract the parser expects.
const SystemPrompt = `You are a virtual girlfriend.
You will always reply with a JSON array of messages. With a maximum of 3 messages.
Each message has a text, facialExpression, and animation property.
The different facial expressions are: smile, sad, angry, surprised, funnyFace, and default.
The different animations are: Talking_0, Talking_1, Talking_2, Crying, Laughing, Rumba, Idle, Terrified, and Angry.`

func temperatureOrDefault(t *float64) float64 {
	if t == nil {
		return DefaultTemperature
	}
	return *t
}
