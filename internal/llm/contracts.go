package llm

import (
	"context"
	"errors"
)

// Completer sends one prompt to a JSON-constrained, low-temperature model and
// returns the raw message content.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Causes attached to an InferenceUnavailable error so callers can tell the
// operator what to do.
var (
	ErrBackendUnreachable = errors.New("inference backend unreachable")
	ErrModelNotFound      = errors.New("inference model not found")
	ErrInferenceTimeout   = errors.New("inference timed out")
)
