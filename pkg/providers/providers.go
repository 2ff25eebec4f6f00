// Package providers defines the ports to the external AI models the pipeline
// depends on, plus OpenAI-backed implementations. Each call is opaque and
// fallible, with no ordering guarantees between calls; callers own timeouts
// via context.
package providers

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the backing model returned no usable text.
var ErrEmptyResponse = errors.New("provider returned empty response")

// Describer converts image bytes to a natural-language scene description.
type Describer interface {
	DescribeImage(ctx context.Context, image []byte) (string, error)
}

// Transcriber converts extracted audio to plain narration text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Generator runs a single text-generation call against a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
