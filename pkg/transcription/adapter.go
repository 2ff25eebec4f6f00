// Package transcription wraps the speech-to-text provider with the staging
// and fail-soft semantics the pipeline needs: audio above the inline size
// threshold is staged into the blob store before transcription, staged
// objects are always cleaned up, and every failure degrades to an empty
// narration instead of aborting the run.
package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/recflow/recflow/pkg/blobstore"
	"github.com/recflow/recflow/pkg/providers"
)

// InlineSizeThreshold is the largest audio payload sent without staging.
// Backing services reject large inline bodies, so bigger extracts go through
// a staged blob first.
const InlineSizeThreshold = 24 << 20 // 24 MiB

const defaultTimeout = 2 * time.Minute

// Adapter turns an extracted audio file into narration text.
type Adapter struct {
	transcriber providers.Transcriber
	blobs       blobstore.Store
	logger      *slog.Logger
	timeout     time.Duration
}

// Option configures the adapter.
type Option func(*Adapter)

// WithTimeout bounds each transcription call.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = timeout
	}
}

// NewAdapter creates a transcription adapter.
func NewAdapter(transcriber providers.Transcriber, blobs blobstore.Store, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		transcriber: transcriber,
		blobs:       blobs,
		logger:      logger,
		timeout:     defaultTimeout,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Transcribe reads the audio file and returns its narration text. On any
// failure it returns an empty string and logs the cause; transcription is
// never fatal to the pipeline.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string) string {
	narration, err := a.transcribe(ctx, audioPath)
	if err != nil {
		a.logger.Warn("Transcription failed, continuing without narration", "error", err)

		return ""
	}

	return narration
}

func (a *Adapter) transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}

	if len(audio) == 0 {
		return "", fmt.Errorf("audio file %s is empty", audioPath)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if len(audio) <= InlineSizeThreshold {
		return a.transcriber.Transcribe(callCtx, audio)
	}

	return a.transcribeStaged(callCtx, audio)
}

// transcribeStaged stages the audio in the blob store for the duration of the
// call. The staged object is deleted on both success and failure paths.
func (a *Adapter) transcribeStaged(ctx context.Context, audio []byte) (string, error) {
	key := "staging/audio/" + uuid.New().String() + ".wav"

	err := a.blobs.Put(ctx, key, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to stage audio: %w", err)
	}

	defer func() {
		if deleteErr := a.blobs.Delete(context.WithoutCancel(ctx), key); deleteErr != nil {
			a.logger.Warn("Failed to delete staged audio", "key", key, "error", deleteErr)
		}
	}()

	reader, err := a.blobs.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read staged audio: %w", err)
	}

	staged, err := io.ReadAll(reader)
	if closeErr := reader.Close(); closeErr != nil {
		a.logger.Warn("Failed to close staged audio reader", "key", key, "error", closeErr)
	}

	if err != nil {
		return "", fmt.Errorf("failed to load staged audio: %w", err)
	}

	return a.transcriber.Transcribe(ctx, staged)
}
