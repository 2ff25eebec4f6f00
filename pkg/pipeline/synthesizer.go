// Package pipeline implements the staged analysis of a screen recording: frame
// and audio extraction, transcript synthesis, step organization, and block
// graph generation, coordinated by the Orchestrator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/providers"
	"github.com/recflow/recflow/pkg/structgen"
)

// FrameDescription is the AI description of one sampled frame, in
// chronological order.
type FrameDescription struct {
	Index       int     `json:"index"`
	TimeSeconds float64 `json:"time_seconds"`
	Description string  `json:"description"`
}

// Synthesizer fuses per-frame descriptions and narration into the raw
// chronological transcript.
type Synthesizer struct {
	generator providers.Generator
	logger    *slog.Logger
}

func NewSynthesizer(generator providers.Generator, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{generator: generator, logger: logger}
}

const synthesisContract = `Respond with a single JSON object and nothing else:
{"events": [{"time": <seconds from start>, "screen": "<what is on screen>", "action": "<what the user does>", "narration": "<what the user says about it, or empty>"}]}
Events must be in chronological order.`

// Synthesize runs one generation call over the joined visual and audio
// evidence. The visual record is authoritative for what happened; narration
// only adds intent and context and never overrides an observed action. When
// narration is absent the model is told to paraphrase each event's visual
// description into its narration field instead of leaving it empty. An
// unparsable or empty reply is fatal for the stage.
func (s *Synthesizer) Synthesize(ctx context.Context, frames []FrameDescription, narration string) (*models.RawExtraction, error) {
	prompt := s.buildPrompt(frames, narration)

	output, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("transcript synthesis failed: %w", err)
	}

	var raw models.RawExtraction

	err = structgen.Decode(output, &raw)
	if err != nil {
		return nil, err
	}

	if raw.IsEmpty() {
		return nil, errors.New("transcript synthesis produced no events")
	}

	s.logger.Info("Synthesized raw transcript", "events", len(raw.Events))

	return &raw, nil
}

func (s *Synthesizer) buildPrompt(frames []FrameDescription, narration string) string {
	var b strings.Builder

	b.WriteString("You are reconstructing a recorded on-screen workflow.\n\n")
	b.WriteString("Frame-by-frame visual record (authoritative — describe only actions visible here):\n")

	for _, frame := range frames {
		fmt.Fprintf(&b, "[t=%.1fs] %s\n", frame.TimeSeconds, frame.Description)
	}

	b.WriteString("\nSpoken narration (elaborates on intent; it must never override or add actions not visible above):\n")

	if strings.TrimSpace(narration) == "" {
		b.WriteString("(no narration available: fill each event's narration with a brief paraphrase of its visual description)\n")
	} else {
		b.WriteString(narration + "\n")
	}

	b.WriteString("\nMerge both records into timestamped workflow events.\n")
	b.WriteString(synthesisContract)

	return b.String()
}
