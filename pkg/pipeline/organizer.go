package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/providers"
	"github.com/recflow/recflow/pkg/structgen"
)

// Organizer condenses the raw transcript into logical, ordered workflow steps.
type Organizer struct {
	generator providers.Generator
	logger    *slog.Logger
}

func NewOrganizer(generator providers.Generator, logger *slog.Logger) *Organizer {
	return &Organizer{generator: generator, logger: logger}
}

const organizationContract = `Respond with a single JSON object and nothing else:
{"steps": [{"number": <1-based>, "action": "...", "applications": ["..."], "primary_application": "...", "input": {"data": "...", "source": "..."}, "output": {"data": "...", "destination": "..."}, "considerations": ["..."]}],
 "patterns": ["..."], "conditional_logic": ["..."], "triggers": ["..."], "frequency": "..."}`

// Organize runs one generation call over the raw transcript, merging
// consecutive events into logical steps and inferring inputs, outputs and
// applications. What the transcript states literally always wins over
// inference. Step numbers from the model are not trusted; the result is
// renumbered densely after parsing. An unparsable reply is fatal.
func (o *Organizer) Organize(ctx context.Context, raw *models.RawExtraction) (*models.OrganizedWorkflow, error) {
	transcript, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw transcript: %w", err)
	}

	var b strings.Builder

	b.WriteString("Below is the raw chronological transcript of a recorded workflow.\n")
	b.WriteString("Merge consecutive events belonging to one logical action into a single step, ")
	b.WriteString("infer each step's inputs, outputs and applications, and surface workflow-level ")
	b.WriteString("patterns, conditional logic, triggers and frequency.\n")
	b.WriteString("When the transcript states something explicitly, use it verbatim; infer only where it is silent.\n\n")
	b.Write(transcript)
	b.WriteString("\n\n")
	b.WriteString(organizationContract)

	output, err := o.generator.Generate(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("step organization failed: %w", err)
	}

	var organized models.OrganizedWorkflow

	err = structgen.Decode(output, &organized)
	if err != nil {
		return nil, err
	}

	organized.Renumber()

	o.logger.Info("Organized workflow steps", "steps", len(organized.Steps))

	return &organized, nil
}
