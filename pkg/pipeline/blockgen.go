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

// BlockGenerator converts the organized steps into the editable block graph.
type BlockGenerator struct {
	generator providers.Generator
	logger    *slog.Logger
}

func NewBlockGenerator(generator providers.Generator, logger *slog.Logger) *BlockGenerator {
	return &BlockGenerator{generator: generator, logger: logger}
}

const blockContract = `Respond with a single JSON object and nothing else:
{"blocks": [{"id": "<unique>", "intent": "<intent>", "title": "...", "description": "...", "properties": {}, "application_name": "..."}],
 "sources": [{"id": "<unique>", "type": "<type>", "location": "...", "update_rules": "<rules>"}],
 "connections": [{"source_block_id": "<block id>", "target_block_id": "<block id>", "data_type": "...", "update_rules": "<rules>"}]}
intent must be one of: edit, view, search, generate, input, extract, transfer, decision, communicate, unknown.
type must be one of: file, web, api, manual.
update_rules must be one of: onSourceChange, manual, scheduled, onEvent.
Every connection endpoint must reference an existing block id.`

// Generate runs one generation call over the organized workflow and returns
// the normalized block graph. The reply is schema-checked before decoding and
// coercion-repaired after: out-of-domain enum values, duplicate block ids and
// dangling connections never reach the persisted artifact. Unparsable or
// shape-invalid output is fatal.
func (g *BlockGenerator) Generate(ctx context.Context, organized *models.OrganizedWorkflow) (*models.BlockStructure, error) {
	steps, err := json.Marshal(organized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode organized workflow: %w", err)
	}

	var b strings.Builder

	b.WriteString("Convert the organized workflow below into a directed graph of action blocks, ")
	b.WriteString("external data sources, and data-flow connections between blocks.\n\n")
	b.Write(steps)
	b.WriteString("\n\n")
	b.WriteString(blockContract)

	output, err := g.generator.Generate(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("block generation failed: %w", err)
	}

	block, err := structgen.ExtractStructuredBlock(output)
	if err != nil {
		return nil, err
	}

	err = structgen.ValidateBlockStructureJSON(block)
	if err != nil {
		return nil, err
	}

	var structure models.BlockStructure

	err = json.Unmarshal([]byte(block), &structure)
	if err != nil {
		return nil, &structgen.ParseError{Reason: "block structure does not match expected shape", Output: output, Err: err}
	}

	report := structure.Normalize()
	if report.Dirty() {
		g.logger.Warn("Repaired generated block structure",
			"coerced_intents", report.CoercedIntents,
			"coerced_source_types", report.CoercedSourceTypes,
			"coerced_update_rules", report.CoercedUpdateRules,
			"dropped_connections", report.DroppedConnections,
			"dropped_duplicate_ids", report.DroppedDuplicateIDs,
		)
	}

	g.logger.Info("Generated block structure",
		"blocks", len(structure.Blocks),
		"sources", len(structure.Sources),
		"connections", len(structure.Connections),
	)

	return &structure, nil
}
