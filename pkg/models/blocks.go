package models

// BlockIntent classifies what a block does. Closed set; anything else is
// coerced to BlockIntentUnknown before persisting.
type BlockIntent string

const (
	BlockIntentEdit        BlockIntent = "edit"
	BlockIntentView        BlockIntent = "view"
	BlockIntentSearch      BlockIntent = "search"
	BlockIntentGenerate    BlockIntent = "generate"
	BlockIntentInput       BlockIntent = "input"
	BlockIntentExtract     BlockIntent = "extract"
	BlockIntentTransfer    BlockIntent = "transfer"
	BlockIntentDecision    BlockIntent = "decision"
	BlockIntentCommunicate BlockIntent = "communicate"
	BlockIntentUnknown     BlockIntent = "unknown"
)

// IsValid reports whether the intent is a member of the closed set.
func (i BlockIntent) IsValid() bool {
	switch i {
	case BlockIntentEdit, BlockIntentView, BlockIntentSearch, BlockIntentGenerate,
		BlockIntentInput, BlockIntentExtract, BlockIntentTransfer,
		BlockIntentDecision, BlockIntentCommunicate, BlockIntentUnknown:
		return true
	}

	return false
}

// SourceType classifies where a data source lives. Closed set; invalid values
// are coerced to SourceTypeFile.
type SourceType string

const (
	SourceTypeFile   SourceType = "file"
	SourceTypeWeb    SourceType = "web"
	SourceTypeAPI    SourceType = "api"
	SourceTypeManual SourceType = "manual"
)

func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeFile, SourceTypeWeb, SourceTypeAPI, SourceTypeManual:
		return true
	}

	return false
}

// UpdateRules describes when a source or connection refreshes. Closed set;
// invalid values are coerced to UpdateRulesManual.
type UpdateRules string

const (
	UpdateRulesOnSourceChange UpdateRules = "onSourceChange"
	UpdateRulesManual         UpdateRules = "manual"
	UpdateRulesScheduled      UpdateRules = "scheduled"
	UpdateRulesOnEvent        UpdateRules = "onEvent"
)

func (u UpdateRules) IsValid() bool {
	switch u {
	case UpdateRulesOnSourceChange, UpdateRulesManual, UpdateRulesScheduled, UpdateRulesOnEvent:
		return true
	}

	return false
}

// Block is one action node in the interactive graph.
type Block struct {
	ID              string         `json:"id"     validate:"required"`
	Intent          BlockIntent    `json:"intent" validate:"required"`
	Title           string         `json:"title"  validate:"required"`
	Description     string         `json:"description"`
	Properties      map[string]any `json:"properties,omitempty"`
	ApplicationName string         `json:"application_name,omitempty"`
}

// Source is an external data source feeding the graph.
type Source struct {
	ID          string      `json:"id"   validate:"required"`
	Type        SourceType  `json:"type" validate:"required"`
	Location    string      `json:"location"`
	UpdateRules UpdateRules `json:"update_rules"`
}

// Connection is a directed data-flow edge between two blocks. Both endpoints
// must reference existing Block.ID values; cycles are allowed, dangling
// references are not.
type Connection struct {
	SourceBlockID string      `json:"source_block_id" validate:"required"`
	TargetBlockID string      `json:"target_block_id" validate:"required"`
	DataType      string      `json:"data_type"`
	UpdateRules   UpdateRules `json:"update_rules"`
}

// BlockStructure is the third staged artifact: the editable directed graph of
// the recorded workflow.
type BlockStructure struct {
	Blocks      []Block      `json:"blocks"`
	Sources     []Source     `json:"sources"`
	Connections []Connection `json:"connections"`
}

// RepairReport records what Normalize had to fix in a generated structure.
type RepairReport struct {
	CoercedIntents      int `json:"coerced_intents"`
	CoercedSourceTypes  int `json:"coerced_source_types"`
	CoercedUpdateRules  int `json:"coerced_update_rules"`
	DroppedConnections  int `json:"dropped_connections"`
	DroppedDuplicateIDs int `json:"dropped_duplicate_ids"`
}

// Dirty reports whether any repair was applied.
func (r RepairReport) Dirty() bool {
	return r.CoercedIntents+r.CoercedSourceTypes+r.CoercedUpdateRules+
		r.DroppedConnections+r.DroppedDuplicateIDs > 0
}

// Normalize coerces out-of-domain enum values to their defaults, removes
// blocks with duplicate ids, and drops connections whose endpoints do not
// reference an existing block. The graph never persists an invalid enum value
// or a dangling reference. Returns a report of every repair applied.
func (b *BlockStructure) Normalize() RepairReport {
	var report RepairReport

	seen := make(map[string]struct{}, len(b.Blocks))
	blocks := b.Blocks[:0]

	for _, block := range b.Blocks {
		if _, dup := seen[block.ID]; dup {
			report.DroppedDuplicateIDs++

			continue
		}

		seen[block.ID] = struct{}{}

		if !block.Intent.IsValid() {
			block.Intent = BlockIntentUnknown
			report.CoercedIntents++
		}

		blocks = append(blocks, block)
	}

	b.Blocks = blocks

	for i := range b.Sources {
		if !b.Sources[i].Type.IsValid() {
			b.Sources[i].Type = SourceTypeFile
			report.CoercedSourceTypes++
		}

		if !b.Sources[i].UpdateRules.IsValid() {
			b.Sources[i].UpdateRules = UpdateRulesManual
			report.CoercedUpdateRules++
		}
	}

	connections := b.Connections[:0]

	for _, conn := range b.Connections {
		_, srcOK := seen[conn.SourceBlockID]
		_, dstOK := seen[conn.TargetBlockID]

		if !srcOK || !dstOK {
			report.DroppedConnections++

			continue
		}

		if !conn.UpdateRules.IsValid() {
			conn.UpdateRules = UpdateRulesManual
			report.CoercedUpdateRules++
		}

		connections = append(connections, conn)
	}

	b.Connections = connections

	return report
}
