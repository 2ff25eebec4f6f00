// Package models defines the core domain models for recorded-workflow analysis.
package models

import (
	"errors"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"    // Registered, not yet processed
	WorkflowStatusProcessing WorkflowStatus = "processing" // Pipeline in flight
	WorkflowStatusCompleted  WorkflowStatus = "completed"  // All artifacts present
	WorkflowStatusFailed     WorkflowStatus = "failed"     // A fatal stage aborted the run
)

// Stage identifies the pipeline stage a workflow is currently in.
type Stage string

const (
	StageNone            Stage = "none"
	StageExtraction      Stage = "extraction"       // Frame/audio extraction + AI description
	StageTranscript      Stage = "transcript"       // Raw transcript synthesis
	StageOrganization    Stage = "organization"     // Step organization
	StageBlockGeneration Stage = "block_generation" // Block graph generation
	StageDone            Stage = "done"
)

// ErrArtifactOrder indicates staged artifacts are populated out of stage order.
var ErrArtifactOrder = errors.New("workflow artifacts populated out of stage order")

// Workflow is the unit of work: one uploaded screen recording and the staged
// artifacts derived from it. Artifacts are appended in strict stage order and
// earlier-stage artifacts are immutable once written; only BlockStructure may
// be replaced by user edits.
type Workflow struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"        validate:"required"`
	Status            WorkflowStatus     `json:"status"       validate:"required"`
	CurrentStage      Stage              `json:"current_stage"`
	VideoRef          string             `json:"video_ref"    validate:"required"`
	Error             string             `json:"error,omitempty"`
	RawExtraction     *RawExtraction     `json:"raw_extraction,omitempty"`
	OrganizedWorkflow *OrganizedWorkflow `json:"organized_workflow,omitempty"`
	BlockStructure    *BlockStructure    `json:"block_structure,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Validate checks the artifact ordering invariant: blockStructure implies
// organizedWorkflow implies rawExtraction.
func (w *Workflow) Validate() error {
	if w.BlockStructure != nil && w.OrganizedWorkflow == nil {
		return ErrArtifactOrder
	}

	if w.OrganizedWorkflow != nil && w.RawExtraction == nil {
		return ErrArtifactOrder
	}

	return nil
}

// IsTerminal reports whether the workflow reached a terminal status.
func (w *Workflow) IsTerminal() bool {
	return w.Status == WorkflowStatusCompleted || w.Status == WorkflowStatusFailed
}
