// Package services implements the application services behind the HTTP
// surface: workflow registration and editing, and asynchronous pipeline
// launch.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/persistence"
)

type Workflow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest registers an uploaded recording for analysis.
type CreateWorkflowRequest struct {
	Title    string `validate:"required"`
	VideoRef string `validate:"required"`
}

// Create registers a new workflow in pending state. Nothing is processed
// until StartProcessing is called.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	err := w.validator.Struct(req)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:           uuid.New().String(),
		Title:        req.Title,
		Status:       models.WorkflowStatusPending,
		CurrentStage: models.StageNone,
		VideoRef:     req.VideoRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = w.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, ErrWorkflowNotFound
		}

		return nil, err
	}

	return workflow, nil
}

// List retrieves all workflows, newest first.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// StatusResponse is the progress view returned by status polling.
type StatusResponse struct {
	Status                 models.WorkflowStatus `json:"status"`
	CurrentStage           models.Stage          `json:"current_stage"`
	Progress               models.Progress       `json:"progress"`
	EstimatedTimeRemaining int                   `json:"estimated_time_remaining"`
	Error                  string                `json:"error,omitempty"`
}

// Status derives the progress view for a workflow.
func (w *Workflow) Status(ctx context.Context, id string) (*StatusResponse, error) {
	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	progress := models.ComputeProgress(workflow)

	return &StatusResponse{
		Status:                 workflow.Status,
		CurrentStage:           workflow.CurrentStage,
		Progress:               progress,
		EstimatedTimeRemaining: progress.EstimatedSecondsRemaining(),
		Error:                  workflow.Error,
	}, nil
}

// UpdateBlocks replaces a workflow's block structure wholesale after
// validation. Unlike pipeline output, user edits are rejected rather than
// repaired: an invalid enum, a duplicate block id or a dangling connection
// fails the whole update and nothing is stored. Earlier artifacts are never
// touched.
func (w *Workflow) UpdateBlocks(ctx context.Context, id string, structure *models.BlockStructure) (*models.Workflow, error) {
	existing, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.OrganizedWorkflow == nil {
		return nil, ErrBlocksNotReady
	}

	err = w.validateBlocks(structure)
	if err != nil {
		return nil, err
	}

	existing.BlockStructure = structure
	existing.UpdatedAt = time.Now().UTC()

	err = w.persistence.SaveWorkflow(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update blocks: %w", err)
	}

	return existing, nil
}

func (w *Workflow) validateBlocks(structure *models.BlockStructure) error {
	if structure == nil {
		return fmt.Errorf("%w: missing structure", ErrInvalidBlocks)
	}

	ids := make(map[string]struct{}, len(structure.Blocks))

	for _, block := range structure.Blocks {
		err := w.validator.Struct(block)
		if err != nil {
			return fmt.Errorf("%w: block %q: %s", ErrInvalidBlocks, block.ID, err)
		}

		if !block.Intent.IsValid() {
			return fmt.Errorf("%w: block %q has unknown intent %q", ErrInvalidBlocks, block.ID, block.Intent)
		}

		if _, dup := ids[block.ID]; dup {
			return fmt.Errorf("%w: duplicate block id %q", ErrInvalidBlocks, block.ID)
		}

		ids[block.ID] = struct{}{}
	}

	for _, source := range structure.Sources {
		err := w.validator.Struct(source)
		if err != nil {
			return fmt.Errorf("%w: source %q: %s", ErrInvalidBlocks, source.ID, err)
		}

		if !source.Type.IsValid() {
			return fmt.Errorf("%w: source %q has unknown type %q", ErrInvalidBlocks, source.ID, source.Type)
		}

		if source.UpdateRules != "" && !source.UpdateRules.IsValid() {
			return fmt.Errorf("%w: source %q has unknown update rules %q", ErrInvalidBlocks, source.ID, source.UpdateRules)
		}
	}

	for _, conn := range structure.Connections {
		err := w.validator.Struct(conn)
		if err != nil {
			return fmt.Errorf("%w: connection %s->%s: %s", ErrInvalidBlocks, conn.SourceBlockID, conn.TargetBlockID, err)
		}

		if _, ok := ids[conn.SourceBlockID]; !ok {
			return fmt.Errorf("%w: connection references unknown block %q", ErrInvalidBlocks, conn.SourceBlockID)
		}

		if _, ok := ids[conn.TargetBlockID]; !ok {
			return fmt.Errorf("%w: connection references unknown block %q", ErrInvalidBlocks, conn.TargetBlockID)
		}

		if conn.UpdateRules != "" && !conn.UpdateRules.IsValid() {
			return fmt.Errorf("%w: connection %s->%s has unknown update rules %q", ErrInvalidBlocks, conn.SourceBlockID, conn.TargetBlockID, conn.UpdateRules)
		}
	}

	return nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	_, err := w.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	err = w.persistence.DeleteWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}
