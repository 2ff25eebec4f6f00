package services

import (
	"context"
	"log/slog"
)

// PipelineRunner drives one workflow through the analysis pipeline; satisfied
// by *pipeline.Orchestrator.
type PipelineRunner interface {
	Process(ctx context.Context, workflowID string) error
}

// Processing launches pipeline runs asynchronously. Concurrent workflows are
// independent; one failing run never affects another.
type Processing struct {
	workflows *Workflow
	runner    PipelineRunner
	logger    *slog.Logger
}

// NewProcessing creates a processing service.
func NewProcessing(workflows *Workflow, runner PipelineRunner, logger *slog.Logger) *Processing {
	return &Processing{
		workflows: workflows,
		runner:    runner,
		logger:    logger,
	}
}

// StartProcessing verifies the workflow exists and launches the pipeline in
// the background, returning immediately. The run outlives the request that
// triggered it.
func (p *Processing) StartProcessing(ctx context.Context, workflowID string) error {
	_, err := p.workflows.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	runCtx := context.WithoutCancel(ctx)

	go func() {
		err := p.runner.Process(runCtx, workflowID)
		if err != nil {
			p.logger.Error("Pipeline run failed", "workflow_id", workflowID, "error", err)
		}
	}()

	return nil
}
