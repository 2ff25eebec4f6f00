package cmd

import (
	"context"
	"log/slog"

	"github.com/recflow/recflow/pkg/eventbus"
	"github.com/recflow/recflow/pkg/events"
)

// NewEventBus creates the in-process pipeline event bus.
func NewEventBus(logger *slog.Logger) eventbus.EventBus {
	return eventbus.NewInProcessEventBus(logger)
}

// RegisterLoggingHandlers subscribes a handler per lifecycle event that logs
// pipeline activity, then starts consumption.
func RegisterLoggingHandlers(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	err := bus.Handle(events.ProcessingStartedEvent, func(_ context.Context, event any) error {
		if e, ok := event.(*events.ProcessingStarted); ok {
			logger.Info("Pipeline started", "workflow_id", e.WorkflowID, "video_ref", e.VideoRef)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.StageCompletedEvent, func(_ context.Context, event any) error {
		if e, ok := event.(*events.StageCompleted); ok {
			logger.Info("Pipeline stage completed", "workflow_id", e.WorkflowID, "stage", e.Stage)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.ProcessingCompletedEvent, func(_ context.Context, event any) error {
		if e, ok := event.(*events.ProcessingCompleted); ok {
			logger.Info("Pipeline completed", "workflow_id", e.WorkflowID, "duration", e.Duration)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.ProcessingFailedEvent, func(_ context.Context, event any) error {
		if e, ok := event.(*events.ProcessingFailed); ok {
			logger.Error("Pipeline failed", "workflow_id", e.WorkflowID, "stage", e.Stage, "error", e.Error)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
