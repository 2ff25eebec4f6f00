// Package events defines the lifecycle notifications published while a
// workflow's pipeline runs.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/recflow/recflow/pkg/models"
)

// EventType identifies a pipeline lifecycle event.
type EventType string

// Topic carries all pipeline lifecycle events.
const Topic = "recflow.pipeline"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ProcessingStartedEvent   EventType = "pipeline.started"
	StageCompletedEvent      EventType = "pipeline.stage.completed"
	ProcessingCompletedEvent EventType = "pipeline.completed"
	ProcessingFailedEvent    EventType = "pipeline.failed"
)

// BaseEvent carries the fields shared by every pipeline event.
type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

// NewBaseEvent stamps a fresh event envelope.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// ProcessingStarted is published when the orchestrator enters processing.
type ProcessingStarted struct {
	BaseEvent

	VideoRef string `json:"video_ref"`
}

func (e ProcessingStarted) GetType() EventType {
	return ProcessingStartedEvent
}

// StageCompleted is published after each stage's artifact is persisted.
type StageCompleted struct {
	BaseEvent

	Stage models.Stage `json:"stage"`
}

func (e StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

// ProcessingCompleted is published when the whole pipeline succeeds.
type ProcessingCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e ProcessingCompleted) GetType() EventType {
	return ProcessingCompletedEvent
}

// ProcessingFailed is published when a fatal stage error aborts the run.
type ProcessingFailed struct {
	BaseEvent

	Stage models.Stage `json:"stage"`
	Error string       `json:"error"`
}

func (e ProcessingFailed) GetType() EventType {
	return ProcessingFailedEvent
}
