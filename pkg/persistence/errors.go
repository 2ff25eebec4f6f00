// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrInvalidWorkflow indicates the workflow record violates a model invariant.
	ErrInvalidWorkflow = errors.New("invalid workflow record")
)

// WorkflowError wraps workflow-related storage errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsInvalidWorkflow checks if an error indicates a model invariant violation.
func IsInvalidWorkflow(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow)
}
