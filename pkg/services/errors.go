package services

import (
	"errors"

	"github.com/recflow/recflow/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrInvalidBlocks is returned when a block structure replacement is
	// rejected. The stored structure is left untouched.
	ErrInvalidBlocks = errors.New("invalid block structure")

	// ErrBlocksNotReady is returned when blocks are replaced before the
	// pipeline produced the artifacts they depend on.
	ErrBlocksNotReady = errors.New("workflow has no organized steps yet")
)

// IsNotFound reports whether err maps to a missing workflow.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsInvalidBlocks reports whether err is a rejected block replacement.
func IsInvalidBlocks(err error) bool {
	return errors.Is(err, ErrInvalidBlocks) || errors.Is(err, ErrBlocksNotReady)
}
