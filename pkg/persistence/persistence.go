// Package persistence provides the storage abstraction for workflow records.
package persistence

import (
	"context"

	"github.com/recflow/recflow/pkg/models"
)

// Persistence is the record of truth for workflow lifecycle state and staged
// artifacts. Implementations must support independent per-id reads and writes
// without cross-contamination; per-record last-write-wins is sufficient given
// single-writer-per-workflow usage.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
