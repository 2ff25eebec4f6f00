// Package file provides a file-backed implementation of the workflow store.
// Each workflow record is one JSON file under <root>/workflows.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/persistence"
)

const workflowFilePerm = 0o600

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

// NewPersistence creates a file store rooted at the given directory. A
// leading file:// scheme is stripped so database-url style configuration
// works unchanged.
func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

func (p *Persistence) workflowsDir() string {
	return filepath.Join(p.root, "workflows")
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.workflowsDir(), id+".json")
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	entries, err := fs.Glob(os.DirFS(p.workflowsDir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		id := strings.TrimSuffix(entry, ".json")

		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	payload, err := os.ReadFile(p.workflowPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(payload, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidWorkflow, err))
	}

	err := os.MkdirAll(p.workflowsDir(), 0o750)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	payload, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = os.WriteFile(p.workflowPath(workflow.ID), payload, workflowFilePerm)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	err := os.Remove(p.workflowPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
