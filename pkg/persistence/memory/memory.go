// Package memory provides the in-memory reference implementation of the
// workflow store. Records survive only for the life of the process.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/persistence"
)

// Persistence keeps workflow records in a map guarded by a RWMutex. Records
// are deep-copied on both read and write so that a caller mutating a returned
// workflow cannot corrupt the stored one.
type Persistence struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

// NewPersistence creates an empty in-memory workflow store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows: make(map[string]*models.Workflow),
	}
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(p.workflows))

	for _, workflow := range p.workflows {
		copied, err := cloneWorkflow(workflow)
		if err != nil {
			return nil, persistence.NewWorkflowError("List", workflow.ID, err)
		}

		workflows = append(workflows, copied)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow, ok := p.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	copied, err := cloneWorkflow(workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return copied, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidWorkflow, err))
	}

	copied, err := cloneWorkflow(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.workflows[workflow.ID] = copied

	return nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.workflows[id]; !ok {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(p.workflows, id)

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// cloneWorkflow deep-copies a record through JSON. Workflow artifacts are
// plain data, so a marshal round-trip is a complete copy.
func cloneWorkflow(workflow *models.Workflow) (*models.Workflow, error) {
	payload, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to clone workflow: %w", err)
	}

	var copied models.Workflow

	err = json.Unmarshal(payload, &copied)
	if err != nil {
		return nil, fmt.Errorf("failed to clone workflow: %w", err)
	}

	return &copied, nil
}
