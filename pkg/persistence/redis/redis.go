// Package redis provides a Redis-backed workflow store. Each record is a JSON
// blob under one key, with a set indexing all workflow ids.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/persistence"
)

const (
	workflowKeyPrefix = "recflow:workflow:"
	workflowIndexKey  = "recflow:workflows"
)

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client *goredis.Client
}

// NewPersistence parses a redis:// URL and connects.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

func workflowKey(id string) string {
	return workflowKeyPrefix + id
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := p.client.SMembers(ctx, workflowIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow ids: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			// Index entries can outlive their record when a delete is
			// interrupted between the two writes.
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	payload, err := p.client.Get(ctx, workflowKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
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

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidWorkflow, err))
	}

	payload, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, workflowKey(workflow.ID), payload, 0)
	pipe.SAdd(ctx, workflowIndexKey, workflow.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	deleted, err := p.client.Del(ctx, workflowKey(id)).Result()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if deleted == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	err = p.client.SRem(ctx, workflowIndexKey, id).Err()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
