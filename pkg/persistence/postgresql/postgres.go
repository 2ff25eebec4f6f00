// Package postgresql provides a PostgreSQL-backed workflow store. Staged
// artifacts are stored as JSONB columns so partial pipeline state is
// queryable without joins.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/persistence"
	"github.com/recflow/recflow/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects, pings, and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				status TEXT NOT NULL,
				current_stage TEXT NOT NULL DEFAULT 'none',
				video_ref TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				raw_extraction JSONB,
				organized_workflow JSONB,
				block_structure JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status);
		`,
	}
}

const workflowColumns = `
	id
  , title
  , status
  , current_stage
  , video_ref
  , error
  , raw_extraction
  , organized_workflow
  , block_structure
  , created_at
  , updated_at
`

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID,
			fmt.Errorf("%w: %w", persistence.ErrInvalidWorkflow, err))
	}

	rawExtraction, err := marshalArtifact(workflow.RawExtraction)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	organized, err := marshalArtifact(workflow.OrganizedWorkflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	blockStructure, err := marshalArtifact(workflow.BlockStructure)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflows (
			id, title, status, current_stage, video_ref, error,
			raw_extraction, organized_workflow, block_structure,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			current_stage = EXCLUDED.current_stage,
			video_ref = EXCLUDED.video_ref,
			error = EXCLUDED.error,
			raw_extraction = EXCLUDED.raw_extraction,
			organized_workflow = EXCLUDED.organized_workflow,
			block_structure = EXCLUDED.block_structure,
			updated_at = EXCLUDED.updated_at
	`,
		workflow.ID, workflow.Title, workflow.Status, workflow.CurrentStage,
		workflow.VideoRef, workflow.Error,
		rawExtraction, organized, blockStructure,
		workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow       models.Workflow
		rawExtraction  []byte
		organized      []byte
		blockStructure []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Title, &workflow.Status, &workflow.CurrentStage,
		&workflow.VideoRef, &workflow.Error,
		&rawExtraction, &organized, &blockStructure,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = unmarshalArtifact(rawExtraction, &workflow.RawExtraction)
	if err != nil {
		return nil, err
	}

	err = unmarshalArtifact(organized, &workflow.OrganizedWorkflow)
	if err != nil {
		return nil, err
	}

	err = unmarshalArtifact(blockStructure, &workflow.BlockStructure)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// marshalArtifact maps a nil artifact to SQL NULL instead of the JSON literal
// "null" so artifact-presence queries stay honest.
func marshalArtifact(artifact any) (any, error) {
	switch v := artifact.(type) {
	case *models.RawExtraction:
		if v == nil {
			return nil, nil
		}
	case *models.OrganizedWorkflow:
		if v == nil {
			return nil, nil
		}
	case *models.BlockStructure:
		if v == nil {
			return nil, nil
		}
	}

	payload, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact: %w", err)
	}

	return payload, nil
}

func unmarshalArtifact[T any](payload []byte, target **T) error {
	if len(payload) == 0 {
		return nil
	}

	var value T

	err := json.Unmarshal(payload, &value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal artifact: %w", err)
	}

	*target = &value

	return nil
}
