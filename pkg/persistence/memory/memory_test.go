package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/persistence"
)

func testWorkflow(id string) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:           id,
		Title:        "Invoice processing recording",
		Status:       models.WorkflowStatusPending,
		CurrentStage: models.StageNone,
		VideoRef:     "blob://uploads/" + id + ".mp4",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPersistence_SaveAndGet(t *testing.T) {
	store := NewPersistence()

	workflow := testWorkflow("wf-1")
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	loaded, err := store.WorkflowByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.Title, loaded.Title)
	assert.Equal(t, models.WorkflowStatusPending, loaded.Status)
}

func TestPersistence_GetUnknownID(t *testing.T) {
	store := NewPersistence()

	_, err := store.WorkflowByID(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_ReturnsCopies(t *testing.T) {
	store := NewPersistence()

	workflow := testWorkflow("wf-copy")
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	first, err := store.WorkflowByID(t.Context(), "wf-copy")
	require.NoError(t, err)

	// Mutating a returned record must not affect the stored one.
	first.Title = "mutated"
	first.RawExtraction = &models.RawExtraction{}

	second, err := store.WorkflowByID(t.Context(), "wf-copy")
	require.NoError(t, err)
	assert.Equal(t, "Invoice processing recording", second.Title)
	assert.Nil(t, second.RawExtraction)
}

func TestPersistence_RejectsArtifactOrderViolation(t *testing.T) {
	store := NewPersistence()

	workflow := testWorkflow("wf-bad")
	workflow.OrganizedWorkflow = &models.OrganizedWorkflow{}

	err := store.SaveWorkflow(t.Context(), workflow)
	assert.True(t, persistence.IsInvalidWorkflow(err))
}

func TestPersistence_ListSortedByCreation(t *testing.T) {
	store := NewPersistence()

	older := testWorkflow("wf-old")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testWorkflow("wf-new")

	require.NoError(t, store.SaveWorkflow(t.Context(), older))
	require.NoError(t, store.SaveWorkflow(t.Context(), newer))

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "wf-new", workflows[0].ID)
	assert.Equal(t, "wf-old", workflows[1].ID)
}

func TestPersistence_Delete(t *testing.T) {
	store := NewPersistence()

	require.NoError(t, store.SaveWorkflow(t.Context(), testWorkflow("wf-del")))
	require.NoError(t, store.DeleteWorkflow(t.Context(), "wf-del"))

	_, err := store.WorkflowByID(t.Context(), "wf-del")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = store.DeleteWorkflow(t.Context(), "wf-del")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
