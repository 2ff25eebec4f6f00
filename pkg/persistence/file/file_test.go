package file

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
		Title:        "Weekly report recording",
		Status:       models.WorkflowStatusPending,
		CurrentStage: models.StageNone,
		VideoRef:     "/videos/" + id + ".mp4",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPersistence_SaveGetRoundTrip(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := testWorkflow("wf-1")
	workflow.RawExtraction = &models.RawExtraction{
		Events: []models.TranscriptEvent{
			{Time: 0, Screen: "Excel open on Q3 sheet", Action: "selects cell range", Narration: "copying the totals"},
		},
	}

	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	loaded, err := store.WorkflowByID(t.Context(), "wf-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.RawExtraction)
	require.Len(t, loaded.RawExtraction.Events, 1)
	assert.Equal(t, "selects cell range", loaded.RawExtraction.Events[0].Action)
}

func TestPersistence_GetUnknownID(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.WorkflowByID(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_StripsFileScheme(t *testing.T) {
	dir := t.TempDir()
	store := NewPersistence("file://" + dir)

	require.NoError(t, store.SaveWorkflow(t.Context(), testWorkflow("wf-scheme")))

	_, err := store.WorkflowByID(t.Context(), "wf-scheme")
	assert.NoError(t, err)
}

func TestPersistence_ListEmptyRoot(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestPersistence_Delete(t *testing.T) {
	store := NewPersistence(t.TempDir())

	require.NoError(t, store.SaveWorkflow(t.Context(), testWorkflow("wf-del")))
	require.NoError(t, store.DeleteWorkflow(t.Context(), "wf-del"))

	err := store.DeleteWorkflow(t.Context(), "wf-del")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_RejectsArtifactOrderViolation(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := testWorkflow("wf-bad")
	workflow.BlockStructure = &models.BlockStructure{}

	err := store.SaveWorkflow(t.Context(), workflow)
	assert.True(t, persistence.IsInvalidWorkflow(err))
}
