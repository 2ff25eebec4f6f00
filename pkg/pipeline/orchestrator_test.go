package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/recflow/recflow/pkg/blobstore"
	"github.com/recflow/recflow/pkg/blobstore/local"
	"github.com/recflow/recflow/pkg/events"
	"github.com/recflow/recflow/pkg/media"
	"github.com/recflow/recflow/pkg/mocks"
	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/otelhelper"
	"github.com/recflow/recflow/pkg/persistence/memory"
	"github.com/recflow/recflow/pkg/providers"
	"github.com/recflow/recflow/pkg/transcription"
)

var (
	_ MediaExtractor       = (*media.Extractor)(nil)
	_ NarrationTranscriber = (*transcription.Adapter)(nil)
)

const organizedStepsJSON = `{
	"steps": [
		{"number": 1, "action": "Open the weekly report", "applications": ["Mail"], "input": {"data": "report.xlsx", "source": "email attachment"}, "output": {"data": "open spreadsheet", "destination": "Excel"}},
		{"number": 2, "action": "Copy totals", "applications": ["Excel"], "input": {"data": "totals column", "source": "spreadsheet"}, "output": {"data": "totals", "destination": "clipboard"}}
	],
	"patterns": [], "conditional_logic": [], "triggers": [], "frequency": "weekly"
}`

const blockGraphJSON = `{
	"blocks": [
		{"id": "b1", "intent": "extract", "title": "Open weekly report"},
		{"id": "b2", "intent": "edit", "title": "Copy totals"}
	],
	"sources": [{"id": "s1", "type": "file", "location": "email attachment", "update_rules": "manual"}],
	"connections": [{"source_block_id": "b1", "target_block_id": "b2", "data_type": "totals", "update_rules": "manual"}]
}`

type fakeExtractor struct {
	validateErr error
	frameErr    error
	audioErr    error
	frameCount  int

	lastFrameDir string
	lastAudioDir string
}

func (f *fakeExtractor) Validate(_ string) error {
	return f.validateErr
}

func (f *fakeExtractor) ExtractFrames(_ context.Context, _ string, _ float64) (*media.FrameSet, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}

	dir, err := os.MkdirTemp("", "recflow-test-frames-")
	if err != nil {
		return nil, err
	}

	f.lastFrameDir = dir

	paths := make([]string, 0, f.frameCount)

	for i := range f.frameCount {
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.jpg", i+1))
		if err := os.WriteFile(path, []byte("jpeg"), 0o600); err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return media.NewFrameSet(paths, dir), nil
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, _ string) (*media.AudioFile, error) {
	if f.audioErr != nil {
		return nil, f.audioErr
	}

	dir, err := os.MkdirTemp("", "recflow-test-audio-")
	if err != nil {
		return nil, err
	}

	f.lastAudioDir = dir

	path := filepath.Join(dir, "narration.wav")
	if err := os.WriteFile(path, []byte("wav"), 0o600); err != nil {
		return nil, err
	}

	return media.NewAudioFile(path, dir), nil
}

type fakeTranscriber struct {
	narration string
	calls     int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) string {
	f.calls++

	return f.narration
}

type orchestratorFixture struct {
	store       *memory.Persistence
	blobs       *local.Store
	extractor   *fakeExtractor
	provider    *providers.Mock
	transcriber *fakeTranscriber
	orch        *Orchestrator
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	blobs, err := local.NewStore(t.TempDir())
	require.NoError(t, err)

	logger := slog.Default()
	store := memory.NewPersistence()
	extractor := &fakeExtractor{frameCount: 3}
	provider := providers.NewMock()
	transcriber := &fakeTranscriber{narration: "First I open the weekly report"}

	orch := NewOrchestrator(Config{
		Persistence: store,
		Blobs:       blobs,
		Extractor:   extractor,
		Describer:   provider,
		Transcriber: transcriber,
		Synthesizer: NewSynthesizer(provider, logger),
		Organizer:   NewOrganizer(provider, logger),
		BlockGen:    NewBlockGenerator(provider, logger),
		Logger:      logger,
		FrameRate:   1.0,
	})

	return &orchestratorFixture{
		store:       store,
		blobs:       blobs,
		extractor:   extractor,
		provider:    provider,
		transcriber: transcriber,
		orch:        orch,
	}
}

func (f *orchestratorFixture) seedWorkflow(t *testing.T, videoRef string) *models.Workflow {
	t.Helper()

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Title:     "Weekly report handling",
		Status:    models.WorkflowStatusPending,
		VideoRef:  videoRef,
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, f.store.SaveWorkflow(context.Background(), workflow))

	return workflow
}

func testVideo(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "recording.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4"), 0o600))

	return path
}

func TestOrchestrator_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("narrated recording produces all artifacts", func(t *testing.T) {
		f := newFixture(t)
		f.provider.DescribeReplies = []string{"inbox with attachment", "spreadsheet opens", "totals selected"}
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, blockGraphJSON}

		workflow := f.seedWorkflow(t, testVideo(t))

		require.NoError(t, f.orch.Process(ctx, workflow.ID))

		stored, err := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)

		assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
		assert.Equal(t, models.StageDone, stored.CurrentStage)
		assert.Empty(t, stored.Error)

		require.NotNil(t, stored.RawExtraction)
		require.Len(t, stored.RawExtraction.Events, 2)
		assert.LessOrEqual(t, stored.RawExtraction.Events[0].Time, stored.RawExtraction.Events[1].Time)

		require.NotNil(t, stored.OrganizedWorkflow)
		assert.NoError(t, stored.OrganizedWorkflow.Validate())

		require.NotNil(t, stored.BlockStructure)
		assert.Len(t, stored.BlockStructure.Blocks, 2)

		// Every frame was described, in chronological order, and both records
		// reached the synthesis prompt.
		assert.Equal(t, 3, f.provider.DescribeCalls())
		require.NotEmpty(t, f.provider.Prompts)
		synthPrompt := f.provider.Prompts[0]
		assert.Less(t, strings.Index(synthPrompt, "inbox with attachment"), strings.Index(synthPrompt, "totals selected"))
		assert.Contains(t, synthPrompt, "First I open the weekly report")

		assert.Equal(t, 1, f.transcriber.calls)

		assert.NoDirExists(t, f.extractor.lastFrameDir)
		assert.NoDirExists(t, f.extractor.lastAudioDir)
	})

	t.Run("process span carries workflow, video and frame attributes", func(t *testing.T) {
		f := newFixture(t)
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, blockGraphJSON}

		recorder := tracetest.NewSpanRecorder()
		f.orch.tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

		workflow := f.seedWorkflow(t, testVideo(t))
		require.NoError(t, f.orch.Process(ctx, workflow.ID))

		var process sdktrace.ReadOnlySpan

		for _, span := range recorder.Ended() {
			if span.Name() == "pipeline.process" {
				process = span
			}
		}

		require.NotNil(t, process)

		attrs := make(map[attribute.Key]attribute.Value, len(process.Attributes()))
		for _, kv := range process.Attributes() {
			attrs[kv.Key] = kv.Value
		}

		assert.Equal(t, workflow.ID, attrs[otelhelper.WorkflowIDKey].AsString())
		assert.Equal(t, workflow.VideoRef, attrs[otelhelper.VideoRefKey].AsString())
		assert.Equal(t, int64(3), attrs[otelhelper.FrameCountKey].AsInt64())
	})

	t.Run("audio failure degrades to visual-only run", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.audioErr = errors.New("no audio track")
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, blockGraphJSON}

		workflow := f.seedWorkflow(t, testVideo(t))

		require.NoError(t, f.orch.Process(ctx, workflow.ID))

		stored, err := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
		require.NotNil(t, stored.RawExtraction)

		assert.Zero(t, f.transcriber.calls)
		require.NotEmpty(t, f.provider.Prompts)
		assert.Contains(t, f.provider.Prompts[0], "no narration available")
		assert.Contains(t, f.provider.Prompts[0], "paraphrase of its visual description")
	})

	t.Run("frame failure is fatal and keeps no artifacts", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.frameErr = errors.New("corrupt video stream")

		workflow := f.seedWorkflow(t, testVideo(t))

		err := f.orch.Process(ctx, workflow.ID)
		require.Error(t, err)

		stored, storeErr := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, storeErr)
		assert.Equal(t, models.WorkflowStatusFailed, stored.Status)
		assert.Contains(t, stored.Error, "corrupt video stream")
		assert.Nil(t, stored.RawExtraction)
		assert.Nil(t, stored.OrganizedWorkflow)
		assert.Nil(t, stored.BlockStructure)

		// The audio branch ran concurrently; its temp file is still released.
		if f.extractor.lastAudioDir != "" {
			assert.NoDirExists(t, f.extractor.lastAudioDir)
		}
	})

	t.Run("unparsable synthesis fails the run", func(t *testing.T) {
		f := newFixture(t)
		f.provider.GenerateReplies = []string{"I cannot produce a transcript for this."}

		workflow := f.seedWorkflow(t, testVideo(t))

		err := f.orch.Process(ctx, workflow.ID)
		require.Error(t, err)

		stored, storeErr := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, storeErr)
		assert.Equal(t, models.WorkflowStatusFailed, stored.Status)
		assert.NotEmpty(t, stored.Error)
		assert.Nil(t, stored.RawExtraction)

		assert.NoDirExists(t, f.extractor.lastFrameDir)
	})

	t.Run("late failure retains earlier artifacts", func(t *testing.T) {
		f := newFixture(t)
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, "not a graph"}

		workflow := f.seedWorkflow(t, testVideo(t))

		err := f.orch.Process(ctx, workflow.ID)
		require.Error(t, err)

		stored, storeErr := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, storeErr)
		assert.Equal(t, models.WorkflowStatusFailed, stored.Status)
		assert.NotNil(t, stored.RawExtraction)
		assert.NotNil(t, stored.OrganizedWorkflow)
		assert.Nil(t, stored.BlockStructure)
	})

	t.Run("invalid generated enums are repaired before persisting", func(t *testing.T) {
		repaired := `{
			"blocks": [{"id": "b1", "intent": "edit", "title": "Copy totals"}],
			"sources": [],
			"connections": [{"source_block_id": "b1", "target_block_id": "b1", "update_rules": "whenever"}]
		}`

		f := newFixture(t)
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, repaired}

		workflow := f.seedWorkflow(t, testVideo(t))

		require.NoError(t, f.orch.Process(ctx, workflow.ID))

		stored, err := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.BlockStructure)
		require.Len(t, stored.BlockStructure.Connections, 1)
		assert.Equal(t, models.UpdateRulesManual, stored.BlockStructure.Connections[0].UpdateRules)
	})

	t.Run("unsupported container fails validation", func(t *testing.T) {
		f := newFixture(t)

		path := filepath.Join(t.TempDir(), "recording.txt")
		require.NoError(t, os.WriteFile(path, []byte("txt"), 0o600))

		workflow := f.seedWorkflow(t, path)

		err := f.orch.Process(ctx, workflow.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, media.ErrUnsupportedFormat)

		stored, storeErr := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, storeErr)
		assert.Equal(t, models.WorkflowStatusFailed, stored.Status)
	})

	t.Run("blob reference is downloaded before extraction", func(t *testing.T) {
		f := newFixture(t)
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, blockGraphJSON}

		key := "uploads/demo/recording.mp4"
		require.NoError(t, f.blobs.Put(ctx, key, strings.NewReader("mp4")))

		workflow := f.seedWorkflow(t, blobstore.Ref(key))

		require.NoError(t, f.orch.Process(ctx, workflow.ID))

		stored, err := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
	})

	t.Run("missing blob fails the run", func(t *testing.T) {
		f := newFixture(t)

		workflow := f.seedWorkflow(t, blobstore.Ref("uploads/gone/recording.mp4"))

		err := f.orch.Process(ctx, workflow.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	})

	t.Run("retrying a failed workflow re-runs the whole pipeline", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.frameErr = errors.New("transient decoder failure")

		workflow := f.seedWorkflow(t, testVideo(t))

		require.Error(t, f.orch.Process(ctx, workflow.ID))

		f.extractor.frameErr = nil
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, blockGraphJSON}

		require.NoError(t, f.orch.Process(ctx, workflow.ID))

		stored, err := f.store.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
		assert.Empty(t, stored.Error)
		require.NotNil(t, stored.BlockStructure)
	})

	t.Run("publishes lifecycle events", func(t *testing.T) {
		f := newFixture(t)
		f.provider.GenerateReplies = []string{rawTranscriptJSON, organizedStepsJSON, blockGraphJSON}

		bus := mocks.NewMockEventBus()
		bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		logger := slog.Default()
		orch := NewOrchestrator(Config{
			Persistence: f.store,
			Blobs:       f.blobs,
			Extractor:   f.extractor,
			Describer:   f.provider,
			Transcriber: f.transcriber,
			Synthesizer: NewSynthesizer(f.provider, logger),
			Organizer:   NewOrganizer(f.provider, logger),
			BlockGen:    NewBlockGenerator(f.provider, logger),
			EventBus:    bus,
			Logger:      logger,
			FrameRate:   1.0,
		})

		workflow := f.seedWorkflow(t, testVideo(t))

		require.NoError(t, orch.Process(ctx, workflow.ID))

		// started + four stage completions + completed.
		bus.AssertNumberOfCalls(t, "Publish", 6)
	})

	t.Run("publishes a failure event with the stage", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.frameErr = errors.New("corrupt video stream")

		bus := mocks.NewMockEventBus()
		bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		logger := slog.Default()
		orch := NewOrchestrator(Config{
			Persistence: f.store,
			Blobs:       f.blobs,
			Extractor:   f.extractor,
			Describer:   f.provider,
			Transcriber: f.transcriber,
			Synthesizer: NewSynthesizer(f.provider, logger),
			Organizer:   NewOrganizer(f.provider, logger),
			BlockGen:    NewBlockGenerator(f.provider, logger),
			EventBus:    bus,
			Logger:      logger,
			FrameRate:   1.0,
		})

		workflow := f.seedWorkflow(t, testVideo(t))

		require.Error(t, orch.Process(ctx, workflow.ID))

		bus.AssertNumberOfCalls(t, "Publish", 2)

		failed, ok := bus.Calls[1].Arguments.Get(2).(events.ProcessingFailed)
		require.True(t, ok)
		assert.Equal(t, models.StageExtraction, failed.Stage)
		assert.Contains(t, failed.Error, "corrupt video stream")
	})

	t.Run("unknown workflow is an error", func(t *testing.T) {
		f := newFixture(t)

		err := f.orch.Process(ctx, "missing")
		require.Error(t, err)
	})
}
