package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/recflow/recflow/pkg/blobstore"
	"github.com/recflow/recflow/pkg/eventbus"
	"github.com/recflow/recflow/pkg/events"
	"github.com/recflow/recflow/pkg/media"
	"github.com/recflow/recflow/pkg/models"
	"github.com/recflow/recflow/pkg/otelhelper"
	"github.com/recflow/recflow/pkg/persistence"
	"github.com/recflow/recflow/pkg/providers"
)

const defaultStageTimeout = 3 * time.Minute

// MediaExtractor is the media boundary the orchestrator needs; satisfied by
// *media.Extractor.
type MediaExtractor interface {
	Validate(videoPath string) error
	ExtractFrames(ctx context.Context, videoPath string, frameRate float64) (*media.FrameSet, error)
	ExtractAudio(ctx context.Context, videoPath string) (*media.AudioFile, error)
}

// NarrationTranscriber turns an extracted audio file into narration text,
// failing soft; satisfied by *transcription.Adapter.
type NarrationTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) string
}

// Config carries the orchestrator's collaborators.
type Config struct {
	Persistence persistence.Persistence
	Blobs       blobstore.Store
	Extractor   MediaExtractor
	Describer   providers.Describer
	Transcriber NarrationTranscriber
	Synthesizer *Synthesizer
	Organizer   *Organizer
	BlockGen    *BlockGenerator
	EventBus    eventbus.EventBus
	Tracer      trace.Tracer
	Logger      *slog.Logger

	// FrameRate is the sampling rate in frames per second; zero means the
	// extractor default.
	FrameRate float64

	// StageTimeout bounds each generation stage call.
	StageTimeout time.Duration
}

// Orchestrator drives one workflow through the full pipeline: extraction,
// transcript synthesis, step organization, and block generation, persisting
// each artifact as soon as its stage completes.
type Orchestrator struct {
	persistence  persistence.Persistence
	blobs        blobstore.Store
	extractor    MediaExtractor
	describer    providers.Describer
	transcriber  NarrationTranscriber
	synthesizer  *Synthesizer
	organizer    *Organizer
	blockGen     *BlockGenerator
	eventBus     eventbus.EventBus
	tracer       trace.Tracer
	logger       *slog.Logger
	frameRate    float64
	stageTimeout time.Duration
}

func NewOrchestrator(config Config) *Orchestrator {
	if config.Tracer == nil {
		config.Tracer = otel.Tracer("recflow.pipeline")
	}

	if config.StageTimeout <= 0 {
		config.StageTimeout = defaultStageTimeout
	}

	return &Orchestrator{
		persistence:  config.Persistence,
		blobs:        config.Blobs,
		extractor:    config.Extractor,
		describer:    config.Describer,
		transcriber:  config.Transcriber,
		synthesizer:  config.Synthesizer,
		organizer:    config.Organizer,
		blockGen:     config.BlockGen,
		eventBus:     config.EventBus,
		tracer:       config.Tracer,
		logger:       config.Logger,
		frameRate:    config.FrameRate,
		stageTimeout: config.StageTimeout,
	}
}

// Process runs the whole pipeline for one workflow. Re-triggering a completed
// or failed workflow re-runs everything from the video; partial artifacts from
// a failed run are retained until the re-run overwrites them. All temporary
// resources are released on every exit path.
func (o *Orchestrator) Process(ctx context.Context, workflowID string) error {
	started := time.Now()
	logger := o.logger.With("workflow_id", workflowID)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.process",
		attribute.String(otelhelper.WorkflowIDKey, workflowID))
	defer span.End()

	workflow, err := o.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.VideoRefKey, workflow.VideoRef))

	workflow.Status = models.WorkflowStatusProcessing
	workflow.CurrentStage = models.StageExtraction
	workflow.Error = ""
	workflow.RawExtraction = nil
	workflow.OrganizedWorkflow = nil
	workflow.BlockStructure = nil

	err = o.persist(ctx, workflow)
	if err != nil {
		return err
	}

	o.publish(ctx, workflow.ID, events.ProcessingStarted{
		BaseEvent: events.NewBaseEvent(events.ProcessingStartedEvent, workflow.ID),
		VideoRef:  workflow.VideoRef,
	})

	videoPath, release, err := o.resolveVideo(ctx, workflow.VideoRef)
	if err != nil {
		return o.fail(ctx, workflow, models.StageExtraction, err)
	}
	defer release()

	err = o.extractor.Validate(videoPath)
	if err != nil {
		return o.fail(ctx, workflow, models.StageExtraction, err)
	}

	frames, narration, cleanup, err := o.extract(ctx, videoPath, logger)
	defer cleanup()

	if err != nil {
		return o.fail(ctx, workflow, models.StageExtraction, err)
	}

	span.SetAttributes(attribute.Int(otelhelper.FrameCountKey, len(frames)))

	workflow.CurrentStage = models.StageTranscript

	err = o.persist(ctx, workflow)
	if err != nil {
		return err
	}

	o.stageCompleted(ctx, workflow.ID, models.StageExtraction)

	raw, err := runStage(ctx, o, models.StageTranscript, func(stageCtx context.Context) (*models.RawExtraction, error) {
		return o.synthesizer.Synthesize(stageCtx, frames, narration)
	})
	if err != nil {
		return o.fail(ctx, workflow, models.StageTranscript, err)
	}

	workflow.RawExtraction = raw
	workflow.CurrentStage = models.StageOrganization

	err = o.persist(ctx, workflow)
	if err != nil {
		return err
	}

	o.stageCompleted(ctx, workflow.ID, models.StageTranscript)

	organized, err := runStage(ctx, o, models.StageOrganization, func(stageCtx context.Context) (*models.OrganizedWorkflow, error) {
		return o.organizer.Organize(stageCtx, raw)
	})
	if err != nil {
		return o.fail(ctx, workflow, models.StageOrganization, err)
	}

	workflow.OrganizedWorkflow = organized
	workflow.CurrentStage = models.StageBlockGeneration

	err = o.persist(ctx, workflow)
	if err != nil {
		return err
	}

	o.stageCompleted(ctx, workflow.ID, models.StageOrganization)

	structure, err := runStage(ctx, o, models.StageBlockGeneration, func(stageCtx context.Context) (*models.BlockStructure, error) {
		return o.blockGen.Generate(stageCtx, organized)
	})
	if err != nil {
		return o.fail(ctx, workflow, models.StageBlockGeneration, err)
	}

	workflow.BlockStructure = structure
	workflow.CurrentStage = models.StageDone
	workflow.Status = models.WorkflowStatusCompleted

	err = o.persist(ctx, workflow)
	if err != nil {
		return err
	}

	o.stageCompleted(ctx, workflow.ID, models.StageBlockGeneration)
	o.publish(ctx, workflow.ID, events.ProcessingCompleted{
		BaseEvent: events.NewBaseEvent(events.ProcessingCompletedEvent, workflow.ID),
		Duration:  time.Since(started),
	})

	logger.Info("Pipeline completed", "duration", time.Since(started))

	return nil
}

// extract runs the frame and audio branches concurrently and joins them. The
// frame branch (frames plus per-frame descriptions) is load-bearing and its
// failure aborts extraction; the audio branch degrades to an empty narration
// on any failure. The returned cleanup releases both branches' temp resources
// and is safe to call regardless of err.
func (o *Orchestrator) extract(ctx context.Context, videoPath string, logger *slog.Logger) ([]FrameDescription, string, func(), error) {
	var (
		frames    []FrameDescription
		frameSet  *media.FrameSet
		audioFile *media.AudioFile
		narration string
	)

	cleanup := func() {
		if frameSet != nil {
			if err := frameSet.Close(); err != nil {
				logger.Warn("Failed to remove frame directory", "error", err)
			}
		}

		if audioFile != nil {
			if err := audioFile.Close(); err != nil {
				logger.Warn("Failed to remove audio file", "error", err)
			}
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		set, err := o.extractor.ExtractFrames(groupCtx, videoPath, o.frameRate)
		if err != nil {
			return err
		}

		frameSet = set

		described, err := o.describeFrames(groupCtx, set.Paths)
		if err != nil {
			return err
		}

		frames = described

		return nil
	})

	group.Go(func() error {
		audio, err := o.extractor.ExtractAudio(groupCtx, videoPath)
		if err != nil {
			logger.Warn("Audio extraction failed, continuing without narration", "error", err)

			return nil
		}

		audioFile = audio
		narration = o.transcriber.Transcribe(groupCtx, audio.Path)

		return nil
	})

	err := group.Wait()
	if err != nil {
		return nil, "", cleanup, err
	}

	return frames, narration, cleanup, nil
}

// describeFrames sends each frame to the vision model in chronological order.
func (o *Orchestrator) describeFrames(ctx context.Context, paths []string) ([]FrameDescription, error) {
	rate := o.frameRate
	if rate <= 0 {
		rate = media.DefaultFrameRate
	}

	descriptions := make([]FrameDescription, 0, len(paths))

	for i, path := range paths {
		image, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s: %w", path, err)
		}

		description, err := o.describer.DescribeImage(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("failed to describe frame %d: %w", i, err)
		}

		descriptions = append(descriptions, FrameDescription{
			Index:       i,
			TimeSeconds: float64(i) / rate,
			Description: description,
		})
	}

	return descriptions, nil
}

// resolveVideo turns a workflow's video reference into a local path. Blob
// references are downloaded into a scoped temp directory; local paths pass
// through. The returned release removes anything downloaded.
func (o *Orchestrator) resolveVideo(ctx context.Context, ref string) (string, func(), error) {
	key, ok := blobstore.ParseRef(ref)
	if !ok {
		return ref, func() {}, nil
	}

	blob, err := o.blobs.Get(ctx, key)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to fetch video %s: %w", ref, err)
	}
	defer blob.Close()

	dir, err := os.MkdirTemp("", "recflow-video-")
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create video directory: %w", err)
	}

	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			o.logger.Warn("Failed to remove downloaded video", "dir", dir, "error", err)
		}
	}

	path := filepath.Join(dir, "video"+filepath.Ext(key))

	file, err := os.Create(path)
	if err != nil {
		release()

		return "", func() {}, fmt.Errorf("failed to create video file: %w", err)
	}

	_, err = io.Copy(file, blob)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		release()

		return "", func() {}, fmt.Errorf("failed to download video %s: %w", ref, err)
	}

	return path, release, nil
}

// runStage wraps one generation stage with a span and the stage timeout.
func runStage[T any](ctx context.Context, o *Orchestrator, stage models.Stage, fn func(context.Context) (T, error)) (T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	stageCtx, span := otelhelper.StartSpan(stageCtx, o.tracer, "pipeline.stage",
		attribute.String(otelhelper.StageKey, string(stage)))
	defer span.End()

	return fn(stageCtx)
}

func (o *Orchestrator) persist(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	err := o.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return fmt.Errorf("failed to persist workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// fail marks the workflow failed, recording which stage broke and why.
// Artifacts persisted by earlier stages are retained.
func (o *Orchestrator) fail(ctx context.Context, workflow *models.Workflow, stage models.Stage, cause error) error {
	o.logger.Error("Pipeline stage failed",
		"workflow_id", workflow.ID, "stage", stage, "error", cause)

	workflow.Status = models.WorkflowStatusFailed
	workflow.Error = cause.Error()

	err := o.persist(ctx, workflow)
	if err != nil {
		o.logger.Error("Failed to persist failed workflow", "workflow_id", workflow.ID, "error", err)
	}

	o.publish(ctx, workflow.ID, events.ProcessingFailed{
		BaseEvent: events.NewBaseEvent(events.ProcessingFailedEvent, workflow.ID),
		Stage:     stage,
		Error:     cause.Error(),
	})

	return fmt.Errorf("pipeline failed at stage %s: %w", stage, cause)
}

func (o *Orchestrator) stageCompleted(ctx context.Context, workflowID string, stage models.Stage) {
	o.publish(ctx, workflowID, events.StageCompleted{
		BaseEvent: events.NewBaseEvent(events.StageCompletedEvent, workflowID),
		Stage:     stage,
	})
}

func (o *Orchestrator) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if o.eventBus == nil {
		return
	}

	err := o.eventBus.Publish(ctx, workflowID, event)
	if err != nil {
		o.logger.Warn("Failed to publish pipeline event",
			"workflow_id", workflowID, "event_type", event.GetType(), "error", err)
	}
}
