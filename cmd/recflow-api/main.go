package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/recflow/recflow/pkg/blobstore/local"
	"github.com/recflow/recflow/pkg/cmd"
	"github.com/recflow/recflow/pkg/log"
	"github.com/recflow/recflow/pkg/media"
	"github.com/recflow/recflow/pkg/otelhelper"
	"github.com/recflow/recflow/pkg/pipeline"
	"github.com/recflow/recflow/pkg/providers"
	"github.com/recflow/recflow/pkg/transcription"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 8090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "recflow-api",
		Usage:                 "Turn screen recordings into editable workflow graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Workflow store URL (postgres://, redis://, memory://, file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "blob-root",
				Usage:   "Root directory for uploaded recordings and staged media",
				Value:   "./data/blobs",
				Sources: cli.EnvVars("BLOB_ROOT"),
			},
			&cli.StringFlag{
				Name:     "openai-api-key",
				Usage:    "API key for the vision, transcription and generation models",
				Required: true,
				Sources:  cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Override the model API base URL",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "ffmpeg-path",
				Usage:   "Path to the ffmpeg binary",
				Value:   media.DefaultFFmpegPath,
				Sources: cli.EnvVars("FFMPEG_PATH"),
			},
			&cli.FloatFlag{
				Name:    "frame-rate",
				Usage:   "Frame sampling rate in frames per second",
				Value:   media.DefaultFrameRate,
				Sources: cli.EnvVars("FRAME_RATE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces for pipeline runs",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Recflow API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			blobs, err := local.NewStore(command.String("blob-root"))
			if err != nil {
				return err
			}

			eventBus := cmd.NewEventBus(logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			err = cmd.RegisterLoggingHandlers(ctx, eventBus, logger)
			if err != nil {
				return err
			}

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "recflow-api")
				if err != nil {
					return err
				}
			}

			providerOpts := []providers.OpenAIOption{}
			if baseURL := command.String("openai-base-url"); baseURL != "" {
				providerOpts = append(providerOpts, providers.WithBaseURL(baseURL))
			}

			provider := providers.NewOpenAI(command.String("openai-api-key"), providerOpts...)
			extractor := media.NewExtractor(media.WithFFmpegPath(command.String("ffmpeg-path")))
			transcriber := transcription.NewAdapter(provider, blobs, logger)

			orchestrator := pipeline.NewOrchestrator(pipeline.Config{
				Persistence: persistence,
				Blobs:       blobs,
				Extractor:   extractor,
				Describer:   provider,
				Transcriber: transcriber,
				Synthesizer: pipeline.NewSynthesizer(provider, logger),
				Organizer:   pipeline.NewOrganizer(provider, logger),
				BlockGen:    pipeline.NewBlockGenerator(provider, logger),
				EventBus:    eventBus,
				Tracer:      tracer,
				Logger:      logger,
				FrameRate:   command.Float("frame-rate"),
			})

			api := NewAPI(
				logger,
				persistence,
				blobs,
				orchestrator,
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
