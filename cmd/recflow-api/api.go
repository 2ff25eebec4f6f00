// Package main provides the Recflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/recflow/recflow/pkg/blobstore"
	"github.com/recflow/recflow/pkg/persistence"
	"github.com/recflow/recflow/pkg/pipeline"
	"github.com/recflow/recflow/pkg/services"
	"github.com/recflow/recflow/pkg/web"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	blobs        blobstore.Store
	orchestrator *pipeline.Orchestrator
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	blobs blobstore.Store,
	orchestrator *pipeline.Orchestrator,
) *API {
	return &API{
		logger:       logger,
		persistence:  persistence,
		blobs:        blobs,
		orchestrator: orchestrator,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence)
	processingService := services.NewProcessing(workflowService, a.orchestrator, a.logger)

	handlers := web.NewAPIHandlers(workflowService, processingService, a.blobs, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Recflow API")
	})

	app.Post("/uploads", handlers.CreateUpload)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/process", handlers.StartProcessing)
	w.Get("/:id/status", handlers.GetWorkflowStatus)
	w.Put("/:id/blocks", handlers.UpdateBlocks)
	w.Delete("/:id", handlers.DeleteWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
