// Package web provides HTTP handlers and REST API endpoints for recorded
// workflow management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/recflow/recflow/pkg/blobstore"
	"github.com/recflow/recflow/pkg/services"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	processingService *services.Processing
	blobs             blobstore.Store
	validator         *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	processingService *services.Processing,
	blobs blobstore.Store,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		processingService: processingService,
		blobs:             blobs,
		validator:         validator,
	}
}

// CreateUpload negotiates an upload destination for a screen recording. The
// returned key becomes the workflow's video reference once registered.
func (h *APIHandlers) CreateUpload(c fiber.Ctx) error {
	var req CreateUploadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.blobs.CreateUploadSession(c.Context(), req.Filename)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          session.ID,
		"video_ref":   blobstore.Ref(session.Key),
		"destination": session.Destination,
		"expires_at":  session.ExpiresAt,
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), services.CreateWorkflowRequest{
		Title:    req.Title,
		VideoRef: req.VideoRef,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// StartProcessing launches the analysis pipeline for a workflow and returns
// immediately; progress is observed via the status endpoint.
func (h *APIHandlers) StartProcessing(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.processingService.StartProcessing(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":      id,
		"message": "Processing started",
	})
}

func (h *APIHandlers) GetWorkflowStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	status, err := h.workflowService.Status(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

// UpdateBlocks replaces the workflow's block structure wholesale. Requests
// missing the blocks or connections arrays are rejected before anything is
// stored.
func (h *APIHandlers) UpdateBlocks(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateBlocksRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Request must include blocks and connections arrays: "+err.Error())
	}

	updated, err := h.workflowService.UpdateBlocks(c.Context(), id, req.Structure())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Recflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Recflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
