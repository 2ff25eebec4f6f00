// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/recflow/recflow/pkg/models"

// CreateUploadRequest represents the request body for negotiating an upload
// destination for a screen recording.
type CreateUploadRequest struct {
	Filename string `json:"filename" validate:"required"`
}

// CreateWorkflowRequest represents the request body for registering an
// uploaded recording as a workflow.
type CreateWorkflowRequest struct {
	Title    string `json:"title"     validate:"required,min=3"`
	VideoRef string `json:"video_ref" validate:"required"`
}

// UpdateBlocksRequest represents the request body for replacing a workflow's
// block structure wholesale. Blocks and Connections are pointers so that an
// absent array is distinguishable from an empty one; both must be present.
type UpdateBlocksRequest struct {
	Blocks      *[]models.Block      `json:"blocks"      validate:"required"`
	Sources     []models.Source      `json:"sources"`
	Connections *[]models.Connection `json:"connections" validate:"required"`
}

// Structure assembles the replacement block structure from the request.
func (r UpdateBlocksRequest) Structure() *models.BlockStructure {
	return &models.BlockStructure{
		Blocks:      *r.Blocks,
		Sources:     r.Sources,
		Connections: *r.Connections,
	}
}
