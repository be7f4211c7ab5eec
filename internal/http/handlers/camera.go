package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// IngestStatus is the slice of the ingest manager the camera endpoints read.
type IngestStatus interface {
	States() []models.CameraState
	State(cameraID string) (models.CameraState, bool)
}

// CameraHandler serves per-camera ingest status.
type CameraHandler struct {
	ingest IngestStatus
}

// NewCameraHandler creates a camera status handler.
func NewCameraHandler(ingest IngestStatus) *CameraHandler {
	return &CameraHandler{ingest: ingest}
}

// Register registers the camera routes with the API.
func (h *CameraHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCameras",
		Method:      "GET",
		Path:        "/api/v1/cameras",
		Summary:     "List camera ingest status",
		Description: "Returns the ingest state of every configured camera",
		Tags:        []string{"Cameras"},
	}, h.ListCameras)

	huma.Register(api, huma.Operation{
		OperationID: "getCamera",
		Method:      "GET",
		Path:        "/api/v1/cameras/{id}",
		Summary:     "Get one camera's ingest status",
		Tags:        []string{"Cameras"},
	}, h.GetCamera)
}

// ListCamerasInput is the input for listing cameras.
type ListCamerasInput struct{}

// ListCamerasOutput is the output for listing cameras.
type ListCamerasOutput struct {
	Body struct {
		Cameras []models.CameraState `json:"cameras"`
	}
}

// ListCameras returns the ingest state of every camera.
func (h *CameraHandler) ListCameras(ctx context.Context, input *ListCamerasInput) (*ListCamerasOutput, error) {
	resp := &ListCamerasOutput{}
	resp.Body.Cameras = h.ingest.States()
	return resp, nil
}

// GetCameraInput is the input for fetching one camera.
type GetCameraInput struct {
	ID string `path:"id" required:"true"`
}

// GetCameraOutput is the output for fetching one camera.
type GetCameraOutput struct {
	Body models.CameraState
}

// GetCamera returns the ingest state of one camera.
func (h *CameraHandler) GetCamera(ctx context.Context, input *GetCameraInput) (*GetCameraOutput, error) {
	state, ok := h.ingest.State(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("unknown camera: " + input.ID)
	}
	return &GetCameraOutput{Body: state}, nil
}
