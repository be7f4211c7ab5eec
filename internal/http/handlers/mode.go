package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// ModeService is the slice of the mode manager the endpoints use.
type ModeService interface {
	Status() models.ModeStatus
	SetMode(ctx context.Context, target models.Mode) (models.ModeStatus, error)
}

// ModeHandler serves the operational mode endpoints.
type ModeHandler struct {
	mode ModeService
}

// NewModeHandler creates a mode handler.
func NewModeHandler(mode ModeService) *ModeHandler {
	return &ModeHandler{mode: mode}
}

// Register registers the mode routes with the API.
func (h *ModeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getMode",
		Method:      "GET",
		Path:        "/api/v1/mode",
		Summary:     "Get the operational mode",
		Tags:        []string{"Mode"},
	}, h.GetMode)

	huma.Register(api, huma.Operation{
		OperationID: "setMode",
		Method:      "POST",
		Path:        "/api/v1/mode",
		Summary:     "Change the operational mode",
		Description: "Switches between recorder and vdo_publisher. The outgoing side is stopped to completion before the incoming side starts; on failure the previous mode is restored and the error reported.",
		Tags:        []string{"Mode"},
	}, h.SetMode)
}

// GetModeInput is the input for reading the mode.
type GetModeInput struct{}

// ModeStatusOutput carries a mode manager snapshot.
type ModeStatusOutput struct {
	Body models.ModeStatus
}

// GetMode returns the mode manager snapshot.
func (h *ModeHandler) GetMode(ctx context.Context, input *GetModeInput) (*ModeStatusOutput, error) {
	return &ModeStatusOutput{Body: h.mode.Status()}, nil
}

// SetModeInput is the input for changing the mode.
type SetModeInput struct {
	Body struct {
		Mode string `json:"mode" required:"true" enum:"recorder,vdo_publisher" doc:"Target operational mode"`
	}
}

// SetMode transitions to the requested mode.
func (h *ModeHandler) SetMode(ctx context.Context, input *SetModeInput) (*ModeStatusOutput, error) {
	target, err := models.ParseMode(input.Body.Mode)
	if err != nil {
		return nil, apiError(err)
	}

	status, err := h.mode.SetMode(ctx, target)
	if err != nil {
		return nil, apiError(err)
	}
	return &ModeStatusOutput{Body: status}, nil
}
