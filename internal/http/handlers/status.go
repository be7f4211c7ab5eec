package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// StatusHandler serves the aggregate snapshot the UI polls. One request
// returns every subsystem's state so the frontend needs no fan-out.
type StatusHandler struct {
	version  string
	ingest   IngestStatus
	recorder RecordingService
	mixer    MixerService
	reveal   RevealService
	mode     ModeService
	overlay  OverlayService
}

// NewStatusHandler creates the aggregate status handler.
func NewStatusHandler(version string, ingest IngestStatus, recorder RecordingService, mixer MixerService, reveal RevealService, mode ModeService, overlay OverlayService) *StatusHandler {
	return &StatusHandler{
		version:  version,
		ingest:   ingest,
		recorder: recorder,
		mixer:    mixer,
		reveal:   reveal,
		mode:     mode,
		overlay:  overlay,
	}
}

// Register registers the status route with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Aggregate engine status",
		Description: "Returns the state of every subsystem in one response",
		Tags:        []string{"System"},
	}, h.GetStatus)
}

// RecordingSummary is the recording slice of the aggregate status.
type RecordingSummary struct {
	Recording bool                     `json:"recording"`
	Session   *models.RecordingSession `json:"session,omitempty"`
}

// StatusResponse is the aggregate status body.
type StatusResponse struct {
	Version         string                     `json:"version"`
	Mode            models.ModeStatus          `json:"mode"`
	Cameras         []models.CameraState       `json:"cameras"`
	Recording       RecordingSummary           `json:"recording"`
	Mixer           models.MixerStatus         `json:"mixer"`
	Outputs         []models.RevealOutputState `json:"outputs"`
	OverlayElements int                        `json:"overlay_elements"`
}

// GetStatusInput is the input for the aggregate status.
type GetStatusInput struct{}

// GetStatusOutput is the output for the aggregate status.
type GetStatusOutput struct {
	Body StatusResponse
}

// GetStatus assembles the snapshot.
func (h *StatusHandler) GetStatus(ctx context.Context, input *GetStatusInput) (*GetStatusOutput, error) {
	resp := &GetStatusOutput{}
	resp.Body.Version = h.version
	resp.Body.Mode = h.mode.Status()
	resp.Body.Cameras = h.ingest.States()
	resp.Body.Mixer = h.mixer.Status()
	resp.Body.Outputs = h.reveal.Status()
	resp.Body.OverlayElements = len(h.overlay.List())

	if session, ok := h.recorder.Active(); ok {
		resp.Body.Recording = RecordingSummary{Recording: true, Session: session}
	}

	return resp, nil
}
