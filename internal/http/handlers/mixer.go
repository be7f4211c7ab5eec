package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// MixerService is the slice of the mixer manager the endpoints use.
type MixerService interface {
	Start(ctx context.Context, sceneID string) (models.MixerStatus, error)
	Stop() models.MixerStatus
	SetScene(ctx context.Context, sceneID string) (models.MixerStatus, error)
	Take(ctx context.Context, kind models.TransitionKind) (models.MixerStatus, error)
	Status() models.MixerStatus
}

// MixerHandler serves the program/preview mixer endpoints.
type MixerHandler struct {
	mixer MixerService
}

// NewMixerHandler creates a mixer handler.
func NewMixerHandler(mixer MixerService) *MixerHandler {
	return &MixerHandler{mixer: mixer}
}

// Register registers the mixer routes with the API.
func (h *MixerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getMixerStatus",
		Method:      "GET",
		Path:        "/api/v1/mixer",
		Summary:     "Get mixer status",
		Tags:        []string{"Mixer"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "startMixer",
		Method:      "POST",
		Path:        "/api/v1/mixer/start",
		Summary:     "Start the mixer on a scene",
		Description: "Builds the composition pipeline and puts the given scene on program.",
		Tags:        []string{"Mixer"},
	}, h.StartMixer)

	huma.Register(api, huma.Operation{
		OperationID: "stopMixer",
		Method:      "POST",
		Path:        "/api/v1/mixer/stop",
		Summary:     "Stop the mixer",
		Tags:        []string{"Mixer"},
	}, h.StopMixer)

	huma.Register(api, huma.Operation{
		OperationID: "setMixerScene",
		Method:      "POST",
		Path:        "/api/v1/mixer/scene",
		Summary:     "Stage a scene on preview",
		Description: "Validates the scene against live sources and stages it. Program is untouched until take.",
		Tags:        []string{"Mixer"},
	}, h.SetScene)

	huma.Register(api, huma.Operation{
		OperationID: "takeMixerScene",
		Method:      "POST",
		Path:        "/api/v1/mixer/take",
		Summary:     "Take preview to program",
		Description: "Switches program to the staged preview scene with the requested transition. A transition the pipeline cannot play falls back to a cut and says so.",
		Tags:        []string{"Mixer"},
	}, h.Take)
}

// GetMixerStatusInput is the input for mixer status.
type GetMixerStatusInput struct{}

// MixerStatusOutput carries a mixer status snapshot; all mixer operations
// return it.
type MixerStatusOutput struct {
	Body models.MixerStatus
}

// GetStatus returns the mixer snapshot.
func (h *MixerHandler) GetStatus(ctx context.Context, input *GetMixerStatusInput) (*MixerStatusOutput, error) {
	return &MixerStatusOutput{Body: h.mixer.Status()}, nil
}

// StartMixerInput is the input for starting the mixer.
type StartMixerInput struct {
	Body struct {
		SceneID string `json:"scene_id" required:"true" doc:"Scene to put on program"`
	}
}

// StartMixer starts the mixer with the given program scene.
func (h *MixerHandler) StartMixer(ctx context.Context, input *StartMixerInput) (*MixerStatusOutput, error) {
	status, err := h.mixer.Start(ctx, input.Body.SceneID)
	if err != nil {
		return nil, apiError(err)
	}
	return &MixerStatusOutput{Body: status}, nil
}

// StopMixerInput is the input for stopping the mixer.
type StopMixerInput struct{}

// StopMixer stops the mixer. Stopping an idle mixer is a no-op.
func (h *MixerHandler) StopMixer(ctx context.Context, input *StopMixerInput) (*MixerStatusOutput, error) {
	return &MixerStatusOutput{Body: h.mixer.Stop()}, nil
}

// SetSceneInput is the input for staging a preview scene.
type SetSceneInput struct {
	Body struct {
		SceneID string `json:"scene_id" required:"true" doc:"Scene to stage on preview"`
	}
}

// SetScene stages a scene on preview.
func (h *MixerHandler) SetScene(ctx context.Context, input *SetSceneInput) (*MixerStatusOutput, error) {
	status, err := h.mixer.SetScene(ctx, input.Body.SceneID)
	if err != nil {
		return nil, apiError(err)
	}
	return &MixerStatusOutput{Body: status}, nil
}

// TakeInput is the input for a take.
type TakeInput struct {
	Body struct {
		Transition string `json:"transition,omitempty" enum:"cut,mix,auto" doc:"Transition kind; defaults to cut"`
	}
}

// Take switches program to the staged preview scene.
func (h *MixerHandler) Take(ctx context.Context, input *TakeInput) (*MixerStatusOutput, error) {
	kind, err := models.ParseTransition(input.Body.Transition)
	if err != nil {
		return nil, apiError(err)
	}

	status, err := h.mixer.Take(ctx, kind)
	if err != nil {
		return nil, apiError(err)
	}
	return &MixerStatusOutput{Body: status}, nil
}
