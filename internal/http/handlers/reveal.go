package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// RevealService is the slice of the reveal manager the endpoints use.
type RevealService interface {
	Start(ctx context.Context, outputID, presentationID, url string) (models.RevealOutputState, error)
	Stop(outputID string) (models.RevealOutputState, error)
	StopAll()
	Get(outputID string) (models.RevealOutputState, error)
	Status() []models.RevealOutputState
}

// RevealHandler serves the browser-rendered output endpoints.
type RevealHandler struct {
	reveal RevealService
}

// NewRevealHandler creates a reveal output handler.
func NewRevealHandler(reveal RevealService) *RevealHandler {
	return &RevealHandler{reveal: reveal}
}

// Register registers the reveal output routes with the API.
func (h *RevealHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listRevealOutputs",
		Method:      "GET",
		Path:        "/api/v1/outputs",
		Summary:     "List browser output status",
		Tags:        []string{"Outputs"},
	}, h.ListOutputs)

	huma.Register(api, huma.Operation{
		OperationID: "getRevealOutput",
		Method:      "GET",
		Path:        "/api/v1/outputs/{id}",
		Summary:     "Get one browser output",
		Tags:        []string{"Outputs"},
	}, h.GetOutput)

	huma.Register(api, huma.Operation{
		OperationID: "startRevealOutput",
		Method:      "POST",
		Path:        "/api/v1/outputs/{id}/start",
		Summary:     "Start rendering a presentation",
		Description: "Points the output's browser renderer at a presentation URL and publishes the rendered video. Starting the URL already running is a no-op; a different URL restarts the renderer.",
		Tags:        []string{"Outputs"},
	}, h.StartOutput)

	huma.Register(api, huma.Operation{
		OperationID: "stopRevealOutput",
		Method:      "POST",
		Path:        "/api/v1/outputs/{id}/stop",
		Summary:     "Stop one browser output",
		Tags:        []string{"Outputs"},
	}, h.StopOutput)

	huma.Register(api, huma.Operation{
		OperationID: "stopAllRevealOutputs",
		Method:      "POST",
		Path:        "/api/v1/outputs/stop",
		Summary:     "Stop every browser output",
		Tags:        []string{"Outputs"},
	}, h.StopAll)
}

// ListRevealInput is the input for listing outputs.
type ListRevealInput struct{}

// ListRevealOutput is the output for listing outputs.
type ListRevealOutput struct {
	Body struct {
		Outputs []models.RevealOutputState `json:"outputs"`
	}
}

// ListOutputs returns the state of both outputs.
func (h *RevealHandler) ListOutputs(ctx context.Context, input *ListRevealInput) (*ListRevealOutput, error) {
	resp := &ListRevealOutput{}
	resp.Body.Outputs = h.reveal.Status()
	return resp, nil
}

// GetRevealInput is the input for fetching one output.
type GetRevealInput struct {
	ID string `path:"id" required:"true"`
}

// RevealOutputStateOutput carries one output snapshot.
type RevealOutputStateOutput struct {
	Body models.RevealOutputState
}

// GetOutput returns one output's state.
func (h *RevealHandler) GetOutput(ctx context.Context, input *GetRevealInput) (*RevealOutputStateOutput, error) {
	state, err := h.reveal.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &RevealOutputStateOutput{Body: state}, nil
}

// StartRevealInput is the input for starting an output.
type StartRevealInput struct {
	ID   string `path:"id" required:"true"`
	Body struct {
		PresentationID string `json:"presentation_id" required:"true" doc:"Identifier of the presentation being rendered"`
		URL            string `json:"url" required:"true" format:"uri" doc:"Presentation URL the renderer loads"`
	}
}

// StartOutput starts rendering a presentation on the given output.
func (h *RevealHandler) StartOutput(ctx context.Context, input *StartRevealInput) (*RevealOutputStateOutput, error) {
	state, err := h.reveal.Start(ctx, input.ID, input.Body.PresentationID, input.Body.URL)
	if err != nil {
		return nil, apiError(err)
	}
	return &RevealOutputStateOutput{Body: state}, nil
}

// StopRevealInput is the input for stopping one output.
type StopRevealInput struct {
	ID string `path:"id" required:"true"`
}

// StopOutput stops one output. Stopping an idle output is a no-op.
func (h *RevealHandler) StopOutput(ctx context.Context, input *StopRevealInput) (*RevealOutputStateOutput, error) {
	state, err := h.reveal.Stop(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &RevealOutputStateOutput{Body: state}, nil
}

// StopAllRevealInput is the input for stopping every output.
type StopAllRevealInput struct{}

// StopAll stops both outputs.
func (h *RevealHandler) StopAll(ctx context.Context, input *StopAllRevealInput) (*ListRevealOutput, error) {
	h.reveal.StopAll()
	resp := &ListRevealOutput{}
	resp.Body.Outputs = h.reveal.Status()
	return resp, nil
}
