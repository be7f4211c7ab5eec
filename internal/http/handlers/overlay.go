package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// OverlayService is the slice of the overlay manager the endpoints and the
// WebSocket channel share.
type OverlayService interface {
	Add(el models.OverlayElement) (models.OverlayElement, error)
	Update(id string, el models.OverlayElement) (models.OverlayElement, error)
	Remove(id string) error
	Clear()
	Show(id string) error
	Hide(id string) error
	Get(id string) (models.OverlayElement, error)
	List() []models.OverlayElement
}

// OverlayHandler serves the broadcast graphics endpoints.
type OverlayHandler struct {
	overlay OverlayService
}

// NewOverlayHandler creates an overlay handler.
func NewOverlayHandler(overlay OverlayService) *OverlayHandler {
	return &OverlayHandler{overlay: overlay}
}

// Register registers the overlay routes with the API.
func (h *OverlayHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listOverlayElements",
		Method:      "GET",
		Path:        "/api/v1/overlay/elements",
		Summary:     "List overlay elements",
		Tags:        []string{"Overlay"},
	}, h.ListElements)

	huma.Register(api, huma.Operation{
		OperationID: "createOverlayElement",
		Method:      "POST",
		Path:        "/api/v1/overlay/elements",
		Summary:     "Create an overlay element",
		Description: "Creates an element of the given kind in the hidden state. Show it to start the enter animation.",
		Tags:        []string{"Overlay"},
	}, h.CreateElement)

	huma.Register(api, huma.Operation{
		OperationID: "getOverlayElement",
		Method:      "GET",
		Path:        "/api/v1/overlay/elements/{id}",
		Summary:     "Get one overlay element",
		Tags:        []string{"Overlay"},
	}, h.GetElement)

	huma.Register(api, huma.Operation{
		OperationID: "updateOverlayElement",
		Method:      "PUT",
		Path:        "/api/v1/overlay/elements/{id}",
		Summary:     "Update an overlay element",
		Description: "Replaces the element's presentation data. Kind and animation state are preserved.",
		Tags:        []string{"Overlay"},
	}, h.UpdateElement)

	huma.Register(api, huma.Operation{
		OperationID: "deleteOverlayElement",
		Method:      "DELETE",
		Path:        "/api/v1/overlay/elements/{id}",
		Summary:     "Delete an overlay element",
		Tags:        []string{"Overlay"},
	}, h.DeleteElement)

	huma.Register(api, huma.Operation{
		OperationID: "clearOverlayElements",
		Method:      "DELETE",
		Path:        "/api/v1/overlay/elements",
		Summary:     "Delete every overlay element",
		Tags:        []string{"Overlay"},
	}, h.ClearElements)

	huma.Register(api, huma.Operation{
		OperationID: "showOverlayElement",
		Method:      "POST",
		Path:        "/api/v1/overlay/elements/{id}/show",
		Summary:     "Show an overlay element",
		Tags:        []string{"Overlay"},
	}, h.ShowElement)

	huma.Register(api, huma.Operation{
		OperationID: "hideOverlayElement",
		Method:      "POST",
		Path:        "/api/v1/overlay/elements/{id}/hide",
		Summary:     "Hide an overlay element",
		Tags:        []string{"Overlay"},
	}, h.HideElement)
}

// ListOverlayInput is the input for listing elements.
type ListOverlayInput struct{}

// ListOverlayOutput is the output for listing elements.
type ListOverlayOutput struct {
	Body struct {
		Elements []models.OverlayElement `json:"elements"`
		Count    int                     `json:"count"`
	}
}

// ListElements returns every element in draw order.
func (h *OverlayHandler) ListElements(ctx context.Context, input *ListOverlayInput) (*ListOverlayOutput, error) {
	resp := &ListOverlayOutput{}
	resp.Body.Elements = h.overlay.List()
	resp.Body.Count = len(resp.Body.Elements)
	return resp, nil
}

// CreateOverlayInput is the input for creating an element.
type CreateOverlayInput struct {
	Body models.OverlayElement
}

// OverlayElementOutput carries a single element.
type OverlayElementOutput struct {
	Body models.OverlayElement
}

// CreateElement creates an element of the requested kind.
func (h *OverlayHandler) CreateElement(ctx context.Context, input *CreateOverlayInput) (*OverlayElementOutput, error) {
	el, err := h.overlay.Add(input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayElementOutput{Body: el}, nil
}

// GetOverlayInput is the input for fetching one element.
type GetOverlayInput struct {
	ID string `path:"id" required:"true"`
}

// GetElement returns one element by id.
func (h *OverlayHandler) GetElement(ctx context.Context, input *GetOverlayInput) (*OverlayElementOutput, error) {
	el, err := h.overlay.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayElementOutput{Body: el}, nil
}

// UpdateOverlayInput is the input for updating an element.
type UpdateOverlayInput struct {
	ID   string `path:"id" required:"true"`
	Body models.OverlayElement
}

// UpdateElement replaces an element's presentation data.
func (h *OverlayHandler) UpdateElement(ctx context.Context, input *UpdateOverlayInput) (*OverlayElementOutput, error) {
	el, err := h.overlay.Update(input.ID, input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayElementOutput{Body: el}, nil
}

// DeleteOverlayInput is the input for deleting an element.
type DeleteOverlayInput struct {
	ID string `path:"id" required:"true"`
}

// DeleteOverlayOutput is the output for delete and clear.
type DeleteOverlayOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeleteElement removes one element.
func (h *OverlayHandler) DeleteElement(ctx context.Context, input *DeleteOverlayInput) (*DeleteOverlayOutput, error) {
	if err := h.overlay.Remove(input.ID); err != nil {
		return nil, apiError(err)
	}
	resp := &DeleteOverlayOutput{}
	resp.Body.Deleted = true
	return resp, nil
}

// ClearOverlayInput is the input for clearing all elements.
type ClearOverlayInput struct{}

// ClearElements removes every element.
func (h *OverlayHandler) ClearElements(ctx context.Context, input *ClearOverlayInput) (*DeleteOverlayOutput, error) {
	h.overlay.Clear()
	resp := &DeleteOverlayOutput{}
	resp.Body.Deleted = true
	return resp, nil
}

// ShowOverlayInput is the input for showing an element.
type ShowOverlayInput struct {
	ID string `path:"id" required:"true"`
}

// ShowElement starts the element's enter animation.
func (h *OverlayHandler) ShowElement(ctx context.Context, input *ShowOverlayInput) (*OverlayElementOutput, error) {
	if err := h.overlay.Show(input.ID); err != nil {
		return nil, apiError(err)
	}
	el, err := h.overlay.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayElementOutput{Body: el}, nil
}

// HideOverlayInput is the input for hiding an element.
type HideOverlayInput struct {
	ID string `path:"id" required:"true"`
}

// HideElement starts the element's exit animation.
func (h *OverlayHandler) HideElement(ctx context.Context, input *HideOverlayInput) (*OverlayElementOutput, error) {
	if err := h.overlay.Hide(input.ID); err != nil {
		return nil, apiError(err)
	}
	el, err := h.overlay.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayElementOutput{Body: el}, nil
}
