package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// SceneService is the slice of the scene store the endpoints use.
type SceneService interface {
	List() []*models.Scene
	Get(id string) (*models.Scene, error)
	Reload() error
}

// SceneHandler serves the scene definition endpoints. Scenes are defined on
// disk; the API is read-only apart from forcing a reload.
type SceneHandler struct {
	scenes SceneService
}

// NewSceneHandler creates a scene handler.
func NewSceneHandler(scenes SceneService) *SceneHandler {
	return &SceneHandler{scenes: scenes}
}

// Register registers the scene routes with the API.
func (h *SceneHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listScenes",
		Method:      "GET",
		Path:        "/api/v1/scenes",
		Summary:     "List scene definitions",
		Tags:        []string{"Scenes"},
	}, h.ListScenes)

	huma.Register(api, huma.Operation{
		OperationID: "getScene",
		Method:      "GET",
		Path:        "/api/v1/scenes/{id}",
		Summary:     "Get one scene definition",
		Tags:        []string{"Scenes"},
	}, h.GetScene)

	huma.Register(api, huma.Operation{
		OperationID: "reloadScenes",
		Method:      "POST",
		Path:        "/api/v1/scenes/reload",
		Summary:     "Reload scene definitions from disk",
		Tags:        []string{"Scenes"},
	}, h.ReloadScenes)
}

// ListScenesInput is the input for listing scenes.
type ListScenesInput struct{}

// ListScenesOutput is the output for listing scenes.
type ListScenesOutput struct {
	Body struct {
		Scenes []*models.Scene `json:"scenes"`
		Count  int             `json:"count"`
	}
}

// ListScenes returns every loaded scene.
func (h *SceneHandler) ListScenes(ctx context.Context, input *ListScenesInput) (*ListScenesOutput, error) {
	resp := &ListScenesOutput{}
	resp.Body.Scenes = h.scenes.List()
	resp.Body.Count = len(resp.Body.Scenes)
	return resp, nil
}

// GetSceneInput is the input for fetching one scene.
type GetSceneInput struct {
	ID string `path:"id" required:"true"`
}

// GetSceneOutput is the output for fetching one scene.
type GetSceneOutput struct {
	Body *models.Scene
}

// GetScene returns one scene by id.
func (h *SceneHandler) GetScene(ctx context.Context, input *GetSceneInput) (*GetSceneOutput, error) {
	scene, err := h.scenes.Get(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &GetSceneOutput{Body: scene}, nil
}

// ReloadScenesInput is the input for reloading scenes.
type ReloadScenesInput struct{}

// ReloadScenesOutput is the output for reloading scenes.
type ReloadScenesOutput struct {
	Body struct {
		Count int `json:"count"`
	}
}

// ReloadScenes re-reads the scenes directory and reports how many loaded.
func (h *SceneHandler) ReloadScenes(ctx context.Context, input *ReloadScenesInput) (*ReloadScenesOutput, error) {
	if err := h.scenes.Reload(); err != nil {
		return nil, apiError(err)
	}

	resp := &ReloadScenesOutput{}
	resp.Body.Count = len(h.scenes.List())
	return resp, nil
}
