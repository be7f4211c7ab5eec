package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

// RecordingService is the slice of the recording manager the endpoints use.
type RecordingService interface {
	StartSession(ctx context.Context) (*models.RecordingSession, error)
	StopSession(ctx context.Context) (*models.RecordingSession, error)
	StartCamera(ctx context.Context, cameraID string) (*models.RecordingSession, error)
	StopCamera(ctx context.Context, cameraID string) (*models.RecordingSession, error)
	Active() (*models.RecordingSession, bool)
	ListSessions() ([]*models.RecordingSession, error)
	GetSession(id string) (*models.RecordingSession, error)
}

// RecordingHandler serves the recording session endpoints.
type RecordingHandler struct {
	recorder RecordingService
}

// NewRecordingHandler creates a recording handler.
func NewRecordingHandler(recorder RecordingService) *RecordingHandler {
	return &RecordingHandler{recorder: recorder}
}

// Register registers the recording routes with the API.
func (h *RecordingHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "startRecording",
		Method:      "POST",
		Path:        "/api/v1/recording/start",
		Summary:     "Start a recording session",
		Description: "Starts recording every recordable source. Cameras that are not streaming are reported as failed without failing the request.",
		Tags:        []string{"Recording"},
	}, h.StartRecording)

	huma.Register(api, huma.Operation{
		OperationID: "stopRecording",
		Method:      "POST",
		Path:        "/api/v1/recording/stop",
		Summary:     "Stop the active recording session",
		Description: "Finalizes every per-camera file and writes the session manifest. Stopping with no active session is a no-op.",
		Tags:        []string{"Recording"},
	}, h.StopRecording)

	huma.Register(api, huma.Operation{
		OperationID: "startCameraRecording",
		Method:      "POST",
		Path:        "/api/v1/recording/cameras/{camera_id}/start",
		Summary:     "Start recording one source in the active session",
		Description: "Brings one source into the active session, typically a camera that was offline when the session began. A source that still cannot start is reported as failed without failing the request.",
		Tags:        []string{"Recording"},
	}, h.StartCamera)

	huma.Register(api, huma.Operation{
		OperationID: "stopCameraRecording",
		Method:      "POST",
		Path:        "/api/v1/recording/cameras/{camera_id}/stop",
		Summary:     "Stop recording one source",
		Description: "Finalizes one source's file while the session keeps recording the rest.",
		Tags:        []string{"Recording"},
	}, h.StopCamera)

	huma.Register(api, huma.Operation{
		OperationID: "getRecordingStatus",
		Method:      "GET",
		Path:        "/api/v1/recording",
		Summary:     "Get recording status",
		Tags:        []string{"Recording"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "listRecordingSessions",
		Method:      "GET",
		Path:        "/api/v1/recording/sessions",
		Summary:     "List recording sessions",
		Tags:        []string{"Recording"},
	}, h.ListSessions)

	huma.Register(api, huma.Operation{
		OperationID: "getRecordingSession",
		Method:      "GET",
		Path:        "/api/v1/recording/sessions/{id}",
		Summary:     "Get one recording session",
		Tags:        []string{"Recording"},
	}, h.GetSession)
}

// StartRecordingInput is the input for starting a session.
type StartRecordingInput struct{}

// StartRecordingOutput is the output for starting a session.
type StartRecordingOutput struct {
	Body struct {
		Session *models.RecordingSession       `json:"session"`
		Results map[string]models.StartOutcome `json:"results"`
	}
}

// StartRecording starts a session across all recordable sources and reports
// the per-camera outcome.
func (h *RecordingHandler) StartRecording(ctx context.Context, input *StartRecordingInput) (*StartRecordingOutput, error) {
	session, err := h.recorder.StartSession(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &StartRecordingOutput{}
	resp.Body.Session = session
	resp.Body.Results = startResults(session)
	return resp, nil
}

// startResults derives the per-camera outcome map from the session.
func startResults(session *models.RecordingSession) map[string]models.StartOutcome {
	results := make(map[string]models.StartOutcome, len(session.Cameras))
	for id, rec := range session.Cameras {
		if rec.Status == models.RecordStatusFailed {
			results[id] = models.StartOutcomeFailed
		} else {
			results[id] = models.StartOutcomeStarted
		}
	}
	return results
}

// StartCameraRecordingInput selects the source to start.
type StartCameraRecordingInput struct {
	CameraID string `path:"camera_id" required:"true"`
}

// StartCameraRecordingOutput is the output for starting one source.
type StartCameraRecordingOutput struct {
	Body struct {
		Session *models.RecordingSession `json:"session"`
		Outcome models.StartOutcome      `json:"outcome"`
	}
}

// StartCamera starts recording one source within the active session.
func (h *RecordingHandler) StartCamera(ctx context.Context, input *StartCameraRecordingInput) (*StartCameraRecordingOutput, error) {
	session, err := h.recorder.StartCamera(ctx, input.CameraID)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &StartCameraRecordingOutput{}
	resp.Body.Session = session
	resp.Body.Outcome = models.StartOutcomeStarted
	if rec := session.Cameras[input.CameraID]; rec != nil && rec.Status == models.RecordStatusFailed {
		resp.Body.Outcome = models.StartOutcomeFailed
	}
	return resp, nil
}

// StopCameraRecordingInput selects the source to stop.
type StopCameraRecordingInput struct {
	CameraID string `path:"camera_id" required:"true"`
}

// StopCameraRecordingOutput is the output for stopping one source.
type StopCameraRecordingOutput struct {
	Body struct {
		Session *models.RecordingSession `json:"session"`
	}
}

// StopCamera finalizes one source's file; the session stays active.
func (h *RecordingHandler) StopCamera(ctx context.Context, input *StopCameraRecordingInput) (*StopCameraRecordingOutput, error) {
	session, err := h.recorder.StopCamera(ctx, input.CameraID)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &StopCameraRecordingOutput{}
	resp.Body.Session = session
	return resp, nil
}

// StopRecordingInput is the input for stopping the session.
type StopRecordingInput struct{}

// StopRecordingOutput is the output for stopping the session.
type StopRecordingOutput struct {
	Body struct {
		Session *models.RecordingSession `json:"session,omitempty"`
		Stopped bool                     `json:"stopped"`
	}
}

// StopRecording stops the active session. With nothing active it reports
// stopped=false and succeeds.
func (h *RecordingHandler) StopRecording(ctx context.Context, input *StopRecordingInput) (*StopRecordingOutput, error) {
	session, err := h.recorder.StopSession(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &StopRecordingOutput{}
	resp.Body.Session = session
	resp.Body.Stopped = session != nil
	return resp, nil
}

// GetRecordingStatusInput is the input for recording status.
type GetRecordingStatusInput struct{}

// GetRecordingStatusOutput is the output for recording status.
type GetRecordingStatusOutput struct {
	Body struct {
		Recording bool                     `json:"recording"`
		Session   *models.RecordingSession `json:"session,omitempty"`
	}
}

// GetStatus reports whether a session is active and its manifest.
func (h *RecordingHandler) GetStatus(ctx context.Context, input *GetRecordingStatusInput) (*GetRecordingStatusOutput, error) {
	resp := &GetRecordingStatusOutput{}
	if session, ok := h.recorder.Active(); ok {
		resp.Body.Recording = true
		resp.Body.Session = session
	}
	return resp, nil
}

// ListSessionsInput is the input for listing sessions.
type ListSessionsInput struct{}

// ListSessionsOutput is the output for listing sessions.
type ListSessionsOutput struct {
	Body struct {
		Sessions []*models.RecordingSession `json:"sessions"`
		Count    int                        `json:"count"`
	}
}

// ListSessions returns every persisted session manifest, newest first.
func (h *RecordingHandler) ListSessions(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
	sessions, err := h.recorder.ListSessions()
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListSessionsOutput{}
	resp.Body.Sessions = sessions
	resp.Body.Count = len(sessions)
	return resp, nil
}

// GetSessionInput is the input for fetching one session.
type GetSessionInput struct {
	ID string `path:"id" required:"true"`
}

// GetSessionOutput is the output for fetching one session.
type GetSessionOutput struct {
	Body *models.RecordingSession
}

// GetSession returns one session manifest by id.
func (h *RecordingHandler) GetSession(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
	session, err := h.recorder.GetSession(input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &GetSessionOutput{Body: session}, nil
}
