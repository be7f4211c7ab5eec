package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/recording"
)

type fakeRecordingService struct {
	active    *models.RecordingSession
	sessions  []*models.RecordingSession
	startErr  error
	stopErr   error
	cameraErr error
}

func (f *fakeRecordingService) StartSession(ctx context.Context) (*models.RecordingSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.active, nil
}

func (f *fakeRecordingService) StopSession(ctx context.Context) (*models.RecordingSession, error) {
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	stopped := f.active
	f.active = nil
	return stopped, nil
}

func (f *fakeRecordingService) StartCamera(ctx context.Context, cameraID string) (*models.RecordingSession, error) {
	if f.cameraErr != nil {
		return nil, f.cameraErr
	}
	return f.active, nil
}

func (f *fakeRecordingService) StopCamera(ctx context.Context, cameraID string) (*models.RecordingSession, error) {
	if f.cameraErr != nil {
		return nil, f.cameraErr
	}
	if rec := f.active.Cameras[cameraID]; rec != nil {
		rec.Status = models.RecordStatusCompleted
	}
	return f.active, nil
}

func (f *fakeRecordingService) Active() (*models.RecordingSession, bool) {
	return f.active, f.active != nil
}

func (f *fakeRecordingService) ListSessions() ([]*models.RecordingSession, error) {
	return f.sessions, nil
}

func (f *fakeRecordingService) GetSession(id string) (*models.RecordingSession, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, recording.ErrSessionNotFound
}

func degradedSession() *models.RecordingSession {
	return &models.RecordingSession{
		ID:       "session_20260825_120000",
		StartISO: time.Now(),
		Cameras: map[string]*models.CameraRecording{
			"cam0": {CameraID: "cam0", File: "/rec/cam0/recording_x.mp4", Status: models.RecordStatusRecording},
			"cam1": {CameraID: "cam1", Status: models.RecordStatusFailed, Error: "camera not streaming"},
		},
		Degraded: true,
	}
}

func TestStartRecordingReportsPerCameraOutcomes(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{active: degradedSession()})

	output, err := handler.StartRecording(context.Background(), &StartRecordingInput{})
	require.NoError(t, err)

	assert.Equal(t, models.StartOutcomeStarted, output.Body.Results["cam0"])
	assert.Equal(t, models.StartOutcomeFailed, output.Body.Results["cam1"])
	assert.True(t, output.Body.Session.Degraded)
}

func TestStartRecordingConflicts(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{startErr: recording.ErrSessionActive})
	_, err := handler.StartRecording(context.Background(), &StartRecordingInput{})
	assertStatus(t, err, http.StatusConflict)

	handler = NewRecordingHandler(&fakeRecordingService{startErr: recording.ErrDiskFull})
	_, err = handler.StartRecording(context.Background(), &StartRecordingInput{})
	assertStatus(t, err, http.StatusInsufficientStorage)
}

func TestStopRecordingWithoutSessionIsNoop(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{})

	output, err := handler.StopRecording(context.Background(), &StopRecordingInput{})
	require.NoError(t, err)
	assert.False(t, output.Body.Stopped)
	assert.Nil(t, output.Body.Session)
}

func TestStopRecordingReturnsSession(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{active: degradedSession()})

	output, err := handler.StopRecording(context.Background(), &StopRecordingInput{})
	require.NoError(t, err)
	assert.True(t, output.Body.Stopped)
	require.NotNil(t, output.Body.Session)
	assert.Equal(t, "session_20260825_120000", output.Body.Session.ID)
}

func TestStartCameraRecordingOutcome(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{active: degradedSession()})

	output, err := handler.StartCamera(context.Background(), &StartCameraRecordingInput{CameraID: "cam0"})
	require.NoError(t, err)
	assert.Equal(t, models.StartOutcomeStarted, output.Body.Outcome)

	output, err = handler.StartCamera(context.Background(), &StartCameraRecordingInput{CameraID: "cam1"})
	require.NoError(t, err)
	assert.Equal(t, models.StartOutcomeFailed, output.Body.Outcome)
}

func TestStartCameraRecordingErrors(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{cameraErr: recording.ErrNoActiveSession})
	_, err := handler.StartCamera(context.Background(), &StartCameraRecordingInput{CameraID: "cam0"})
	assertStatus(t, err, http.StatusConflict)

	handler = NewRecordingHandler(&fakeRecordingService{cameraErr: recording.ErrUnknownSource})
	_, err = handler.StartCamera(context.Background(), &StartCameraRecordingInput{CameraID: "cam9"})
	assertStatus(t, err, http.StatusNotFound)

	handler = NewRecordingHandler(&fakeRecordingService{cameraErr: recording.ErrSourceFinalized})
	_, err = handler.StartCamera(context.Background(), &StartCameraRecordingInput{CameraID: "cam0"})
	assertStatus(t, err, http.StatusConflict)
}

func TestStopCameraRecordingFinalizesOneSource(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{active: degradedSession()})

	output, err := handler.StopCamera(context.Background(), &StopCameraRecordingInput{CameraID: "cam0"})
	require.NoError(t, err)
	require.NotNil(t, output.Body.Session)
	assert.Equal(t, models.RecordStatusCompleted, output.Body.Session.Cameras["cam0"].Status)
}

func TestGetRecordingStatus(t *testing.T) {
	svc := &fakeRecordingService{}
	handler := NewRecordingHandler(svc)

	output, err := handler.GetStatus(context.Background(), &GetRecordingStatusInput{})
	require.NoError(t, err)
	assert.False(t, output.Body.Recording)

	svc.active = degradedSession()
	output, err = handler.GetStatus(context.Background(), &GetRecordingStatusInput{})
	require.NoError(t, err)
	assert.True(t, output.Body.Recording)
}

func TestGetSessionNotFound(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{})
	_, err := handler.GetSession(context.Background(), &GetSessionInput{ID: "session_x"})
	assertStatus(t, err, http.StatusNotFound)
}

func TestListSessions(t *testing.T) {
	handler := NewRecordingHandler(&fakeRecordingService{sessions: []*models.RecordingSession{
		degradedSession(),
	}})

	output, err := handler.ListSessions(context.Background(), &ListSessionsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, output.Body.Count)
}
