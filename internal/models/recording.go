package models

import (
	"fmt"
	"path/filepath"
	"time"
)

// RecordStatus describes the state of one camera's recording.
type RecordStatus string

const (
	RecordStatusRecording RecordStatus = "recording"
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusFailed    RecordStatus = "failed"
)

// StartOutcome is the per-camera result of a record start request. A camera
// whose ingest is not streaming yields StartOutcomeFailed without failing the
// request as a whole.
type StartOutcome string

const (
	StartOutcomeStarted StartOutcome = "started"
	StartOutcomeFailed  StartOutcome = "failed"
)

// CameraRecording is the per-camera slice of a recording session.
type CameraRecording struct {
	CameraID string       `json:"camera_id"`
	File     string       `json:"file"`
	Codec    string       `json:"codec,omitempty"`
	Status   RecordStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// RecordingSession is one record-all span. It is persisted as
// {sessions_dir}/{session_id}.json at start and again when the session
// stops, so a crash still leaves evidence of what was being recorded.
type RecordingSession struct {
	ID       string                      `json:"session_id"`
	StartISO time.Time                   `json:"start_iso"`
	EndISO   *time.Time                  `json:"end_iso,omitempty"`
	Cameras  map[string]*CameraRecording `json:"cameras"`
	// Degraded marks sessions where at least one camera failed or the disk
	// guard forced an early stop.
	Degraded bool `json:"degraded,omitempty"`
}

// NewSessionID derives the session identifier from the start wall time:
// session_YYYYMMDD_HHMMSS.
func NewSessionID(start time.Time) string {
	return "session_" + start.Format("20060102_150405")
}

// RecordingFileName returns the file name for one camera's recording within a
// session.
func RecordingFileName(sessionID, ext string) string {
	return fmt.Sprintf("recording_%s.%s", sessionID, ext)
}

// RecordingFilePath returns {root}/{camera_id}/recording_{session_id}.{ext}.
func RecordingFilePath(root, cameraID, sessionID, ext string) string {
	return filepath.Join(root, cameraID, RecordingFileName(sessionID, ext))
}

// SessionFilePath returns {sessionsDir}/{session_id}.json.
func SessionFilePath(sessionsDir, sessionID string) string {
	return filepath.Join(sessionsDir, sessionID+".json")
}
