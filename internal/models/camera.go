package models

import "time"

// CameraStatus describes the ingest state of one capture input.
type CameraStatus string

const (
	CameraStatusIdle      CameraStatus = "idle"
	CameraStatusStarting  CameraStatus = "starting"
	CameraStatusStreaming CameraStatus = "streaming"
	CameraStatusNoSignal  CameraStatus = "no_signal"
	CameraStatusError     CameraStatus = "error"
)

// CameraState is a point-in-time snapshot of one camera's ingest supervisor.
// It is always returned by value; callers never share the supervisor's
// internal record.
type CameraState struct {
	CameraID        string       `json:"camera_id"`
	Status          CameraStatus `json:"status"`
	Width           int          `json:"width,omitempty"`
	Height          int          `json:"height,omitempty"`
	HasSignal       bool         `json:"has_signal"`
	PublishPath     string       `json:"publish_path,omitempty"`
	LastProbe       time.Time    `json:"last_probe"`
	LastBuffer      time.Time    `json:"last_buffer"`
	RestartAttempts int          `json:"restart_attempts"`
	LastError       string       `json:"last_error,omitempty"`
}
