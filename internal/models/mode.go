package models

import (
	"fmt"
	"time"
)

// Mode is the process-wide arbitration between mutually exclusive roles that
// share the capture devices.
type Mode string

const (
	// ModeRecorder runs the ingest supervisors and the recording subscriber.
	ModeRecorder Mode = "recorder"
	// ModeVDOPublisher suspends ingest and hands the devices to per-camera
	// external publisher services.
	ModeVDOPublisher Mode = "vdo_publisher"
)

// ParseMode parses a mode from its wire form.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRecorder, ModeVDOPublisher:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// ModeState is the persisted state file shape.
type ModeState struct {
	Mode Mode `json:"mode"`
}

// ModeStatus is a value snapshot of the mode manager.
type ModeStatus struct {
	Mode          Mode      `json:"mode"`
	Transitioning bool      `json:"transitioning"`
	ChangedAt     time.Time `json:"changed_at"`
	LastError     string    `json:"last_error,omitempty"`
}
