package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors returned by model Validate methods.
var (
	ErrSceneIDRequired    = errors.New("scene id is required")
	ErrSceneNoSlots       = errors.New("scene must define at least one slot")
	ErrSlotSourceRequired = errors.New("slot source is required")
	ErrSlotOutOfRange     = errors.New("slot placement must be normalized to [0,1]")
	ErrSlotAlphaRange     = errors.New("slot alpha must be within [0,1]")
	ErrSceneResolution    = errors.New("scene resolution must be positive")

	ErrUnknownTransition  = errors.New("unknown transition kind")
	ErrUnknownMode        = errors.New("unknown mode")
	ErrUnknownOverlayKind = errors.New("unknown overlay element kind")

	ErrSceneNotFound = errors.New("scene not found")
)

// Mixer lifecycle errors.
var (
	ErrMixerDisabled     = errors.New("mixer is disabled in configuration")
	ErrMixerNotRunning   = errors.New("mixer is not running")
	ErrMixerRunning      = errors.New("mixer is already running")
	ErrNoPreviewScene    = errors.New("no preview scene staged")
	ErrTransitionRunning = errors.New("a transition is already running")
)

// ErrModeTransitioning rejects mode changes while one is in flight.
var ErrModeTransitioning = errors.New("a mode transition is in progress")

// MissingSourcesError rejects a scene whose sources are not all publishing.
// The caller gets the exact set of dead sources instead of a silently
// substituted layout.
type MissingSourcesError struct {
	SceneID string
	Missing []string
}

func (e *MissingSourcesError) Error() string {
	return fmt.Sprintf("scene %s references unavailable sources: %s",
		e.SceneID, strings.Join(e.Missing, ", "))
}
