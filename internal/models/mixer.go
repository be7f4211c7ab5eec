package models

import (
	"fmt"
	"time"
)

// PipelineState mirrors the media pipeline's lifecycle state.
type PipelineState string

const (
	PipelineStateNull    PipelineState = "null"
	PipelineStatePaused  PipelineState = "paused"
	PipelineStatePlaying PipelineState = "playing"
)

// MixerHealth summarizes program output liveness.
type MixerHealth string

const (
	MixerHealthHealthy   MixerHealth = "healthy"
	MixerHealthDegraded  MixerHealth = "degraded"
	MixerHealthUnhealthy MixerHealth = "unhealthy"
)

// TransitionKind selects how preview is promoted to program.
type TransitionKind string

const (
	TransitionCut  TransitionKind = "cut"
	TransitionMix  TransitionKind = "mix"
	TransitionAuto TransitionKind = "auto"
)

// ParseTransition parses a transition kind from its wire form.
func ParseTransition(s string) (TransitionKind, error) {
	switch TransitionKind(s) {
	case TransitionCut, TransitionMix, TransitionAuto:
		return TransitionKind(s), nil
	case "":
		return TransitionCut, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransition, s)
}

// SceneChange reports how the last scene application was carried out.
type SceneChange string

const (
	// SceneChangePadUpdate means placements changed via pad properties only.
	SceneChangePadUpdate SceneChange = "pad_update"
	// SceneChangeRebuild means the source superset changed and the pipeline
	// was rebuilt, briefly interrupting the program stream.
	SceneChangeRebuild SceneChange = "rebuild"
)

// TransitionStatus is the currently running (or last finished) transition.
type TransitionStatus struct {
	Kind       TransitionKind `json:"kind"`
	DurationMS int64          `json:"duration_ms"`
	Running    bool           `json:"running"`
	// FellBackToCut is set when a mix/auto demanded a source outside the
	// superset and was downgraded to cut plus rebuild.
	FellBackToCut bool `json:"fell_back_to_cut,omitempty"`
}

// MixerStatus is a value snapshot of the mixer.
type MixerStatus struct {
	State        PipelineState     `json:"state"`
	Health       MixerHealth       `json:"health,omitempty"`
	ProgramScene string            `json:"program_scene,omitempty"`
	PreviewScene string            `json:"preview_scene,omitempty"`
	Transition   *TransitionStatus `json:"transition,omitempty"`
	LastChange   SceneChange       `json:"last_change,omitempty"`
	Superset     []string          `json:"superset,omitempty"`
	Rebuilds     int               `json:"rebuilds"`
	LastBuffer   time.Time         `json:"last_buffer"`
	LastError    string            `json:"last_error,omitempty"`
}
