package models

// RevealState is the lifecycle state of one browser-rendered output.
type RevealState string

const (
	RevealStateIdle     RevealState = "idle"
	RevealStateStarting RevealState = "starting"
	RevealStateRunning  RevealState = "running"
	RevealStateStopping RevealState = "stopping"
)

// Fixed reveal output ids. Exactly these two outputs exist; they run
// independently and may publish simultaneously.
const (
	RevealOutputSlides        = "slides"
	RevealOutputSlidesOverlay = "slides_overlay"
)

// RevealOutputState is a value snapshot of one output.
type RevealOutputState struct {
	OutputID       string      `json:"output_id"`
	State          RevealState `json:"state"`
	PresentationID string      `json:"presentation_id,omitempty"`
	URL            string      `json:"url,omitempty"`
	MediaMTXPath   string      `json:"mediamtx_path"`
	LastError      string      `json:"last_error,omitempty"`
}
