package models

import (
	"fmt"
	"time"
)

// OverlayKind enumerates the drawable broadcast graphic variants.
type OverlayKind string

const (
	OverlayLowerThird OverlayKind = "lower_third"
	OverlayScoreboard OverlayKind = "scoreboard"
	OverlayTicker     OverlayKind = "ticker"
	OverlayTimer      OverlayKind = "timer"
	OverlayLogo       OverlayKind = "logo"
)

// ParseOverlayKind parses an overlay element kind from its wire form.
func ParseOverlayKind(s string) (OverlayKind, error) {
	switch OverlayKind(s) {
	case OverlayLowerThird, OverlayScoreboard, OverlayTicker, OverlayTimer, OverlayLogo:
		return OverlayKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOverlayKind, s)
}

// AnimationState is the per-element animation machine state. Transitions are
// driven by frame presentation timestamps, never wall time.
type AnimationState string

const (
	AnimationHidden   AnimationState = "hidden"
	AnimationEntering AnimationState = "entering"
	AnimationVisible  AnimationState = "visible"
	AnimationExiting  AnimationState = "exiting"
)

// OverlayElement is one drawable element. Variant-specific fields are a flat
// superset; unused fields stay at their zero value and are omitted on the
// wire.
type OverlayElement struct {
	ID   string      `json:"id"`
	Kind OverlayKind `json:"kind"`

	// Normalized anchor position.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Shared presentation data.
	Text     string `json:"text,omitempty"`
	Subtext  string `json:"subtext,omitempty"`
	FGColor  string `json:"fg_color,omitempty"`
	BGColor  string `json:"bg_color,omitempty"`
	FontSize int    `json:"font_size,omitempty"`

	// Scoreboard.
	HomeName  string `json:"home_name,omitempty"`
	AwayName  string `json:"away_name,omitempty"`
	HomeScore int    `json:"home_score,omitempty"`
	AwayScore int    `json:"away_score,omitempty"`

	// Ticker.
	Items []string `json:"items,omitempty"`
	// Speed is normalized screen widths per second of scroll.
	Speed float64 `json:"speed,omitempty"`

	// Timer.
	CountDown bool          `json:"count_down,omitempty"`
	TimerFrom time.Duration `json:"timer_from,omitempty"`

	// Logo. Image is a path to a PNG on the engine host; with no image the
	// element renders Text as a badge.
	Image string `json:"image,omitempty"`

	// Animation.
	State         AnimationState `json:"state"`
	EnterDuration time.Duration  `json:"enter_duration,omitempty"`
	ExitDuration  time.Duration  `json:"exit_duration,omitempty"`
	// AutoHide schedules an exit this long after the element becomes fully
	// visible. Zero keeps the element up until it is hidden explicitly.
	AutoHide time.Duration `json:"auto_hide,omitempty"`
}
