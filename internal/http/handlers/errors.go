// Package handlers implements the REST and raw HTTP handlers of the mixarr
// control plane. Handlers translate subsystem errors into structured
// responses; subsystems themselves never see HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/overlay"
	"github.com/jmylchreest/mixarr/internal/recording"
	"github.com/jmylchreest/mixarr/internal/reveal"
)

// apiError maps subsystem sentinels onto HTTP statuses. Unknown errors come
// back as 500 without leaking internals beyond the message.
func apiError(err error) error {
	switch {
	case err == nil:
		return nil

	// Missing things.
	case errors.Is(err, models.ErrSceneNotFound),
		errors.Is(err, recording.ErrSessionNotFound),
		errors.Is(err, recording.ErrUnknownSource),
		errors.Is(err, overlay.ErrElementNotFound),
		errors.Is(err, reveal.ErrUnknownOutput):
		return huma.Error404NotFound(err.Error())

	// Requests that are malformed regardless of system state.
	case errors.Is(err, models.ErrUnknownTransition),
		errors.Is(err, models.ErrUnknownMode),
		errors.Is(err, models.ErrUnknownOverlayKind),
		errors.Is(err, models.ErrSceneIDRequired),
		errors.Is(err, models.ErrSceneNoSlots),
		errors.Is(err, models.ErrSlotSourceRequired),
		errors.Is(err, models.ErrSlotOutOfRange),
		errors.Is(err, models.ErrSlotAlphaRange),
		errors.Is(err, models.ErrSceneResolution):
		return huma.Error400BadRequest(err.Error())

	// Valid requests against the wrong state.
	case errors.Is(err, models.ErrMixerDisabled),
		errors.Is(err, models.ErrMixerRunning),
		errors.Is(err, models.ErrMixerNotRunning),
		errors.Is(err, models.ErrNoPreviewScene),
		errors.Is(err, models.ErrTransitionRunning),
		errors.Is(err, models.ErrModeTransitioning),
		errors.Is(err, recording.ErrSessionActive),
		errors.Is(err, recording.ErrNoActiveSession),
		errors.Is(err, recording.ErrSourceFinalized),
		errors.Is(err, recording.ErrNoSources):
		return huma.Error409Conflict(err.Error())

	case errors.Is(err, recording.ErrDiskFull):
		return huma.NewError(http.StatusInsufficientStorage, err.Error())
	}

	var missing *models.MissingSourcesError
	if errors.As(err, &missing) {
		return huma.Error409Conflict(missing.Error())
	}

	return huma.Error500InternalServerError(err.Error())
}
