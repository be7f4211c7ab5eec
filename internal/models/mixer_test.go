package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransition(t *testing.T) {
	tests := []struct {
		input   string
		want    TransitionKind
		wantErr bool
	}{
		{"cut", TransitionCut, false},
		{"mix", TransitionMix, false},
		{"auto", TransitionAuto, false},
		{"", TransitionCut, false},
		{"fade", "", true},
		{"MIX", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTransition(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	got, err := ParseMode("recorder")
	require.NoError(t, err)
	assert.Equal(t, ModeRecorder, got)

	got, err = ParseMode("vdo_publisher")
	require.NoError(t, err)
	assert.Equal(t, ModeVDOPublisher, got)

	_, err = ParseMode("studio")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseOverlayKind(t *testing.T) {
	for _, kind := range []OverlayKind{OverlayLowerThird, OverlayScoreboard, OverlayTicker, OverlayTimer, OverlayLogo} {
		got, err := ParseOverlayKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := ParseOverlayKind("banner")
	assert.ErrorIs(t, err, ErrUnknownOverlayKind)
}
