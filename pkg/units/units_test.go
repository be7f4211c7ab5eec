package units

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Size
		wantErr bool
	}{
		{"bare bytes", "4096", 4096, false},
		{"megabytes", "500MB", 500 * MB, false},
		{"gigabytes with space", "1.5 GB", Size(1.5 * float64(GB)), false},
		{"explicit binary unit", "2GiB", 2 * GB, false},
		{"lowercase", "10mb", 10 * MB, false},
		{"short unit", "5m", 5 * MB, false},
		{"empty", "", 0, true},
		{"unknown unit", "5xb", 0, true},
		{"no number", "MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSizeString(t *testing.T) {
	tests := []struct {
		size Size
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{2 * KB, "2KB"},
		{Size(1.5 * float64(GB)), "1.5GB"},
		{500 * MB, "500MB"},
		{-2 * MB, "-2MB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.size.String())
	}
}

func TestSizeJSONRoundTrip(t *testing.T) {
	out, err := json.Marshal(500 * MB)
	require.NoError(t, err)
	assert.Equal(t, `"500MB"`, string(out))

	var s Size
	require.NoError(t, json.Unmarshal([]byte(`"500MB"`), &s))
	assert.Equal(t, 500*MB, s)

	require.NoError(t, json.Unmarshal([]byte(`1048576`), &s))
	assert.Equal(t, 1*MB, s)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"standard", "500ms", 500 * time.Millisecond, false},
		{"hours", "36h", 36 * time.Hour, false},
		{"days", "30d", 30 * 24 * time.Hour, false},
		{"weeks", "2w", 14 * 24 * time.Hour, false},
		{"mixed", "1w2d12h", (7*24 + 2*24 + 12) * time.Hour, false},
		{"empty", "", 0, true},
		{"garbage", "soon", 0, true},
		{"dangling unit", "d", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Std())
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Std())

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))
}
