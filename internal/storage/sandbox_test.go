package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSandboxCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")

	sb, err := NewSandbox(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(sb.Root()))
}

func TestResolve(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		escapes bool
	}{
		{"plain file", "recording.mp4", false},
		{"camera subdir", "cam0/recording_session_20260101_120000.mp4", false},
		{"deep nesting", "a/b/c/file.mp4", false},
		{"dot dot prefix name", "..file.mp4", false},
		{"parent escape", "../escape.mp4", true},
		{"nested parent escape", "cam0/../../escape.mp4", true},
		{"absolute path", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, err := sb.Resolve(tt.path)
			if tt.escapes {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "escapes")
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(abs, sb.Root()+string(filepath.Separator)))
		})
	}
}

func TestResolveEmptyPath(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	_, err = sb.Resolve("")
	assert.Error(t, err)
}

func TestStatAndRemove(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	abs := filepath.Join(sb.Root(), "cam0", "clip.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("payload"), 0o644))

	info, err := sb.Stat(filepath.Join("cam0", "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size())

	require.NoError(t, sb.Remove(filepath.Join("cam0", "clip.mp4")))
	assert.NoFileExists(t, abs)
}

func TestRemoveMissingFile(t *testing.T) {
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, sb.Remove("cam0/never-written.mp4"))
}

func TestRemoveRefusesEscape(t *testing.T) {
	parent := t.TempDir()
	sb, err := NewSandbox(filepath.Join(parent, "root"))
	require.NoError(t, err)

	outside := filepath.Join(parent, "outside.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	assert.Error(t, sb.Remove("../outside.mp4"))
	assert.FileExists(t, outside)
}
