package recording

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/pkg/units"
)

func sessionAt(t *testing.T, start time.Time, cameras ...string) *models.RecordingSession {
	t.Helper()
	session := &models.RecordingSession{
		ID:       models.NewSessionID(start),
		StartISO: start,
		Cameras:  make(map[string]*models.CameraRecording),
	}
	end := start.Add(30 * time.Minute)
	session.EndISO = &end
	for _, cam := range cameras {
		session.Cameras[cam] = &models.CameraRecording{
			CameraID: cam,
			File:     filepath.Join(cam, models.RecordingFileName(session.ID, "mp4")),
			Codec:    "h264",
			Status:   models.RecordStatusCompleted,
		}
	}
	return session
}

func TestStoreSaveGetList(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	older := sessionAt(t, time.Date(2025, 12, 18, 11, 44, 50, 0, time.UTC), "cam0")
	newer := sessionAt(t, time.Date(2025, 12, 19, 9, 0, 0, 0, time.UTC), "cam0", "cam1")
	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))

	got, err := store.Get("session_20251218_114450")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)
	assert.Equal(t, "cam0/recording_session_20251218_114450.mp4", filepath.ToSlash(got.Cameras["cam0"].File))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest first")

	_, err = store.Get("session_19990101_000000")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Delete(older.ID))
	list, err = store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.NoError(t, store.Delete(older.ID), "deleting twice is fine")
}

func TestStoreListSkipsGarbage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(sessionAt(t, time.Now(), "cam0")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSweepRemovesAgedSessions(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "sessions"))
	require.NoError(t, err)

	cfg := config.RecordingConfig{
		Root:        root,
		SessionsDir: store.Dir(),
		Retention: config.RetentionConfig{
			Enabled: true,
			Cron:    "0 3 * * *",
			MaxAge:  units.Duration(7 * 24 * time.Hour),
		},
	}

	old := sessionAt(t, time.Now().Add(-30*24*time.Hour), "cam0")
	fresh := sessionAt(t, time.Now().Add(-time.Hour), "cam0")
	require.NoError(t, store.Save(old))
	require.NoError(t, store.Save(fresh))

	for _, session := range []*models.RecordingSession{old, fresh} {
		file := filepath.Join(root, session.Cameras["cam0"].File)
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
		require.NoError(t, os.WriteFile(file, []byte("mp4"), 0o644))
	}

	manager := NewManager(&config.Config{Recording: cfg}, store, nil, nil, nil, nil, slog.New(slog.DiscardHandler))
	sweeper, err := NewSweeper(cfg, store, manager, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	require.NoError(t, sweeper.Sweep(context.Background()))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)

	assert.NoFileExists(t, filepath.Join(root, old.Cameras["cam0"].File))
	assert.FileExists(t, filepath.Join(root, fresh.Cameras["cam0"].File))
}

func TestNewSweeperRejectsBadCron(t *testing.T) {
	cfg := config.RecordingConfig{Retention: config.RetentionConfig{Cron: "not a cron"}}
	_, err := NewSweeper(cfg, nil, nil, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
