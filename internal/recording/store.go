package recording

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/jmylchreest/mixarr/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists session manifests as one JSON file per session. Writes go
// through a rename so a crash mid-write never leaves a torn manifest.
type Store struct {
	dir string
}

// NewStore creates the sessions directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes one session manifest atomically.
func (s *Store) Save(session *models.RecordingSession) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", session.ID, err)
	}
	path := models.SessionFilePath(s.dir, session.ID)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing session %s: %w", session.ID, err)
	}
	return nil
}

// Get loads one session manifest by id.
func (s *Store) Get(sessionID string) (*models.RecordingSession, error) {
	data, err := os.ReadFile(models.SessionFilePath(s.dir, sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	var session models.RecordingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	return &session, nil
}

// List returns all persisted sessions, newest first. Unreadable manifests
// are skipped rather than failing the listing.
func (s *Store) List() ([]*models.RecordingSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	var sessions []*models.RecordingSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		session, err := s.Get(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartISO.After(sessions[j].StartISO)
	})
	return sessions, nil
}

// Delete removes one session manifest.
func (s *Store) Delete(sessionID string) error {
	err := os.Remove(models.SessionFilePath(s.dir, sessionID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Dir returns the sessions directory path.
func (s *Store) Dir() string {
	return s.dir
}

// sessionFiles lists the manifest's recording files as paths relative to
// the recording root, sorted for stable iteration.
func sessionFiles(session *models.RecordingSession) []string {
	var files []string
	for _, cam := range session.Cameras {
		if cam.File != "" {
			files = append(files, cam.File)
		}
	}
	sort.Strings(files)
	return files
}
