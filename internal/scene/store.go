// Package scene loads and serves mixer scene definitions from a directory
// of JSON files. The directory can be watched so operators drop in or edit
// scene files without restarting the engine.
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
)

// reloadDebounce coalesces the bursts of writes editors produce into one
// reload.
const reloadDebounce = 500 * time.Millisecond

// Store holds the validated scene set.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	scenes map[string]*models.Scene

	watchMu   sync.Mutex
	watcher   *fsnotify.Watcher
	onReload  []func()
	debouncer *time.Timer
}

// NewStore loads every scene in dir. Individual invalid files are logged
// and skipped; an unreadable directory is an error.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		dir:    dir,
		logger: observability.WithComponent(logger, "scenes"),
		scenes: make(map[string]*models.Scene),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the scene directory and atomically swaps the scene set.
// A file that fails to parse or validate is skipped so one broken scene
// never takes the rest down.
func (s *Store) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading scenes directory: %w", err)
	}

	scenes := make(map[string]*models.Scene)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}

		scene, err := s.loadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping scene file",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if existing, dup := scenes[scene.ID]; dup {
			s.logger.Warn("duplicate scene id, keeping first",
				slog.String("id", scene.ID),
				slog.String("kept", existing.Name),
				slog.String("skipped", name),
			)
			continue
		}
		scenes[scene.ID] = scene
	}

	s.mu.Lock()
	s.scenes = scenes
	s.mu.Unlock()

	s.logger.Info("scenes loaded", slog.Int("count", len(scenes)))
	return nil
}

func (s *Store) loadFile(path string) (*models.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scene models.Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	return &scene, nil
}

// Get returns a deep copy of one scene, so callers can never mutate the
// stored set.
func (s *Store) Get(id string) (*models.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene, ok := s.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene %q: %w", id, models.ErrSceneNotFound)
	}
	return scene.Clone(), nil
}

// List returns copies of all scenes sorted by id.
func (s *Store) List() []*models.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Scene, 0, len(s.scenes))
	for _, scene := range s.scenes {
		out = append(out, scene.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the sorted scene ids.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.scenes))
	for id := range s.scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnReload registers a callback fired after every successful reload. The
// mixer uses it to revalidate the program scene against the new set.
func (s *Store) OnReload(fn func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// Watch starts the directory watcher. Edits are debounced, reloaded and
// announced to OnReload subscribers. Watching an already watched store is
// a no-op.
func (s *Store) Watch(ctx context.Context) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating scene watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	s.watcher = watcher

	go s.watchLoop(ctx, watcher)
	s.logger.Info("watching scene directory", slog.String("dir", s.dir))
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("scene watcher error", slog.String("error", err.Error()))
		}
	}
}

// scheduleReload debounces reloads so editor write bursts collapse into
// one.
func (s *Store) scheduleReload() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.debouncer != nil {
		s.debouncer.Stop()
	}
	s.debouncer = time.AfterFunc(reloadDebounce, func() {
		if err := s.Reload(); err != nil {
			s.logger.Error("scene reload failed", slog.String("error", err.Error()))
			return
		}
		s.watchMu.Lock()
		callbacks := make([]func(), len(s.onReload))
		copy(callbacks, s.onReload)
		s.watchMu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	})
}

// Close stops the watcher.
func (s *Store) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.debouncer != nil {
		s.debouncer.Stop()
	}
}
