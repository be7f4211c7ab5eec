// Package ingest supervises the camera publish pipelines. Each enabled
// camera gets a supervisor that probes its capture device, publishes to the
// media server while signal is present, and recovers from signal loss, stale
// output and pipeline errors without operator intervention.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/pipeline"
)

var (
	ErrNotRunning     = errors.New("ingest not running")
	ErrUnknownCamera  = errors.New("unknown camera")
	ErrCameraDisabled = errors.New("camera disabled")
)

// supervisorHandle pairs a supervisor with its own cancellation, so one
// camera can be stopped without touching the rest.
type supervisorHandle struct {
	sup    *supervisor
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *supervisorHandle) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Manager runs one supervisor per enabled camera.
type Manager struct {
	cfg     *config.Config
	factory Factory
	prober  SignalProber
	logger  *slog.Logger
	http    *http.Client

	mu          sync.Mutex
	supervisors map[string]*supervisorHandle
	order       []string
	runCtx      context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
}

// NewManager builds the ingest manager. The factory and prober are injected
// so tests can run the full supervision loop without GStreamer or devices.
func NewManager(cfg *config.Config, factory Factory, prober SignalProber, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		factory:     factory,
		prober:      prober,
		logger:      observability.WithComponent(logger, "ingest"),
		http:        &http.Client{Timeout: 10 * time.Second},
		supervisors: make(map[string]*supervisorHandle),
	}
}

// Start launches a supervisor for every enabled camera and fires the
// external camera start hooks. Cameras without signal stay in no_signal and
// keep getting probed; a camera that cannot start never fails the engine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.runCtx = runCtx
	m.cancel = cancel
	m.supervisors = make(map[string]*supervisorHandle)
	m.order = nil

	for _, cam := range m.cfg.EnabledCameras() {
		m.launchLocked(cam)
	}
	count := len(m.order)
	m.mu.Unlock()

	m.logger.Info("ingest started", slog.Int("cameras", count))
	m.fireHooks(ctx, true)
	return nil
}

// launchLocked spins up one supervisor under the manager's run context.
// Called with the lock held.
func (m *Manager) launchLocked(cam config.CameraConfig) {
	sup := newSupervisor(
		cam,
		m.cfg.Ingest,
		pipeline.Platform(m.cfg.Ingest.Platform),
		m.cfg.MediaServer.RTSPURL(cam.ID),
		m.factory,
		m.prober,
		m.logger,
	)
	supCtx, cancel := context.WithCancel(m.runCtx)
	handle := &supervisorHandle{sup: sup, cancel: cancel, done: make(chan struct{})}
	m.supervisors[cam.ID] = handle
	if !slices.Contains(m.order, cam.ID) {
		m.order = append(m.order, cam.ID)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(handle.done)
		sup.run(supCtx)
	}()
}

// Stop cancels all supervisors, waits for their pipelines to tear down and
// fires the external camera stop hooks. Safe to call more than once.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.fireHooks(ctx, false)
	m.logger.Info("ingest stopped")
}

// StartCamera resumes supervision of one camera, replacing a stopped
// supervisor if one exists. For an external camera it fires the start hook
// instead. Starting a camera that is already supervised is a no-op;
// disabled cameras are refused so their devices are never probed.
func (m *Manager) StartCamera(ctx context.Context, cameraID string) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}

	if handle, ok := m.supervisors[cameraID]; ok && !handle.stopped() {
		m.mu.Unlock()
		return nil
	}

	if cam, ok := m.cfg.CameraByID(cameraID); ok {
		if !cam.Enabled {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrCameraDisabled, cameraID)
		}
		m.launchLocked(cam)
		m.mu.Unlock()
		m.logger.Info("camera supervision started", slog.String("camera", cameraID))
		return nil
	}
	m.mu.Unlock()

	if ext, ok := m.externalByID(cameraID); ok {
		m.fireHook(ctx, ext, true)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownCamera, cameraID)
}

// StopCamera halts supervision of one camera and waits for its pipeline to
// tear down; the camera keeps appearing in status as idle until StartCamera
// brings it back. For an external camera it fires the stop hook instead.
// Stopping a camera that is not supervised is a no-op.
func (m *Manager) StopCamera(ctx context.Context, cameraID string) error {
	m.mu.Lock()
	handle, ok := m.supervisors[cameraID]
	m.mu.Unlock()

	if !ok {
		if ext, extOK := m.externalByID(cameraID); extOK {
			m.fireHook(ctx, ext, false)
			return nil
		}
		if _, camOK := m.cfg.CameraByID(cameraID); camOK {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownCamera, cameraID)
	}

	handle.cancel()
	select {
	case <-handle.done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for camera %s to stop: %w", cameraID, ctx.Err())
	}
	m.logger.Info("camera supervision stopped", slog.String("camera", cameraID))
	return nil
}

// States returns a snapshot of every supervised camera, ordered by
// configuration order.
func (m *Manager) States() []models.CameraState {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make([]models.CameraState, 0, len(m.order))
	for _, id := range m.order {
		states = append(states, m.supervisors[id].sup.snapshot())
	}
	return states
}

// State returns one camera's snapshot.
func (m *Manager) State(cameraID string) (models.CameraState, bool) {
	m.mu.Lock()
	handle, ok := m.supervisors[cameraID]
	m.mu.Unlock()
	if !ok {
		return models.CameraState{}, false
	}
	return handle.sup.snapshot(), true
}

// IsStreaming reports whether a camera is actively publishing. Recording
// start gates on this per camera.
func (m *Manager) IsStreaming(cameraID string) bool {
	m.mu.Lock()
	handle, ok := m.supervisors[cameraID]
	m.mu.Unlock()
	return ok && handle.sup.streaming()
}

// StreamingCameras returns the ids of all cameras currently publishing,
// sorted.
func (m *Manager) StreamingCameras() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, handle := range m.supervisors {
		if handle.sup.streaming() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) externalByID(id string) (config.ExternalCameraConfig, bool) {
	for _, ext := range m.cfg.ExternalCameras {
		if ext.ID == id {
			return ext, true
		}
	}
	return config.ExternalCameraConfig{}, false
}

// fireHooks notifies every external network camera that the engine wants
// it publishing (or not).
func (m *Manager) fireHooks(ctx context.Context, start bool) {
	for _, ext := range m.cfg.ExternalCameras {
		m.fireHook(ctx, ext, start)
	}
}

// fireHook calls one external camera hook. Hooks are best effort: a camera
// that does not answer is its own supervisor's problem, never the engine's.
func (m *Manager) fireHook(ctx context.Context, ext config.ExternalCameraConfig, start bool) {
	url := ext.StopURL
	if start {
		url = ext.StartURL
	}
	if url == "" {
		return
	}

	timeout := ext.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hookCtx, http.MethodGet, url, nil)
	if err != nil {
		m.logger.Warn("invalid external camera hook",
			slog.String("camera", ext.ID),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return
	}

	resp, err := m.http.Do(req)
	if err != nil {
		m.logger.Warn("external camera hook failed",
			slog.String("camera", ext.ID),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
	m.logger.Debug("external camera hook fired",
		slog.String("camera", ext.ID),
		slog.Int("status", resp.StatusCode),
	)
}
