// Package recording owns record-all sessions: one subscribe pipeline per
// streaming camera, written as MP4 under the recording root, with a session
// manifest tracking what was captured. Recordings subscribe through the
// media server rather than tapping ingest directly, so a recorder crash can
// never take down a live stream.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/gst"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/pipeline"
	"github.com/jmylchreest/mixarr/pkg/format"
)

var (
	ErrSessionActive   = errors.New("recording session already active")
	ErrNoActiveSession = errors.New("no active recording session")
	ErrDiskFull        = errors.New("not enough free disk space")
	ErrNoSources       = errors.New("no recordable sources")
	ErrUnknownSource   = errors.New("unknown recording source")
	ErrSourceFinalized = errors.New("source already finalized in this session")
)

// startWait bounds how long a subscribe pipeline may take to produce its
// first buffer before the camera is marked failed for the session.
const startWait = 5 * time.Second

// Pipeline is the slice of the GStreamer runtime a recording drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	StopWithEOS(ctx context.Context) error
	Errors() <-chan error
	WaitFirstBuffer(ctx context.Context) error
}

// Factory constructs a pipeline from a parsed description.
type Factory func(name, description string, opts gst.Options) (Pipeline, error)

// StreamGate answers whether a camera is currently publishing. The ingest
// manager satisfies it.
type StreamGate interface {
	IsStreaming(cameraID string) bool
}

// CodecResolver reports what a media server path is actually carrying. The
// recording always follows the published codec: transcoding a stream just to
// match a config value would burn an encoder session for nothing.
type CodecResolver interface {
	PublishedCodec(ctx context.Context, path string) (string, error)
	IsReady(ctx context.Context, path string) bool
}

// DiskUsage returns the free bytes on the filesystem holding path.
type DiskUsage func(ctx context.Context, path string) (uint64, error)

// GopsutilDiskUsage is the production DiskUsage.
func GopsutilDiskUsage(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// recordSource is one stream a session captures.
type recordSource struct {
	id       string
	path     string
	isCamera bool
}

type activeSession struct {
	session   *models.RecordingSession
	pipelines map[string]Pipeline
	cancel    context.CancelFunc
	done      chan struct{}
	warned    bool
}

// Manager runs at most one recording session at a time.
type Manager struct {
	cfg     *config.Config
	store   *Store
	factory Factory
	gate    StreamGate
	codecs  CodecResolver
	disk    DiskUsage
	logger  *slog.Logger

	mu     sync.Mutex
	active *activeSession
}

// NewManager builds the recording manager. A nil diskUsage uses gopsutil.
func NewManager(cfg *config.Config, store *Store, factory Factory, gate StreamGate, codecs CodecResolver, diskUsage DiskUsage, logger *slog.Logger) *Manager {
	if diskUsage == nil {
		diskUsage = GopsutilDiskUsage
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		factory: factory,
		gate:    gate,
		codecs:  codecs,
		disk:    diskUsage,
		logger:  observability.WithComponent(logger, "recording"),
	}
}

// sources lists what this session should capture: every enabled camera,
// plus the program mix when mix recording is turned on.
func (m *Manager) sources() []recordSource {
	var srcs []recordSource
	for _, cam := range m.cfg.EnabledCameras() {
		srcs = append(srcs, recordSource{id: cam.ID, path: cam.ID, isCamera: true})
	}
	if m.cfg.Mixer.Enabled && m.cfg.Mixer.RecordingEnabled {
		srcs = append(srcs, recordSource{id: m.cfg.Mixer.MediaServerPath, path: m.cfg.Mixer.MediaServerPath})
	}
	return srcs
}

// sourceByID finds one recordable source.
func (m *Manager) sourceByID(id string) (recordSource, bool) {
	for _, src := range m.sources() {
		if src.id == id {
			return src, true
		}
	}
	return recordSource{}, false
}

// StartSession begins recording every available source. Cameras that are
// not streaming are reported failed in the returned session rather than
// failing the call; the call errors only when a session is already active,
// the disk guard refuses, or nothing at all could start.
func (m *Manager) StartSession(ctx context.Context) (*models.RecordingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, m.active.session.ID)
	}

	if err := m.checkDisk(ctx, nil); err != nil {
		return nil, err
	}

	srcs := m.sources()
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}

	now := time.Now()
	session := &models.RecordingSession{
		ID:       models.NewSessionID(now),
		StartISO: now,
		Cameras:  make(map[string]*models.CameraRecording, len(srcs)),
	}
	pipelines := make(map[string]Pipeline)

	for _, src := range srcs {
		rec := &models.CameraRecording{CameraID: src.id, Status: models.RecordStatusRecording}
		session.Cameras[src.id] = rec

		if err := m.startSource(ctx, src, session.ID, rec, pipelines); err != nil {
			rec.Status = models.RecordStatusFailed
			rec.Error = err.Error()
			session.Degraded = true
			m.logger.Warn("source not recordable",
				slog.String("session", session.ID),
				slog.String("source", src.id),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(pipelines) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSources, describeFailures(session))
	}

	if err := m.store.Save(session); err != nil {
		m.logger.Error("persisting session manifest failed",
			slog.String("session", session.ID),
			slog.String("error", err.Error()),
		)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.active = &activeSession{
		session:   session,
		pipelines: pipelines,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go m.watch(watchCtx, m.active)

	m.logger.Info("recording session started",
		slog.String("session", session.ID),
		slog.Int("recording", len(pipelines)),
		slog.Int("failed", len(session.Cameras)-len(pipelines)),
	)
	return cloneSession(session), nil
}

// startSource gates, resolves the published codec and spins up one
// subscribe pipeline.
func (m *Manager) startSource(ctx context.Context, src recordSource, sessionID string, rec *models.CameraRecording, pipelines map[string]Pipeline) error {
	if src.isCamera {
		if !m.gate.IsStreaming(src.id) {
			return errors.New("camera not streaming")
		}
	} else if !m.codecs.IsReady(ctx, src.path) {
		return errors.New("path has no publisher")
	}

	codecCtx, cancel := context.WithTimeout(ctx, startWait)
	codec, err := m.codecs.PublishedCodec(codecCtx, src.path)
	cancel()
	if err != nil {
		return fmt.Errorf("resolving published codec: %w", err)
	}
	rec.Codec = codec

	absFile := models.RecordingFilePath(m.cfg.Recording.Root, src.id, sessionID, "mp4")
	if err := os.MkdirAll(filepath.Dir(absFile), 0o755); err != nil {
		return fmt.Errorf("creating recording directory: %w", err)
	}

	spec := pipeline.RecordSubscribe(
		m.cfg.MediaServer.RTSPURL(src.path),
		codec,
		absFile,
		m.cfg.Recording.Fragmented,
		int(m.cfg.Recording.FragmentDuration.Milliseconds()),
	)

	pl, err := m.factory("record-"+src.id, spec.Description, gst.Options{Tap: spec.Tap})
	if err != nil {
		return err
	}
	if err := pl.Start(ctx); err != nil {
		pl.Stop()
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, startWait)
	err = pl.WaitFirstBuffer(waitCtx)
	cancel()
	if err != nil {
		pl.Stop()
		return fmt.Errorf("waiting for first buffer: %w", err)
	}

	pipelines[src.id] = pl
	// Manifests store paths relative to the recording root so the tree can
	// be moved wholesale.
	rec.File = filepath.Join(src.id, models.RecordingFileName(sessionID, "mp4"))
	return nil
}

// StopSession finalizes the active session. With nothing active it returns
// (nil, nil): a stop request is a statement of desired state, not a claim
// that recording was running.
func (m *Manager) StopSession(ctx context.Context) (*models.RecordingSession, error) {
	return m.stopSession(ctx, "")
}

func (m *Manager) stopSession(ctx context.Context, degradedReason string) (*models.RecordingSession, error) {
	m.mu.Lock()
	active := m.active
	m.active = nil
	m.mu.Unlock()

	if active == nil {
		return nil, nil
	}

	active.cancel()
	<-active.done

	session := active.session
	var g errgroup.Group
	var recMu sync.Mutex

	for id, pl := range active.pipelines {
		g.Go(func() error {
			eosCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Recording.FinalizeTimeout)
			defer cancel()

			err := pl.StopWithEOS(eosCtx)

			recMu.Lock()
			defer recMu.Unlock()
			rec := session.Cameras[id]
			if err != nil {
				rec.Status = models.RecordStatusFailed
				rec.Error = fmt.Sprintf("finalize: %v", err)
				session.Degraded = true
				m.logger.Error("recording finalize failed",
					slog.String("session", session.ID),
					slog.String("source", id),
					slog.String("error", err.Error()),
				)
			} else {
				rec.Status = models.RecordStatusCompleted
			}
			return nil
		})
	}
	g.Wait()

	end := time.Now()
	session.EndISO = &end
	if degradedReason != "" {
		session.Degraded = true
		m.logger.Error("recording session stopped by guard",
			slog.String("session", session.ID),
			slog.String("reason", degradedReason),
		)
	}

	if err := m.store.Save(session); err != nil {
		return cloneSession(session), fmt.Errorf("persisting session manifest: %w", err)
	}

	m.logger.Info("recording session stopped",
		slog.String("session", session.ID),
		slog.Duration("duration", end.Sub(session.StartISO).Round(time.Second)),
		slog.Bool("degraded", session.Degraded),
	)
	return cloneSession(session), nil
}

// StartCamera brings one source into the active session, typically a
// camera that was offline when the session began. The same gate as
// StartSession applies: a source that cannot start is reported failed in
// the session rather than failing the call. Starting a source that is
// already recording is a no-op; a source already finalized by StopCamera
// is refused, since its file path is fixed for the session and rewriting
// it would destroy the finished recording.
func (m *Manager) StartCamera(ctx context.Context, cameraID string) (*models.RecordingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveSession
	}

	src, ok := m.sourceByID(cameraID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cameraID)
	}

	if _, running := m.active.pipelines[src.id]; running {
		return cloneSession(m.active.session), nil
	}

	session := m.active.session
	rec := session.Cameras[src.id]
	if rec != nil && rec.Status == models.RecordStatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrSourceFinalized, src.id)
	}

	if err := m.checkDisk(ctx, m.active); err != nil {
		return nil, err
	}

	if rec == nil {
		rec = &models.CameraRecording{CameraID: src.id}
		session.Cameras[src.id] = rec
	}
	rec.Status = models.RecordStatusRecording
	rec.Error = ""

	if err := m.startSource(ctx, src, session.ID, rec, m.active.pipelines); err != nil {
		rec.Status = models.RecordStatusFailed
		rec.Error = err.Error()
		session.Degraded = true
		m.logger.Warn("source not recordable",
			slog.String("session", session.ID),
			slog.String("source", src.id),
			slog.String("error", err.Error()),
		)
	} else {
		m.logger.Info("source recording started",
			slog.String("session", session.ID),
			slog.String("source", src.id),
		)
	}

	if err := m.store.Save(session); err != nil {
		m.logger.Error("persisting session manifest failed",
			slog.String("session", session.ID),
			slog.String("error", err.Error()),
		)
	}
	return cloneSession(session), nil
}

// StopCamera finalizes one source's file while the session keeps running
// for the rest. Stopping the last source does not end the session; that
// stays an explicit StopSession. Stopping a source that is not recording
// is a no-op.
func (m *Manager) StopCamera(ctx context.Context, cameraID string) (*models.RecordingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveSession
	}

	session := m.active.session
	rec := session.Cameras[cameraID]
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cameraID)
	}

	pl, running := m.active.pipelines[cameraID]
	if !running {
		return cloneSession(session), nil
	}
	delete(m.active.pipelines, cameraID)

	eosCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Recording.FinalizeTimeout)
	err := pl.StopWithEOS(eosCtx)
	cancel()
	if err != nil {
		rec.Status = models.RecordStatusFailed
		rec.Error = fmt.Sprintf("finalize: %v", err)
		session.Degraded = true
		m.logger.Error("recording finalize failed",
			slog.String("session", session.ID),
			slog.String("source", cameraID),
			slog.String("error", err.Error()),
		)
	} else {
		rec.Status = models.RecordStatusCompleted
		m.logger.Info("source recording stopped",
			slog.String("session", session.ID),
			slog.String("source", cameraID),
		)
	}

	if err := m.store.Save(session); err != nil {
		m.logger.Error("persisting session manifest failed",
			slog.String("session", session.ID),
			slog.String("error", err.Error()),
		)
	}
	return cloneSession(session), nil
}

// Active returns a copy of the in-flight session, if any.
func (m *Manager) Active() (*models.RecordingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, false
	}
	return cloneSession(m.active.session), true
}

// ListSessions returns all persisted session manifests, newest first.
func (m *Manager) ListSessions() ([]*models.RecordingSession, error) {
	return m.store.List()
}

// GetSession returns one persisted session manifest.
func (m *Manager) GetSession(id string) (*models.RecordingSession, error) {
	return m.store.Get(id)
}

// watch guards a running session: it polls disk space at the configured
// interval and drains pipeline bus errors, downgrading individual sources
// without stopping the rest.
func (m *Manager) watch(ctx context.Context, active *activeSession) {
	defer close(active.done)

	ticker := time.NewTicker(m.cfg.Recording.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if m.active != active {
			m.mu.Unlock()
			return
		}
		stop := false
		if err := m.checkDisk(ctx, active); err != nil {
			stop = true
		}
		m.drainPipelineErrors(active)
		m.mu.Unlock()

		if stop {
			// stopSession re-acquires the lock and waits for this
			// goroutine, so mark done on the way out.
			go m.stopSession(context.WithoutCancel(ctx), "disk space below hard limit")
			return
		}
	}
}

// checkDisk enforces the two recording space thresholds. Below the warning
// threshold it logs once per session; below the hard threshold it returns
// ErrDiskFull. A failed statfs never blocks recording.
func (m *Manager) checkDisk(ctx context.Context, active *activeSession) error {
	free, err := m.disk(ctx, m.cfg.Recording.Root)
	if err != nil {
		m.logger.Warn("disk usage check failed", slog.String("error", err.Error()))
		return nil
	}

	if free < uint64(m.cfg.Recording.MinDiskSpace.Bytes()) {
		m.logger.Error("free space below hard limit",
			slog.String("free", format.Bytes(int64(free))),
			slog.String("limit", m.cfg.Recording.MinDiskSpace.String()),
		)
		return fmt.Errorf("%w: %s free, need %s", ErrDiskFull, format.Bytes(int64(free)), m.cfg.Recording.MinDiskSpace)
	}

	if free < uint64(m.cfg.Recording.WarningDiskSpace.Bytes()) {
		if active == nil || !active.warned {
			m.logger.Warn("free space below warning threshold",
				slog.String("free", format.Bytes(int64(free))),
				slog.String("threshold", m.cfg.Recording.WarningDiskSpace.String()),
			)
			if active != nil {
				active.warned = true
			}
		}
	}
	return nil
}

// drainPipelineErrors checks every recording pipeline for bus errors and
// fails just that source. Called with the manager lock held.
func (m *Manager) drainPipelineErrors(active *activeSession) {
	for id, pl := range active.pipelines {
		select {
		case err := <-pl.Errors():
			pl.Stop()
			delete(active.pipelines, id)
			rec := active.session.Cameras[id]
			rec.Status = models.RecordStatusFailed
			rec.Error = err.Error()
			active.session.Degraded = true
			m.logger.Error("recording pipeline failed",
				slog.String("session", active.session.ID),
				slog.String("source", id),
				slog.String("error", err.Error()),
			)
			if err := m.store.Save(active.session); err != nil {
				m.logger.Warn("persisting degraded manifest failed",
					slog.String("error", err.Error()),
				)
			}
		default:
		}
	}
}

// describeFailures summarizes why nothing started, for the StartSession
// error message.
func describeFailures(session *models.RecordingSession) string {
	parts := make([]string, 0, len(session.Cameras))
	for id, rec := range session.Cameras {
		parts = append(parts, fmt.Sprintf("%s: %s", id, rec.Error))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func cloneSession(session *models.RecordingSession) *models.RecordingSession {
	clone := *session
	clone.Cameras = make(map[string]*models.CameraRecording, len(session.Cameras))
	for id, rec := range session.Cameras {
		r := *rec
		clone.Cameras[id] = &r
	}
	if session.EndISO != nil {
		end := *session.EndISO
		clone.EndISO = &end
	}
	return &clone
}
