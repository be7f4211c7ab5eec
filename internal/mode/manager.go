// Package mode arbitrates which side owns the shared capture devices. In
// recorder mode the in-process ingest supervisors hold the devices; in
// vdo_publisher mode ingest is suspended and per-camera external publisher
// units take over. The two never run at once.
package mode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
)

// unitPollInterval is the cadence of is-active confirmation polls.
const unitPollInterval = 100 * time.Millisecond

// defaultPublisherUnit is the systemd unit template when none is configured.
const defaultPublisherUnit = "vdo-publisher@%s.service"

// ServiceRunner drives the external publisher units. The production runner
// shells out to systemctl; tests substitute a fake.
type ServiceRunner interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (bool, error)
}

// IngestControl suspends and resumes the in-process capture side. The ingest
// manager satisfies it; its Stop returns only after every capture device is
// released.
type IngestControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// RecordingControl ends an active session before the capture side goes away.
type RecordingControl interface {
	StopSession(ctx context.Context) (*models.RecordingSession, error)
}

// Manager owns the current mode and serializes transitions.
type Manager struct {
	cfg      *config.Config
	ingest   IngestControl
	recorder RecordingControl
	services ServiceRunner
	logger   *slog.Logger

	mu            sync.Mutex
	current       models.Mode
	transitioning bool
	changedAt     time.Time
	lastErr       string
}

// NewManager wires the mode manager. No mode is entered until Startup or
// SetMode.
func NewManager(cfg *config.Config, ingest IngestControl, recorder RecordingControl, services ServiceRunner, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		ingest:   ingest,
		recorder: recorder,
		services: services,
		logger:   observability.WithComponent(logger, "mode"),
	}
}

// Startup enters the persisted mode, or the configured default when no valid
// state file exists.
func (m *Manager) Startup(ctx context.Context) error {
	target := m.readState()
	m.logger.Info("entering startup mode", slog.String("mode", string(target)))
	_, err := m.SetMode(ctx, target)
	return err
}

// Mode returns the current mode.
func (m *Manager) Mode() models.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Status returns a snapshot of the mode manager.
func (m *Manager) Status() models.ModeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.ModeStatus{
		Mode:          m.current,
		Transitioning: m.transitioning,
		ChangedAt:     m.changedAt,
		LastError:     m.lastErr,
	}
}

// SetMode transitions to the target mode: stop the outgoing side to
// completion, start the incoming side, persist the result. Any failure
// reverts to the previous mode and is reported. Setting the current mode is
// a no-op.
func (m *Manager) SetMode(ctx context.Context, target models.Mode) (models.ModeStatus, error) {
	m.mu.Lock()
	if m.transitioning {
		st := m.statusLocked()
		m.mu.Unlock()
		return st, models.ErrModeTransitioning
	}
	if m.current == target {
		st := m.statusLocked()
		m.mu.Unlock()
		return st, nil
	}
	prev := m.current
	m.transitioning = true
	m.mu.Unlock()

	err := m.apply(ctx, target)
	if err == nil {
		if perr := m.persist(target); perr != nil {
			err = fmt.Errorf("persisting mode state: %w", perr)
		}
	}
	if err != nil && prev != "" {
		m.logger.Error("mode transition failed, reverting",
			slog.String("target", string(target)),
			slog.String("error", err.Error()),
		)
		if rerr := m.apply(ctx, prev); rerr != nil {
			m.logger.Error("mode revert failed",
				slog.String("mode", string(prev)),
				slog.String("error", rerr.Error()),
			)
		}
	}

	m.mu.Lock()
	m.transitioning = false
	if err != nil {
		m.lastErr = err.Error()
	} else {
		m.current = target
		m.changedAt = time.Now()
		m.lastErr = ""
		m.logger.Info("mode changed", slog.String("mode", string(target)))
	}
	st := m.statusLocked()
	m.mu.Unlock()
	return st, err
}

func (m *Manager) statusLocked() models.ModeStatus {
	return models.ModeStatus{
		Mode:          m.current,
		Transitioning: m.transitioning,
		ChangedAt:     m.changedAt,
		LastError:     m.lastErr,
	}
}

// apply enters the target mode from whatever state the machine is in. Both
// paths first force the other side down, so entering a mode is idempotent
// and safe after a crash that left things half way.
func (m *Manager) apply(ctx context.Context, target models.Mode) error {
	switch target {
	case models.ModeRecorder:
		return m.enterRecorder(ctx)
	case models.ModeVDOPublisher:
		return m.enterPublisher(ctx)
	}
	return fmt.Errorf("%w: %q", models.ErrUnknownMode, target)
}

func (m *Manager) enterRecorder(ctx context.Context) error {
	for _, unit := range m.units() {
		if err := m.stopUnit(ctx, unit); err != nil {
			return err
		}
	}
	if err := m.ingest.Start(ctx); err != nil {
		return fmt.Errorf("starting ingest: %w", err)
	}
	return nil
}

func (m *Manager) enterPublisher(ctx context.Context) error {
	if _, err := m.recorder.StopSession(ctx); err != nil {
		m.logger.Warn("stopping recording session", slog.String("error", err.Error()))
	}
	m.ingest.Stop(ctx)

	var started []string
	for _, unit := range m.units() {
		if err := m.startUnit(ctx, unit); err != nil {
			for _, s := range started {
				if serr := m.stopUnit(ctx, s); serr != nil {
					m.logger.Warn("rolling back publisher unit",
						slog.String("unit", s),
						slog.String("error", serr.Error()),
					)
				}
			}
			return err
		}
		started = append(started, unit)
	}
	return nil
}

// startUnit starts one publisher unit and waits until systemd reports it
// active.
func (m *Manager) startUnit(ctx context.Context, unit string) error {
	sctx, cancel := context.WithTimeout(ctx, m.serviceTimeout())
	defer cancel()
	if err := m.services.Start(sctx, unit); err != nil {
		return fmt.Errorf("starting %s: %w", unit, err)
	}
	if err := m.waitUnit(sctx, unit, true); err != nil {
		return fmt.Errorf("confirming %s active: %w", unit, err)
	}
	m.logger.Info("publisher unit started", slog.String("unit", unit))
	return nil
}

// stopUnit stops one publisher unit and waits until it is inactive, which is
// the point the unit's capture device is released.
func (m *Manager) stopUnit(ctx context.Context, unit string) error {
	sctx, cancel := context.WithTimeout(ctx, m.serviceTimeout())
	defer cancel()
	if err := m.services.Stop(sctx, unit); err != nil {
		return fmt.Errorf("stopping %s: %w", unit, err)
	}
	if err := m.waitUnit(sctx, unit, false); err != nil {
		return fmt.Errorf("confirming %s inactive: %w", unit, err)
	}
	return nil
}

// waitUnit polls is-active until the unit reaches the wanted state or the
// context expires.
func (m *Manager) waitUnit(ctx context.Context, unit string, wantActive bool) error {
	ticker := time.NewTicker(unitPollInterval)
	defer ticker.Stop()
	for {
		active, err := m.services.IsActive(ctx, unit)
		if err != nil {
			return err
		}
		if active == wantActive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// units lists the publisher units for every enabled camera.
func (m *Manager) units() []string {
	template := m.cfg.ModeManager.PublisherUnitTemplate
	if template == "" {
		template = defaultPublisherUnit
	}
	cams := m.cfg.EnabledCameras()
	units := make([]string, 0, len(cams))
	for _, cam := range cams {
		units = append(units, fmt.Sprintf(template, cam.ID))
	}
	return units
}

func (m *Manager) serviceTimeout() time.Duration {
	if m.cfg.ModeManager.ServiceTimeout > 0 {
		return m.cfg.ModeManager.ServiceTimeout
	}
	return 10 * time.Second
}

// readState loads the persisted mode, falling back to the configured
// default on a missing or invalid state file.
func (m *Manager) readState() models.Mode {
	fallback, err := models.ParseMode(m.cfg.ModeManager.DefaultMode)
	if err != nil {
		fallback = models.ModeRecorder
	}

	data, err := os.ReadFile(m.cfg.ModeManager.StateFile)
	if err != nil {
		return fallback
	}
	var state models.ModeState
	if err := json.Unmarshal(data, &state); err != nil {
		m.logger.Warn("unreadable mode state file, using default",
			slog.String("path", m.cfg.ModeManager.StateFile),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	mode, err := models.ParseMode(string(state.Mode))
	if err != nil {
		m.logger.Warn("invalid mode in state file, using default",
			slog.String("mode", string(state.Mode)),
		)
		return fallback
	}
	return mode
}

// persist writes the mode state file atomically.
func (m *Manager) persist(mode models.Mode) error {
	path := m.cfg.ModeManager.StateFile
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(models.ModeState{Mode: mode}, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(data, '\n'), 0o644)
}
