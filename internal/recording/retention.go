package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/jmylchreest/mixarr/pkg/format"
)

// Sweeper prunes recordings and session manifests older than the retention
// age on a cron schedule. The active session is never touched.
type Sweeper struct {
	cfg      config.RecordingConfig
	store    *Store
	manager  *Manager
	media    *storage.Sandbox
	logger   *slog.Logger
	schedule cron.Schedule

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper validates the cron expression up front so a bad schedule fails
// at startup, not at 3 AM. File deletion is sandboxed to the recording
// root, manifest contents notwithstanding.
func NewSweeper(cfg config.RecordingConfig, store *Store, manager *Manager, logger *slog.Logger) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.Retention.Cron)
	if err != nil {
		return nil, fmt.Errorf("parsing retention cron %q: %w", cfg.Retention.Cron, err)
	}
	media, err := storage.NewSandbox(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		cfg:      cfg,
		store:    store,
		manager:  manager,
		media:    media,
		logger:   observability.WithComponent(logger, "retention"),
		schedule: schedule,
	}, nil
}

// Start launches the schedule loop. A disabled sweeper starts nothing.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.Retention.Enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()

	s.logger.Info("retention sweeper started",
		slog.String("cron", s.cfg.Retention.Cron),
		slog.String("schedule", format.CronDescription(s.cfg.Retention.Cron)),
		slog.String("max_age", s.cfg.Retention.MaxAge.String()),
	)
}

// Stop halts the schedule loop and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", slog.String("error", err.Error()))
		}
	}
}

// Sweep deletes sessions whose recordings have aged out, manifests
// included. Exposed so an operator can trigger it through the API without
// waiting for the schedule.
func (s *Sweeper) Sweep(ctx context.Context) error {
	done := observability.TimedOperation(ctx, s.logger, "retention_sweep")
	defer done()

	cutoff := time.Now().Add(-s.cfg.Retention.MaxAge.Std())

	sessions, err := s.store.List()
	if err != nil {
		return err
	}

	var activeID string
	if active, ok := s.manager.Active(); ok {
		activeID = active.ID
	}

	removed := 0
	var reclaimed int64
	for _, session := range sessions {
		if session.ID == activeID {
			continue
		}
		end := session.StartISO
		if session.EndISO != nil {
			end = *session.EndISO
		}
		if !end.Before(cutoff) {
			continue
		}

		freed, err := s.removeSession(session)
		reclaimed += freed
		if err != nil {
			s.logger.Warn("removing aged session failed",
				slog.String("session", session.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	s.logger.Info("retention sweep complete",
		slog.Int("removed", removed),
		slog.Int("kept", len(sessions)-removed),
		slog.String("reclaimed", format.Bytes(reclaimed)),
	)
	return nil
}

func (s *Sweeper) removeSession(session *models.RecordingSession) (int64, error) {
	var reclaimed int64
	for _, file := range sessionFiles(session) {
		info, statErr := s.media.Stat(file)
		if err := s.media.Remove(file); err != nil {
			s.logger.Warn("leaving recording file behind",
				slog.String("session", session.ID),
				slog.String("file", file),
				slog.String("error", err.Error()),
			)
			continue
		}
		if statErr == nil {
			reclaimed += info.Size()
		}
	}
	return reclaimed, s.store.Delete(session.ID)
}
