package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/gst"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/pipeline"
	"github.com/jmylchreest/mixarr/internal/v4l2"
)

// Pipeline is the slice of the GStreamer runtime a camera supervisor drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	Errors() <-chan error
	LastBuffer() (time.Time, time.Duration)
	WaitFirstBuffer(ctx context.Context) error
	IsRunning() bool
}

// Factory constructs a pipeline from a parsed description.
type Factory func(name, description string, opts gst.Options) (Pipeline, error)

// SignalProber detects whether a capture device has an active source.
type SignalProber interface {
	Probe(ctx context.Context, device string) (v4l2.Resolution, bool)
}

// supervisor owns one camera: it probes for signal, runs the publish
// pipeline while signal is present, and restarts it when it goes stale or
// errors. All decisions happen on the health tick so a wedged pipeline can
// never wedge the supervisor.
type supervisor struct {
	cam      config.CameraConfig
	cfg      config.IngestConfig
	platform pipeline.Platform
	rtspURL  string
	factory  Factory
	prober   SignalProber
	logger   *slog.Logger

	mu            sync.Mutex
	state         models.CameraState
	pl            Pipeline
	builtWidth    int
	builtHeight   int
	missedProbes  int
	attempts      int
	nextRestartAt time.Time
}

func newSupervisor(cam config.CameraConfig, cfg config.IngestConfig, platform pipeline.Platform, rtspURL string, factory Factory, prober SignalProber, logger *slog.Logger) *supervisor {
	return &supervisor{
		cam:      cam,
		cfg:      cfg,
		platform: platform,
		rtspURL:  rtspURL,
		factory:  factory,
		prober:   prober,
		logger:   observability.WithCamera(logger, cam.ID),
		state: models.CameraState{
			CameraID:    cam.ID,
			Status:      models.CameraStatusIdle,
			PublishPath: cam.ID,
		},
	}
}

// run drives the supervisor until the context is cancelled. The first cycle
// fires immediately so cameras with signal come up without waiting a full
// health interval.
func (s *supervisor) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle is one pass of the health loop: probe, then reconcile the pipeline
// against what the probe saw.
func (s *supervisor) cycle(ctx context.Context) {
	res, hasSignal := s.prober.Probe(ctx, s.cam.Device)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastProbe = time.Now()
	s.state.HasSignal = hasSignal

	if !hasSignal {
		s.handleNoSignal()
		return
	}

	s.missedProbes = 0
	s.state.Width = res.Width
	s.state.Height = res.Height

	if s.pl != nil && s.pl.IsRunning() {
		s.checkRunning(ctx, res)
		return
	}

	if time.Now().Before(s.nextRestartAt) {
		return
	}
	s.startPipeline(ctx, res)
}

// handleNoSignal tolerates transient probe misses before declaring the
// signal lost. EDID renegotiation on some HDMI bridges blanks a probe or
// two even while capture continues.
func (s *supervisor) handleNoSignal() {
	s.missedProbes++

	if s.pl != nil && s.pl.IsRunning() {
		if s.missedProbes < s.cfg.SignalLossCycles {
			s.logger.Debug("probe missed, keeping pipeline",
				slog.Int("missed", s.missedProbes),
				slog.Int("threshold", s.cfg.SignalLossCycles),
			)
			return
		}
		s.logger.Warn("signal lost, stopping publish pipeline",
			slog.Int("missed_probes", s.missedProbes),
		)
		s.stopLocked()
		s.attempts = 0
		s.nextRestartAt = time.Time{}
	}

	s.state.Status = models.CameraStatusNoSignal
	s.state.Width = 0
	s.state.Height = 0
}

// checkRunning watches a live pipeline for bus errors, stale output and
// source resolution changes.
func (s *supervisor) checkRunning(ctx context.Context, res v4l2.Resolution) {
	select {
	case err := <-s.pl.Errors():
		s.logger.Error("publish pipeline failed", slog.String("error", err.Error()))
		s.stopLocked()
		s.scheduleRestart(err)
		return
	default:
	}

	lastBuf, _ := s.pl.LastBuffer()
	if !lastBuf.IsZero() && time.Since(lastBuf) > s.cfg.StaleTimeout {
		err := fmt.Errorf("no buffers for %s", time.Since(lastBuf).Round(time.Second))
		s.logger.Warn("publish pipeline stale, restarting",
			slog.Time("last_buffer", lastBuf),
		)
		s.stopLocked()
		s.scheduleRestart(err)
		return
	}

	if res.Width != s.builtWidth || res.Height != s.builtHeight {
		s.logger.Info("source resolution changed, rebuilding pipeline",
			slog.String("from", fmt.Sprintf("%dx%d", s.builtWidth, s.builtHeight)),
			slog.String("to", fmt.Sprintf("%dx%d", res.Width, res.Height)),
		)
		s.stopLocked()
		s.attempts = 0
		s.nextRestartAt = time.Time{}
		s.startPipeline(ctx, res)
		return
	}

	s.state.Status = models.CameraStatusStreaming
	s.state.LastBuffer = lastBuf
	s.state.LastError = ""
	s.attempts = 0
	s.state.RestartAttempts = 0
}

// startPipeline builds and starts the publish pipeline at the probed
// resolution. Called with the lock held.
func (s *supervisor) startPipeline(ctx context.Context, res v4l2.Resolution) {
	s.state.Status = models.CameraStatusStarting

	spec := pipeline.IngestPublish(s.cam, res.Width, res.Height, s.platform, s.rtspURL)
	pl, err := s.factory("ingest-"+s.cam.ID, spec.Description, gst.Options{Tap: spec.Tap})
	if err != nil {
		s.scheduleRestart(err)
		return
	}

	if err := pl.Start(ctx); err != nil {
		pl.Stop()
		s.scheduleRestart(err)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.startupWait())
	err = pl.WaitFirstBuffer(waitCtx)
	cancel()
	if err != nil {
		pl.Stop()
		s.scheduleRestart(fmt.Errorf("waiting for first buffer: %w", err))
		return
	}

	s.pl = pl
	s.builtWidth = res.Width
	s.builtHeight = res.Height
	s.state.Status = models.CameraStatusStreaming
	s.state.LastError = ""
	s.logger.Info("camera publishing",
		slog.String("resolution", fmt.Sprintf("%dx%d", res.Width, res.Height)),
		slog.String("path", s.cam.ID),
	)
}

// startupWait bounds how long a starting pipeline may go without producing
// its first buffer.
func (s *supervisor) startupWait() time.Duration {
	wait := s.cfg.HealthInterval / 2
	if wait > 5*time.Second {
		wait = 5 * time.Second
	}
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// scheduleRestart records a failure and pushes the next start attempt out
// with exponential backoff. Attempts keep counting past the cap but the
// delay stops growing, so a camera that eventually recovers still comes
// back.
func (s *supervisor) scheduleRestart(cause error) {
	s.attempts++
	s.state.RestartAttempts = s.attempts
	s.state.Status = models.CameraStatusError
	s.state.LastError = cause.Error()

	n := s.attempts
	if n > s.cfg.MaxRestartAttempts {
		n = s.cfg.MaxRestartAttempts
	}
	delay := s.cfg.RestartBackoff << (n - 1)
	s.nextRestartAt = time.Now().Add(delay)

	s.logger.Warn("scheduling pipeline restart",
		slog.Int("attempt", s.attempts),
		slog.Duration("backoff", delay),
		slog.String("error", cause.Error()),
	)
}

// stopLocked tears down the current pipeline. Called with the lock held.
func (s *supervisor) stopLocked() {
	if s.pl != nil {
		s.pl.Stop()
		s.pl = nil
	}
	s.builtWidth = 0
	s.builtHeight = 0
}

// teardown stops the pipeline on shutdown.
func (s *supervisor) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.state.Status = models.CameraStatusIdle
}

// snapshot returns a copy of the camera state.
func (s *supervisor) snapshot() models.CameraState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if s.pl != nil && s.pl.IsRunning() {
		if lastBuf, _ := s.pl.LastBuffer(); !lastBuf.IsZero() {
			st.LastBuffer = lastBuf
		}
	}
	return st
}

// streaming reports whether the camera is actively publishing.
func (s *supervisor) streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status == models.CameraStatusStreaming && s.pl != nil && s.pl.IsRunning()
}
