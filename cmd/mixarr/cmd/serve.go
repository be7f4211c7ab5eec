package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/gst"
	internalhttp "github.com/jmylchreest/mixarr/internal/http"
	"github.com/jmylchreest/mixarr/internal/http/handlers"
	"github.com/jmylchreest/mixarr/internal/ingest"
	"github.com/jmylchreest/mixarr/internal/mediamtx"
	"github.com/jmylchreest/mixarr/internal/mixer"
	"github.com/jmylchreest/mixarr/internal/mode"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/overlay"
	"github.com/jmylchreest/mixarr/internal/pipeline"
	"github.com/jmylchreest/mixarr/internal/recording"
	"github.com/jmylchreest/mixarr/internal/reveal"
	"github.com/jmylchreest/mixarr/internal/scene"
	"github.com/jmylchreest/mixarr/internal/v4l2"
	"github.com/jmylchreest/mixarr/internal/version"
)

// stopTimeout bounds subsystem shutdown after the HTTP server has drained.
const stopTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mixarr engine",
	Long: `Start the capture engine and its HTTP control plane.

The server provides:
- REST API for cameras, recording, mixer, scenes, overlays and modes
- WebSocket overlay control at /ws/overlay
- WHEP signaling proxy for browser preview
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags. These override the config values only when explicitly
	// set, same as the logging flags on the root command.
	serveCmd.Flags().String("host", "0.0.0.0", "host to bind to")
	serveCmd.Flags().Int("port", 8080, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyLoggingFlags(&cfg.Logging)
	overrideString(cmd.Flags(), "host", func(v string) { cfg.Server.Host = v })
	overrideInt(cmd.Flags(), "port", func(v int) { cfg.Server.Port = v })

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	// Shutdown signal context. Everything long-running hangs off this.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// GStreamer runtime. A missing plugin is not fatal here: the control
	// plane must come up on development hosts, and each pipeline start
	// reports its own failure.
	gst.Init()
	renderer := ""
	if cfg.Reveal.Enabled {
		renderer = cfg.Reveal.Renderer
	}
	if missing := gst.MissingElements(pipeline.RequiredElements(pipeline.Platform(cfg.Ingest.Platform), renderer)...); len(missing) > 0 {
		logger.Warn("GStreamer elements missing, dependent pipelines will fail to start",
			slog.String("elements", strings.Join(missing, ", ")),
		)
	}

	prober := v4l2.NewProber(v4l2.ExecRunner{}, cfg.Ingest.ProbeTimeout)

	// The media server usually boots in parallel with the engine under
	// systemd. Wait a bounded moment for its control API; when it is still
	// down, start anyway and let the supervisors retry.
	media := mediamtx.NewClient(cfg.MediaServer.APIURL(), nil, logger)
	readyCtx, cancelReady := context.WithTimeout(ctx, cfg.MediaServer.ReadyTimeout)
	if err := media.WaitReachable(readyCtx); err != nil {
		logger.Warn("media server not reachable yet, continuing startup",
			slog.String("api", cfg.MediaServer.APIAddress),
			slog.String("error", err.Error()),
		)
	}
	cancelReady()

	// Scene definitions. First boot may not have the directory yet; an
	// empty scene set is valid.
	if err := os.MkdirAll(cfg.Mixer.ScenesDir, 0o755); err != nil {
		logger.Warn("creating scenes directory", slog.String("error", err.Error()))
	}
	scenes, err := scene.NewStore(cfg.Mixer.ScenesDir, logger)
	if err != nil {
		return fmt.Errorf("loading scenes: %w", err)
	}

	overlayMgr := overlay.NewManager(cfg.Mixer.OutputWidth, cfg.Mixer.OutputHeight, cfg.Overlay.FontPath, logger)

	revealMgr := reveal.NewManager(cfg, func(name, description string, opts gst.Options) (reveal.Pipeline, error) {
		return gst.NewPipeline(name, description, opts, logger)
	}, logger)

	ingestMgr := ingest.NewManager(cfg, func(name, description string, opts gst.Options) (ingest.Pipeline, error) {
		return gst.NewPipeline(name, description, opts, logger)
	}, prober, logger)

	recStore, err := recording.NewStore(cfg.Recording.SessionsDir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	recorder := recording.NewManager(cfg, recStore, func(name, description string, opts gst.Options) (recording.Pipeline, error) {
		return gst.NewPipeline(name, description, opts, logger)
	}, ingestMgr, media, nil, logger)

	var sweeper *recording.Sweeper
	if cfg.Recording.Retention.Enabled {
		sweeper, err = recording.NewSweeper(cfg.Recording, recStore, recorder, logger)
		if err != nil {
			return fmt.Errorf("configuring retention: %w", err)
		}
	}

	live := &livenessProbe{ingest: ingestMgr, reveal: revealMgr}
	mix := mixer.NewManager(cfg, scenes, live, media, overlayMgr, func(name, description string, opts gst.Options) (mixer.Pipeline, error) {
		return gst.NewPipeline(name, description, opts, logger)
	}, logger)

	scenes.OnReload(mix.RefreshScenes)
	if cfg.Mixer.WatchScenes {
		if err := scenes.Watch(ctx); err != nil {
			logger.Warn("scene watching unavailable", slog.String("error", err.Error()))
		}
	}

	modeMgr := mode.NewManager(cfg, ingestMgr, recorder, mode.NewSystemctlRunner(logger), logger)

	// Initialize HTTP server
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version, media)
	healthHandler.Register(server.API())

	statusHandler := handlers.NewStatusHandler(version.Version, ingestMgr, recorder, mix, revealMgr, modeMgr, overlayMgr)
	statusHandler.Register(server.API())

	cameraHandler := handlers.NewCameraHandler(ingestMgr)
	cameraHandler.Register(server.API())

	recordingHandler := handlers.NewRecordingHandler(recorder)
	recordingHandler.Register(server.API())

	mixerHandler := handlers.NewMixerHandler(mix)
	mixerHandler.Register(server.API())

	sceneHandler := handlers.NewSceneHandler(scenes)
	sceneHandler.Register(server.API())

	modeHandler := handlers.NewModeHandler(modeMgr)
	modeHandler.Register(server.API())

	revealHandler := handlers.NewRevealHandler(revealMgr)
	revealHandler.Register(server.API())

	overlayHandler := handlers.NewOverlayHandler(overlayMgr)
	overlayHandler.Register(server.API())

	// Raw routes: WebSocket upgrades and WHEP signaling bypass the OpenAPI
	// layer.
	wsHandler := handlers.NewOverlayWSHandler(overlayMgr, cfg.Server.CORSOrigins, logger)
	wsHandler.RegisterChiRoutes(server.Router())

	whepHandler := handlers.NewWHEPHandler(cfg.MediaServer, logger)
	whepHandler.RegisterChiRoutes(server.Router())

	// Enter the persisted (or default) mode. A failure here leaves the
	// control plane running so an operator can still switch modes.
	if err := modeMgr.Startup(ctx); err != nil {
		logger.Error("entering startup mode failed", slog.String("error", err.Error()))
	}

	if sweeper != nil {
		sweeper.Start(ctx)
	}

	logger.Info("starting mixarr engine",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
		slog.String("platform", cfg.Ingest.Platform),
	)

	serveErr := server.ListenAndServe(ctx)

	// Reverse-order teardown, bounded so a wedged pipeline cannot hold the
	// process open. The session stop runs before ingest stops publishing so
	// recordings finalize with a clean end of stream.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelShutdown()

	if sweeper != nil {
		sweeper.Stop()
	}
	mix.Stop()
	if session, err := recorder.StopSession(shutdownCtx); err != nil {
		logger.Error("finalizing session on shutdown failed", slog.String("error", err.Error()))
	} else if session != nil {
		logger.Info("session finalized on shutdown", slog.String("session", session.ID))
	}
	revealMgr.StopAll()
	ingestMgr.Stop(shutdownCtx)
	scenes.Close()

	logger.Info("mixarr engine stopped")
	return serveErr
}

// livenessProbe answers mixer source liveness across subsystems: the two
// browser outputs are live while their renderer pipeline runs, everything
// else is a camera path on the ingest side.
type livenessProbe struct {
	ingest *ingest.Manager
	reveal *reveal.Manager
}

func (p *livenessProbe) IsLive(sourceID string) bool {
	switch sourceID {
	case models.RevealOutputSlides, models.RevealOutputSlidesOverlay:
		st, err := p.reveal.Get(sourceID)
		return err == nil && st.State == models.RevealStateRunning
	default:
		return p.ingest.IsStreaming(sourceID)
	}
}
