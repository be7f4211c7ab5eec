// Package mixer runs the live program composition. A single pipeline
// subscribes to the union of sources referenced by the program and preview
// scenes ("the superset"), composites them per the active scene, layers the
// broadcast graphics on top and re-publishes the result to the media server.
//
// Scene changes inside the superset are pad property updates and never
// interrupt the program stream. Only a scene that brings in a source the
// pipeline is not subscribed to forces a rebuild.
package mixer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/gst"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/pipeline"
)

const (
	// healthInterval is the cadence of liveness checks and bus drains.
	healthInterval = time.Second
	// codecWait bounds resolving published codecs while building.
	codecWait = 5 * time.Second
	// startWait bounds the state change plus first composited frame.
	startWait = 10 * time.Second
	// overlayZOrder keeps the graphics branch above every scene slot.
	overlayZOrder = 10000
	// overlayFailLimit marks graphics degraded after roughly a second of
	// rejected pushes at the default output rate.
	overlayFailLimit = 30
)

// Pipeline is the slice of the GStreamer runtime the mixer drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	Errors() <-chan error
	LastBuffer() (time.Time, time.Duration)
	WaitFirstBuffer(ctx context.Context) error
	PushOverlay(data []byte) error
	SetPadProperty(padName, property string, value any) error
	SetElementProperty(elementName, property string, value any) error
}

// Factory constructs a pipeline from a parsed description.
type Factory func(name, description string, opts gst.Options) (Pipeline, error)

// SceneProvider resolves scene definitions. The scene store satisfies it.
type SceneProvider interface {
	Get(id string) (*models.Scene, error)
}

// Liveness reports whether a named source currently publishes media: ingest
// streaming for cameras, a running renderer for the reveal outputs.
type Liveness interface {
	IsLive(sourceID string) bool
}

// CodecResolver reports what a media server path is actually carrying, so
// subscribe branches depay the published codec rather than a configured one.
type CodecResolver interface {
	PublishedCodec(ctx context.Context, path string) (string, error)
}

// OverlayFeed renders the graphics layer for one composited frame.
type OverlayFeed interface {
	Draw(pts time.Duration) *image.RGBA
}

// padProps mirrors the compositor pad state last applied for one source.
// Ramps interpolate from these values instead of reading GStreamer back.
type padProps struct {
	x, y, w, h int
	z          int
	alpha      float64
	crop       models.SlotCrop
}

// padRamp is one source's alpha trajectory during a mix or auto take.
type padRamp struct {
	src      string
	from, to float64
}

// Manager owns the program composition pipeline and its scene state.
type Manager struct {
	cfg     *config.Config
	scenes  SceneProvider
	live    Liveness
	codecs  CodecResolver
	overlay OverlayFeed
	factory Factory
	logger  *slog.Logger

	mu          sync.Mutex
	pl          Pipeline
	pads        map[string]string
	crops       map[string]string
	overlayPad  string
	superset    []string
	padState    map[string]padProps
	program     *models.Scene
	preview     *models.Scene
	transition  *models.TransitionStatus
	state       models.PipelineState
	health      models.MixerHealth
	lastChange  models.SceneChange
	rebuilds    int
	lastErr     string
	overlayDown bool
	startedAt   time.Time
	gen         int
	transGen    int
	cancel      context.CancelFunc
}

// NewManager wires the mixer against its collaborators. Nothing runs until
// Start.
func NewManager(cfg *config.Config, scenes SceneProvider, live Liveness, codecs CodecResolver, overlay OverlayFeed, factory Factory, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		scenes:  scenes,
		live:    live,
		codecs:  codecs,
		overlay: overlay,
		factory: factory,
		logger:  observability.WithComponent(logger, "mixer"),
		state:   models.PipelineStateNull,
	}
}

// Start builds the composition pipeline for the given scene and begins
// publishing the program stream. Starting the already-running scene is a
// no-op; starting a different one while running is rejected.
func (m *Manager) Start(ctx context.Context, sceneID string) (models.MixerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Mixer.Enabled {
		return m.statusLocked(), models.ErrMixerDisabled
	}
	if m.pl != nil {
		if m.program != nil && m.program.ID == sceneID {
			return m.statusLocked(), nil
		}
		return m.statusLocked(), fmt.Errorf("%w: scene %s is on program", models.ErrMixerRunning, m.program.ID)
	}

	scene, err := m.scenes.Get(sceneID)
	if err != nil {
		return m.statusLocked(), err
	}
	if missing := m.missingLocked(scene); len(missing) > 0 {
		return m.statusLocked(), &models.MissingSourcesError{SceneID: sceneID, Missing: missing}
	}

	m.rebuilds = 0
	m.lastErr = ""
	m.lastChange = ""
	m.transition = nil
	m.program = scene
	m.preview = nil

	if err := m.buildLocked(ctx, scene.Sources()); err != nil {
		m.program = nil
		m.lastErr = err.Error()
		return m.statusLocked(), err
	}
	m.applySceneLocked(scene)

	m.logger.Info("mixer started",
		slog.String("scene", sceneID),
		slog.Any("superset", m.superset),
	)
	return m.statusLocked(), nil
}

// Stop tears the pipeline down. Stopping a stopped mixer is a no-op.
func (m *Manager) Stop() models.MixerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pl == nil {
		return m.statusLocked()
	}
	m.stopPipelineLocked()
	m.program = nil
	m.preview = nil
	m.transition = nil
	m.logger.Info("mixer stopped")
	return m.statusLocked()
}

// SetScene stages a scene on preview. Nothing changes on program until Take.
func (m *Manager) SetScene(ctx context.Context, sceneID string) (models.MixerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pl == nil {
		return m.statusLocked(), models.ErrMixerNotRunning
	}
	if m.transition != nil && m.transition.Running {
		return m.statusLocked(), models.ErrTransitionRunning
	}

	scene, err := m.scenes.Get(sceneID)
	if err != nil {
		return m.statusLocked(), err
	}
	if missing := m.missingLocked(scene); len(missing) > 0 {
		return m.statusLocked(), &models.MissingSourcesError{SceneID: sceneID, Missing: missing}
	}

	m.preview = scene
	m.logger.Info("preview staged", slog.String("scene", sceneID))
	return m.statusLocked(), nil
}

// Take promotes the staged preview scene to program. CUT swaps pad
// properties instantly. MIX and AUTO ramp pad alphas at the output frame
// rate over their configured durations. A preview referencing sources the
// pipeline is not subscribed to forces a rebuild; MIX and AUTO cannot ramp
// across a rebuild and fall back to CUT, reported in status.
func (m *Manager) Take(ctx context.Context, kind models.TransitionKind) (models.MixerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pl == nil {
		return m.statusLocked(), models.ErrMixerNotRunning
	}
	if m.preview == nil {
		return m.statusLocked(), models.ErrNoPreviewScene
	}
	if m.transition != nil && m.transition.Running {
		return m.statusLocked(), models.ErrTransitionRunning
	}
	if missing := m.missingLocked(m.preview); len(missing) > 0 {
		return m.statusLocked(), &models.MissingSourcesError{SceneID: m.preview.ID, Missing: missing}
	}

	if !m.subsetLocked(m.preview) {
		fellBack := kind != models.TransitionCut
		m.program = m.preview
		m.preview = nil
		union := unionSources(m.superset, m.program.Sources())
		if err := m.rebuildLocked(ctx, union); err != nil {
			return m.statusLocked(), err
		}
		m.transition = &models.TransitionStatus{Kind: kind, FellBackToCut: fellBack}
		m.logger.Info("take rebuilt program",
			slog.String("scene", m.program.ID),
			slog.Bool("fell_back_to_cut", fellBack),
		)
		return m.statusLocked(), nil
	}

	dur := m.transitionDuration(kind)
	if kind == models.TransitionCut || dur <= 0 {
		m.applySceneLocked(m.preview)
		m.program = m.preview
		m.preview = nil
		m.transition = &models.TransitionStatus{Kind: models.TransitionCut}
		m.lastChange = models.SceneChangePadUpdate
		m.logger.Info("take cut", slog.String("scene", m.program.ID))
		return m.statusLocked(), nil
	}

	// Place the incoming slots now. Sources entering at alpha zero appear in
	// position as they fade in; sources shared with program jump placement at
	// the take point while their alpha stays continuous.
	targets := make(map[string]float64, len(m.preview.Slots))
	for _, slot := range m.preview.Slots {
		m.applyPlacementLocked(slot)
		targets[slot.Source] = slot.Alpha
	}
	ramps := make([]padRamp, 0, len(m.pads))
	for src := range m.pads {
		ramps = append(ramps, padRamp{src: src, from: m.padState[src].alpha, to: targets[src]})
	}

	m.transGen++
	m.transition = &models.TransitionStatus{Kind: kind, DurationMS: dur.Milliseconds(), Running: true}
	go m.runTransition(m.gen, m.transGen, ramps, dur)

	m.logger.Info("take started",
		slog.String("scene", m.preview.ID),
		slog.String("transition", string(kind)),
		slog.Duration("duration", dur),
	)
	return m.statusLocked(), nil
}

// Status returns a snapshot of the mixer.
func (m *Manager) Status() models.MixerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// RefreshScenes re-resolves the program and preview definitions after a scene
// store reload. An edited program scene re-applies live when it still fits
// the superset; one that now needs an unsubscribed source keeps the running
// layout until the operator takes it again.
func (m *Manager) RefreshScenes() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pl == nil {
		return
	}
	if m.preview != nil {
		if fresh, err := m.scenes.Get(m.preview.ID); err == nil {
			m.preview = fresh
		}
	}
	if m.program == nil || (m.transition != nil && m.transition.Running) {
		return
	}
	fresh, err := m.scenes.Get(m.program.ID)
	if err != nil {
		m.logger.Warn("program scene vanished from store, keeping running layout",
			slog.String("scene", m.program.ID),
		)
		return
	}
	if !m.subsetLocked(fresh) {
		m.logger.Warn("reloaded program scene needs unsubscribed sources, keeping running layout",
			slog.String("scene", fresh.ID),
		)
		return
	}
	m.program = fresh
	m.applySceneLocked(fresh)
	m.lastChange = models.SceneChangePadUpdate
	m.logger.Info("program scene re-applied after reload", slog.String("scene", fresh.ID))
}

// buildLocked constructs and starts the superset pipeline. Called with the
// lock held and no pipeline running.
func (m *Manager) buildLocked(ctx context.Context, sources []string) error {
	sorted := append([]string(nil), sources...)
	sort.Strings(sorted)

	cctx, cancelCodec := context.WithTimeout(ctx, codecWait)
	defer cancelCodec()
	srcs := make([]pipeline.MixerSource, 0, len(sorted))
	for _, id := range sorted {
		codec, err := m.codecs.PublishedCodec(cctx, id)
		if err != nil {
			return fmt.Errorf("resolving codec for %s: %w", id, err)
		}
		srcs = append(srcs, pipeline.MixerSource{
			ID:      id,
			RTSPURL: m.cfg.MediaServer.RTSPURL(id),
			Codec:   codec,
		})
	}

	out := pipeline.MixerOutput{
		Width:      m.cfg.Mixer.OutputWidth,
		Height:     m.cfg.Mixer.OutputHeight,
		Framerate:  m.outputFramerate(),
		Bitrate:    m.cfg.Mixer.OutputBitrate,
		Codec:      m.cfg.Mixer.OutputCodec,
		PublishURL: m.cfg.MediaServer.RTSPURL(m.cfg.Mixer.MediaServerPath),
	}
	spec := pipeline.MixerProgram(srcs, out, pipeline.Platform(m.cfg.Ingest.Platform))

	pl, err := m.factory("mixer-program", spec.Description, gst.Options{
		Tap:         spec.Tap,
		OverlaySrc:  spec.OverlaySrc,
		OverlayCaps: m.overlayCaps(),
		Mixer:       spec.Mixer,
	})
	if err != nil {
		return fmt.Errorf("building mixer pipeline: %w", err)
	}
	if err := pl.Start(ctx); err != nil {
		pl.Stop()
		return fmt.Errorf("starting mixer pipeline: %w", err)
	}

	wctx, cancelWait := context.WithTimeout(ctx, startWait)
	err = pl.WaitFirstBuffer(wctx)
	cancelWait()
	if err != nil {
		pl.Stop()
		return fmt.Errorf("program output produced no frames: %w", err)
	}

	if err := pl.SetPadProperty(spec.OverlayPad, "zorder", uint(overlayZOrder)); err != nil {
		m.logger.Warn("overlay pad zorder", slog.String("error", err.Error()))
	}
	if err := pl.SetPadProperty(spec.OverlayPad, "alpha", 1.0); err != nil {
		m.logger.Warn("overlay pad alpha", slog.String("error", err.Error()))
	}

	m.pl = pl
	m.pads = spec.Pads
	m.crops = spec.Crops
	m.overlayPad = spec.OverlayPad
	m.superset = sorted
	m.padState = make(map[string]padProps, len(sorted))
	m.state = models.PipelineStatePlaying
	m.health = models.MixerHealthHealthy
	m.overlayDown = false
	m.startedAt = time.Now()
	m.gen++

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	go m.run(runCtx, m.gen, pl)
	return nil
}

// stopPipelineLocked halts the pipeline and its goroutines. Called with the
// lock held.
func (m *Manager) stopPipelineLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.pl != nil {
		m.pl.Stop()
		m.pl = nil
	}
	m.pads = nil
	m.crops = nil
	m.padState = nil
	m.superset = nil
	m.state = models.PipelineStateNull
	m.health = ""
	m.overlayDown = false
	m.gen++
	if m.transition != nil {
		m.transition.Running = false
	}
}

// rebuildLocked replaces the pipeline with one subscribing to the given
// sources, then re-applies the program scene. Called with the lock held.
func (m *Manager) rebuildLocked(ctx context.Context, sources []string) error {
	m.stopPipelineLocked()
	if err := m.buildLocked(ctx, sources); err != nil {
		m.lastErr = err.Error()
		return err
	}
	if m.program != nil {
		m.applySceneLocked(m.program)
	}
	m.rebuilds++
	m.lastChange = models.SceneChangeRebuild
	return nil
}

// run feeds the overlay appsrc at the output frame rate and polls pipeline
// health. One run goroutine exists per pipeline generation.
func (m *Manager) run(ctx context.Context, gen int, pl Pipeline) {
	frame := m.frameDuration()
	feed := time.NewTicker(frame)
	defer feed.Stop()
	health := time.NewTicker(healthInterval)
	defer health.Stop()

	var pos time.Duration
	var overlayFails int
	for {
		select {
		case <-ctx.Done():
			return

		case <-feed.C:
			if ctx.Err() != nil {
				return
			}
			img := m.overlay.Draw(pos)
			pos += frame
			if err := pl.PushOverlay(img.Pix); err != nil {
				overlayFails++
				if overlayFails == 1 {
					m.logger.Warn("overlay push rejected", slog.String("error", err.Error()))
				}
				if overlayFails == overlayFailLimit {
					m.setOverlayDown(gen, true)
				}
				continue
			}
			if overlayFails >= overlayFailLimit {
				m.setOverlayDown(gen, false)
			}
			overlayFails = 0

		case <-health.C:
			select {
			case err := <-pl.Errors():
				m.handleBusError(ctx, gen, err)
				return
			default:
			}
			m.checkHealth(gen, pl)
		}
	}
}

// checkHealth derives the health state from the program tap's last buffer.
func (m *Manager) checkHealth(gen int, pl Pipeline) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen || m.state != models.PipelineStatePlaying {
		return
	}
	ref := m.startedAt
	if last, _ := pl.LastBuffer(); last.After(ref) {
		ref = last
	}
	age := time.Since(ref)

	prev := m.health
	switch {
	case age > m.healthTimeout():
		m.health = models.MixerHealthUnhealthy
	case m.overlayDown:
		m.health = models.MixerHealthDegraded
	default:
		m.health = models.MixerHealthHealthy
	}
	if m.health == prev {
		return
	}
	if m.health == models.MixerHealthHealthy {
		m.logger.Info("mixer recovered", slog.String("health", string(m.health)))
	} else {
		m.logger.Warn("mixer health changed",
			slog.String("health", string(m.health)),
			slog.Duration("buffer_age", age),
		)
	}
}

// handleBusError reacts to a fatal pipeline error: rebuild with whatever
// sources are still live, or stop when none are.
func (m *Manager) handleBusError(ctx context.Context, gen int, err error) {
	rctx := context.WithoutCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return
	}
	m.lastErr = err.Error()
	m.logger.Error("mixer pipeline failed", slog.String("error", err.Error()))

	var alive []string
	for _, src := range m.superset {
		if m.live.IsLive(src) {
			alive = append(alive, src)
		}
	}
	if len(alive) == 0 {
		m.stopPipelineLocked()
		m.logger.Error("no live sources remain, mixer stopped")
		return
	}
	if rerr := m.rebuildLocked(rctx, alive); rerr != nil {
		m.stopPipelineLocked()
		m.logger.Error("mixer rebuild failed", slog.String("error", rerr.Error()))
		return
	}
	m.logger.Warn("mixer rebuilt after pipeline error", slog.Any("superset", m.superset))
}

// runTransition ramps pad alphas once per output frame until the take
// completes. A stop, rebuild or competing take invalidates it via the
// generation counters.
func (m *Manager) runTransition(gen, transGen int, ramps []padRamp, dur time.Duration) {
	frame := m.frameDuration()
	steps := int(dur / frame)
	if steps < 1 {
		steps = 1
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for i := 1; i <= steps; i++ {
		<-ticker.C
		m.mu.Lock()
		if m.gen != gen || m.transGen != transGen {
			m.mu.Unlock()
			return
		}
		progress := float64(i) / float64(steps)
		for _, r := range ramps {
			m.setAlphaLocked(r.src, r.from+(r.to-r.from)*progress)
		}
		if i == steps {
			m.program = m.preview
			m.preview = nil
			m.transition.Running = false
			m.lastChange = models.SceneChangePadUpdate
			m.logger.Info("take completed", slog.String("scene", m.program.ID))
		}
		m.mu.Unlock()
	}
}

// applySceneLocked applies every slot of a scene and hides superset sources
// the scene does not reference. Called with the lock held.
func (m *Manager) applySceneLocked(scene *models.Scene) {
	want := make(map[string]float64, len(scene.Slots))
	for _, slot := range scene.Slots {
		m.applyPlacementLocked(slot)
		want[slot.Source] = slot.Alpha
	}
	for src := range m.pads {
		m.setAlphaLocked(src, want[src])
	}
}

// applyPlacementLocked applies one slot's geometry, z-order and crop, leaving
// alpha untouched. Slots for sources outside the pipeline are skipped.
func (m *Manager) applyPlacementLocked(slot models.SceneSlot) {
	pad, ok := m.pads[slot.Source]
	if !ok {
		return
	}
	outW, outH := float64(m.cfg.Mixer.OutputWidth), float64(m.cfg.Mixer.OutputHeight)
	props := m.padState[slot.Source]
	props.x = int(slot.X * outW)
	props.y = int(slot.Y * outH)
	props.w = max(1, int(slot.W*outW))
	props.h = max(1, int(slot.H*outH))
	props.z = max(0, slot.Z)

	m.setPadLocked(pad, "xpos", props.x)
	m.setPadLocked(pad, "ypos", props.y)
	m.setPadLocked(pad, "width", props.w)
	m.setPadLocked(pad, "height", props.h)
	m.setPadLocked(pad, "zorder", uint(props.z))

	crop := models.SlotCrop{}
	if slot.Crop != nil {
		crop = *slot.Crop
	}
	if el, ok := m.crops[slot.Source]; ok && crop != props.crop {
		m.setCropLocked(el, "left", crop.Left)
		m.setCropLocked(el, "top", crop.Top)
		m.setCropLocked(el, "right", crop.Right)
		m.setCropLocked(el, "bottom", crop.Bottom)
	}
	props.crop = crop
	m.padState[slot.Source] = props
}

// setAlphaLocked applies one source's alpha and records it for later ramps.
func (m *Manager) setAlphaLocked(src string, alpha float64) {
	pad, ok := m.pads[src]
	if !ok {
		return
	}
	m.setPadLocked(pad, "alpha", alpha)
	props := m.padState[src]
	props.alpha = alpha
	m.padState[src] = props
}

func (m *Manager) setPadLocked(pad, property string, value any) {
	if err := m.pl.SetPadProperty(pad, property, value); err != nil {
		m.logger.Warn("pad update failed",
			slog.String("pad", pad),
			slog.String("property", property),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) setCropLocked(element, property string, value any) {
	if err := m.pl.SetElementProperty(element, property, value); err != nil {
		m.logger.Warn("crop update failed",
			slog.String("element", element),
			slog.String("property", property),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) setOverlayDown(gen int, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.overlayDown = down
}

// missingLocked lists scene sources that are not currently publishing.
func (m *Manager) missingLocked(scene *models.Scene) []string {
	var missing []string
	for _, src := range scene.Sources() {
		if !m.live.IsLive(src) {
			missing = append(missing, src)
		}
	}
	return missing
}

// subsetLocked reports whether every source of the scene has a pad on the
// running pipeline.
func (m *Manager) subsetLocked(scene *models.Scene) bool {
	for _, src := range scene.Sources() {
		if _, ok := m.pads[src]; !ok {
			return false
		}
	}
	return true
}

func (m *Manager) statusLocked() models.MixerStatus {
	st := models.MixerStatus{
		State:      m.state,
		Health:     m.health,
		LastChange: m.lastChange,
		Rebuilds:   m.rebuilds,
		LastError:  m.lastErr,
		Superset:   append([]string(nil), m.superset...),
	}
	if m.program != nil {
		st.ProgramScene = m.program.ID
	}
	if m.preview != nil {
		st.PreviewScene = m.preview.ID
	}
	if m.transition != nil {
		t := *m.transition
		st.Transition = &t
	}
	if m.pl != nil {
		st.LastBuffer, _ = m.pl.LastBuffer()
	}
	return st
}

func (m *Manager) transitionDuration(kind models.TransitionKind) time.Duration {
	switch kind {
	case models.TransitionMix:
		if m.cfg.Mixer.MixDuration > 0 {
			return m.cfg.Mixer.MixDuration
		}
		return 500 * time.Millisecond
	case models.TransitionAuto:
		if m.cfg.Mixer.AutoDuration > 0 {
			return m.cfg.Mixer.AutoDuration
		}
		return time.Second
	}
	return 0
}

func (m *Manager) healthTimeout() time.Duration {
	if m.cfg.Mixer.HealthTimeout > 0 {
		return m.cfg.Mixer.HealthTimeout
	}
	return 5 * time.Second
}

func (m *Manager) outputFramerate() int {
	if m.cfg.Mixer.OutputFramerate > 0 {
		return m.cfg.Mixer.OutputFramerate
	}
	return 30
}

func (m *Manager) frameDuration() time.Duration {
	return time.Second / time.Duration(m.outputFramerate())
}

func (m *Manager) overlayCaps() string {
	return fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1",
		m.cfg.Mixer.OutputWidth, m.cfg.Mixer.OutputHeight, m.outputFramerate())
}

// unionSources merges two source lists into a sorted unique slice.
func unionSources(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
