package mixer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/gst"
	"github.com/jmylchreest/mixarr/internal/models"
)

type fakeMixPipeline struct {
	mu        sync.Mutex
	running   bool
	startErr  error
	waitErr   error
	stops     int
	errCh     chan error
	lastBuf   time.Time
	lastPTS   time.Duration
	padProps  map[string]map[string]any
	elProps   map[string]map[string]any
	alphaHist map[string][]float64
	pushes    int
	pushErr   error
}

func newFakeMixPipeline() *fakeMixPipeline {
	return &fakeMixPipeline{
		errCh:     make(chan error, 4),
		lastBuf:   time.Now(),
		padProps:  make(map[string]map[string]any),
		elProps:   make(map[string]map[string]any),
		alphaHist: make(map[string][]float64),
	}
}

func (p *fakeMixPipeline) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.running = true
	return nil
}

func (p *fakeMixPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.stops++
}

func (p *fakeMixPipeline) Errors() <-chan error { return p.errCh }

func (p *fakeMixPipeline) LastBuffer() (time.Time, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastBuf, p.lastPTS
}

func (p *fakeMixPipeline) WaitFirstBuffer(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *fakeMixPipeline) PushOverlay(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushErr != nil {
		return p.pushErr
	}
	p.pushes++
	return nil
}

func (p *fakeMixPipeline) SetPadProperty(pad, property string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.padProps[pad] == nil {
		p.padProps[pad] = make(map[string]any)
	}
	p.padProps[pad][property] = value
	if property == "alpha" {
		p.alphaHist[pad] = append(p.alphaHist[pad], value.(float64))
	}
	return nil
}

func (p *fakeMixPipeline) SetElementProperty(element, property string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.elProps[element] == nil {
		p.elProps[element] = make(map[string]any)
	}
	p.elProps[element][property] = value
	return nil
}

func (p *fakeMixPipeline) padValue(pad, property string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.padProps[pad][property]
}

func (p *fakeMixPipeline) elementValue(element, property string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elProps[element][property]
}

func (p *fakeMixPipeline) alphas(pad string) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.alphaHist[pad]...)
}

func (p *fakeMixPipeline) pushCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes
}

func (p *fakeMixPipeline) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakeMixPipeline) setLastBuffer(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastBuf = t
}

type mixFactory struct {
	mu           sync.Mutex
	pipelines    []*fakeMixPipeline
	descriptions []string
	opts         []gst.Options
	err          error
}

func (f *mixFactory) build(name, description string, opts gst.Options) (Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := newFakeMixPipeline()
	f.pipelines = append(f.pipelines, p)
	f.descriptions = append(f.descriptions, description)
	f.opts = append(f.opts, opts)
	return p, nil
}

func (f *mixFactory) builds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pipelines)
}

func (f *mixFactory) last() *fakeMixPipeline {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pipelines) == 0 {
		return nil
	}
	return f.pipelines[len(f.pipelines)-1]
}

type fakeScenes struct {
	mu     sync.Mutex
	scenes map[string]*models.Scene
}

func (s *fakeScenes) Get(id string) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSceneNotFound, id)
	}
	return scene.Clone(), nil
}

func (s *fakeScenes) put(scene *models.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[scene.ID] = scene
}

type fakeLive struct {
	mu   sync.Mutex
	live map[string]bool
}

func (l *fakeLive) IsLive(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live[id]
}

func (l *fakeLive) set(id string, v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.live[id] = v
}

type fakeMixCodecs struct {
	mu     sync.Mutex
	codecs map[string]string
	err    error
}

func (c *fakeMixCodecs) PublishedCodec(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if codec, ok := c.codecs[path]; ok {
		return codec, nil
	}
	return "h264", nil
}

type fakeOverlay struct {
	mu  sync.Mutex
	pts []time.Duration
	img *image.RGBA
}

func newFakeOverlay() *fakeOverlay {
	return &fakeOverlay{img: image.NewRGBA(image.Rect(0, 0, 8, 8))}
}

func (f *fakeOverlay) Draw(pts time.Duration) *image.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pts = append(f.pts, pts)
	return f.img
}

func (f *fakeOverlay) drawnPTS() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.pts...)
}

func fullscreenScene(id, source string) *models.Scene {
	return &models.Scene{
		ID: id, Width: 1280, Height: 720,
		Slots: []models.SceneSlot{
			{Source: source, X: 0, Y: 0, W: 1, H: 1, Z: 0, Alpha: 1},
		},
	}
}

func sideBySideScene() *models.Scene {
	return &models.Scene{
		ID: "side_by_side", Width: 1280, Height: 720,
		Slots: []models.SceneSlot{
			{Source: "cam0", X: 0, Y: 0.25, W: 0.5, H: 0.5, Z: 0, Alpha: 1},
			{Source: "cam1", X: 0.5, Y: 0.25, W: 0.5, H: 0.5, Z: 0, Alpha: 1},
		},
	}
}

type mixerFixture struct {
	cfg     *config.Config
	scenes  *fakeScenes
	live    *fakeLive
	codecs  *fakeMixCodecs
	overlay *fakeOverlay
	factory *mixFactory
	m       *Manager
}

func newMixerFixture(t *testing.T) *mixerFixture {
	t.Helper()
	fx := &mixerFixture{
		cfg: &config.Config{
			MediaServer: config.MediaServerConfig{RTSPAddress: "127.0.0.1:8554"},
			Ingest:      config.IngestConfig{Platform: "rockchip"},
			Mixer: config.MixerConfig{
				Enabled:         true,
				OutputWidth:     1280,
				OutputHeight:    720,
				OutputFramerate: 100,
				OutputBitrate:   6_000_000,
				OutputCodec:     "h264",
				MediaServerPath: "mixer_program",
				HealthTimeout:   200 * time.Millisecond,
				MixDuration:     50 * time.Millisecond,
				AutoDuration:    100 * time.Millisecond,
			},
		},
		scenes: &fakeScenes{scenes: map[string]*models.Scene{
			"fullscreen_cam0": fullscreenScene("fullscreen_cam0", "cam0"),
			"fullscreen_cam1": fullscreenScene("fullscreen_cam1", "cam1"),
			"side_by_side":    sideBySideScene(),
		}},
		live:    &fakeLive{live: map[string]bool{"cam0": true, "cam1": true, "slides": true}},
		codecs:  &fakeMixCodecs{codecs: map[string]string{}},
		overlay: newFakeOverlay(),
		factory: &mixFactory{},
	}
	fx.m = NewManager(fx.cfg, fx.scenes, fx.live, fx.codecs, fx.overlay, fx.factory.build, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { fx.m.Stop() })
	return fx
}

func TestStartBuildsSupersetAndAppliesScene(t *testing.T) {
	fx := newMixerFixture(t)

	st, err := fx.m.Start(context.Background(), "side_by_side")
	require.NoError(t, err)

	assert.Equal(t, models.PipelineStatePlaying, st.State)
	assert.Equal(t, models.MixerHealthHealthy, st.Health)
	assert.Equal(t, "side_by_side", st.ProgramScene)
	assert.Equal(t, []string{"cam0", "cam1"}, st.Superset)
	assert.Zero(t, st.Rebuilds)

	require.Equal(t, 1, fx.factory.builds())
	d := fx.factory.descriptions[0]
	assert.Contains(t, d, "compositor name=mix")
	assert.Contains(t, d, "rtsp://127.0.0.1:8554/cam0")
	assert.Contains(t, d, "rtsp://127.0.0.1:8554/cam1")
	assert.Contains(t, d, "rtspclientsink location=rtsp://127.0.0.1:8554/mixer_program")
	assert.Contains(t, fx.factory.opts[0].OverlayCaps, "format=RGBA,width=1280,height=720")

	pl := fx.factory.last()
	// Sources sort to cam0=sink_0, cam1=sink_1, overlay=sink_2.
	assert.Equal(t, 0, pl.padValue("sink_0", "xpos"))
	assert.Equal(t, 180, pl.padValue("sink_0", "ypos"))
	assert.Equal(t, 640, pl.padValue("sink_0", "width"))
	assert.Equal(t, 360, pl.padValue("sink_0", "height"))
	assert.Equal(t, 1.0, pl.padValue("sink_0", "alpha"))
	assert.Equal(t, 640, pl.padValue("sink_1", "xpos"))
	assert.Equal(t, uint(overlayZOrder), pl.padValue("sink_2", "zorder"))
}

func TestStartRejectsMissingSources(t *testing.T) {
	fx := newMixerFixture(t)
	fx.live.set("cam1", false)

	_, err := fx.m.Start(context.Background(), "side_by_side")
	var missing *models.MissingSourcesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "side_by_side", missing.SceneID)
	assert.Equal(t, []string{"cam1"}, missing.Missing)
	assert.Zero(t, fx.factory.builds())
}

func TestStartUnknownScene(t *testing.T) {
	fx := newMixerFixture(t)
	_, err := fx.m.Start(context.Background(), "does_not_exist")
	require.ErrorIs(t, err, models.ErrSceneNotFound)
}

func TestStartIdempotentSameScene(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	st, err := fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatePlaying, st.State)
	assert.Equal(t, 1, fx.factory.builds())

	_, err = fx.m.Start(ctx, "fullscreen_cam0")
	require.ErrorIs(t, err, models.ErrMixerRunning)
}

func TestStartDisabled(t *testing.T) {
	fx := newMixerFixture(t)
	fx.cfg.Mixer.Enabled = false
	_, err := fx.m.Start(context.Background(), "side_by_side")
	require.ErrorIs(t, err, models.ErrMixerDisabled)
}

func TestSetSceneStagesWithoutTouchingProgram(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "fullscreen_cam0")
	require.NoError(t, err)

	st, err := fx.m.SetScene(ctx, "side_by_side")
	require.NoError(t, err)
	assert.Equal(t, "fullscreen_cam0", st.ProgramScene)
	assert.Equal(t, "side_by_side", st.PreviewScene)
	// Staging must not rebuild even though cam1 is outside the superset.
	assert.Equal(t, 1, fx.factory.builds())
	assert.Equal(t, []string{"cam0"}, st.Superset)
	assert.Equal(t, 1.0, fx.factory.last().padValue("sink_0", "alpha"))
}

func TestSetSceneRequiresRunningMixer(t *testing.T) {
	fx := newMixerFixture(t)
	_, err := fx.m.SetScene(context.Background(), "side_by_side")
	require.ErrorIs(t, err, models.ErrMixerNotRunning)
}

func TestSetSceneRejectsDeadSources(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "fullscreen_cam0")
	require.NoError(t, err)
	fx.live.set("cam1", false)

	_, err = fx.m.SetScene(ctx, "side_by_side")
	var missing *models.MissingSourcesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"cam1"}, missing.Missing)
}

func TestTakeCutWithinSuperset(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	_, err = fx.m.SetScene(ctx, "fullscreen_cam0")
	require.NoError(t, err)

	st, err := fx.m.Take(ctx, models.TransitionCut)
	require.NoError(t, err)
	assert.Equal(t, "fullscreen_cam0", st.ProgramScene)
	assert.Empty(t, st.PreviewScene)
	assert.Equal(t, models.SceneChangePadUpdate, st.LastChange)
	assert.Zero(t, st.Rebuilds)
	assert.Equal(t, 1, fx.factory.builds())

	pl := fx.factory.last()
	assert.Equal(t, 1280, pl.padValue("sink_0", "width"))
	assert.Equal(t, 720, pl.padValue("sink_0", "height"))
	assert.Equal(t, 1.0, pl.padValue("sink_0", "alpha"))
	assert.Equal(t, 0.0, pl.padValue("sink_1", "alpha"))
}

func TestTakeMixRampsAlphaPerFrame(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	_, err = fx.m.SetScene(ctx, "fullscreen_cam0")
	require.NoError(t, err)

	st, err := fx.m.Take(ctx, models.TransitionMix)
	require.NoError(t, err)
	require.NotNil(t, st.Transition)
	assert.True(t, st.Transition.Running)
	assert.Equal(t, models.TransitionMix, st.Transition.Kind)
	assert.EqualValues(t, 50, st.Transition.DurationMS)
	// The incoming slot is placed immediately so it fades in position.
	assert.Equal(t, 1280, fx.factory.last().padValue("sink_0", "width"))

	require.Eventually(t, func() bool {
		got := fx.m.Status()
		return got.Transition != nil && !got.Transition.Running && got.ProgramScene == "fullscreen_cam0"
	}, 2*time.Second, 5*time.Millisecond)

	// 50ms at 100fps gives 5 steps; cam1 ramps 1 -> 0 monotonically.
	ramp := fx.factory.last().alphas("sink_1")
	require.Len(t, ramp, 6) // initial apply plus five ramp steps
	assert.Equal(t, 1.0, ramp[0])
	for i := 1; i < len(ramp); i++ {
		assert.Less(t, ramp[i], ramp[i-1])
	}
	assert.InDelta(t, 0.0, ramp[len(ramp)-1], 1e-9)
	assert.Equal(t, 0.0, fx.factory.last().padValue("sink_1", "alpha"))
}

func TestTakeOutsideSupersetRebuilds(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "fullscreen_cam0")
	require.NoError(t, err)
	_, err = fx.m.SetScene(ctx, "side_by_side")
	require.NoError(t, err)

	st, err := fx.m.Take(ctx, models.TransitionMix)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.factory.builds())
	assert.Equal(t, "side_by_side", st.ProgramScene)
	assert.Equal(t, []string{"cam0", "cam1"}, st.Superset)
	assert.Equal(t, models.SceneChangeRebuild, st.LastChange)
	assert.Equal(t, 1, st.Rebuilds)
	require.NotNil(t, st.Transition)
	assert.True(t, st.Transition.FellBackToCut)
	assert.False(t, st.Transition.Running)

	pl := fx.factory.last()
	assert.Equal(t, 640, pl.padValue("sink_0", "width"))
	assert.Equal(t, 1.0, pl.padValue("sink_1", "alpha"))
}

func TestTakeCutOutsideSupersetDoesNotReportFallback(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "fullscreen_cam0")
	require.NoError(t, err)
	_, err = fx.m.SetScene(ctx, "side_by_side")
	require.NoError(t, err)

	st, err := fx.m.Take(ctx, models.TransitionCut)
	require.NoError(t, err)
	assert.Equal(t, models.SceneChangeRebuild, st.LastChange)
	require.NotNil(t, st.Transition)
	assert.False(t, st.Transition.FellBackToCut)
}

func TestTakeGuards(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Take(ctx, models.TransitionCut)
	require.ErrorIs(t, err, models.ErrMixerNotRunning)

	_, err = fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	_, err = fx.m.Take(ctx, models.TransitionCut)
	require.ErrorIs(t, err, models.ErrNoPreviewScene)
}

func TestTakeRevalidatesLiveness(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	_, err = fx.m.SetScene(ctx, "fullscreen_cam1")
	require.NoError(t, err)
	fx.live.set("cam1", false)

	_, err = fx.m.Take(ctx, models.TransitionCut)
	var missing *models.MissingSourcesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"cam1"}, missing.Missing)
}

func TestTransitionBlocksConcurrentChanges(t *testing.T) {
	fx := newMixerFixture(t)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "side_by_side")
	require.NoError(t, err)
	_, err = fx.m.SetScene(ctx, "fullscreen_cam0")
	require.NoError(t, err)
	_, err = fx.m.Take(ctx, models.TransitionAuto)
	require.NoError(t, err)

	_, err = fx.m.SetScene(ctx, "fullscreen_cam1")
	require.ErrorIs(t, err, models.ErrTransitionRunning)
	_, err = fx.m.Take(ctx, models.TransitionCut)
	require.ErrorIs(t, err, models.ErrTransitionRunning)

	require.Eventually(t, func() bool {
		got := fx.m.Status()
		return got.Transition != nil && !got.Transition.Running
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOverlayFeedRunsAtFrameRate(t *testing.T) {
	fx := newMixerFixture(t)

	_, err := fx.m.Start(context.Background(), "fullscreen_cam0")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fx.factory.last().pushCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	pts := fx.overlay.drawnPTS()
	require.GreaterOrEqual(t, len(pts), 3)
	assert.Equal(t, time.Duration(0), pts[0])
	assert.Equal(t, 10*time.Millisecond, pts[1]-pts[0])
	assert.Equal(t, 10*time.Millisecond, pts[2]-pts[1])
}

func TestBusErrorRebuildsWithLiveSources(t *testing.T) {
	fx := newMixerFixture(t)

	_, err := fx.m.Start(context.Background(), "side_by_side")
	require.NoError(t, err)
	first := fx.factory.last()

	fx.live.set("cam1", false)
	first.errCh <- errors.New("rtspsrc cam1: could not read from resource")

	require.Eventually(t, func() bool {
		return fx.factory.builds() == 2
	}, 3*time.Second, 10*time.Millisecond)

	st := fx.m.Status()
	assert.Equal(t, models.PipelineStatePlaying, st.State)
	assert.Equal(t, []string{"cam0"}, st.Superset)
	assert.Equal(t, 1, st.Rebuilds)
	assert.Equal(t, models.SceneChangeRebuild, st.LastChange)
	assert.Contains(t, st.LastError, "could not read from resource")
	assert.Equal(t, "side_by_side", st.ProgramScene)
	assert.Equal(t, 1, first.stopCount())
}

func TestBusErrorStopsWhenNothingLive(t *testing.T) {
	fx := newMixerFixture(t)

	_, err := fx.m.Start(context.Background(), "side_by_side")
	require.NoError(t, err)
	fx.live.set("cam0", false)
	fx.live.set("cam1", false)
	fx.factory.last().errCh <- errors.New("bus gone")

	require.Eventually(t, func() bool {
		return fx.m.Status().State == models.PipelineStateNull
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, fx.factory.builds())
	assert.Contains(t, fx.m.Status().LastError, "bus gone")
}

func TestHealthFollowsBufferAge(t *testing.T) {
	fx := newMixerFixture(t)

	_, err := fx.m.Start(context.Background(), "fullscreen_cam0")
	require.NoError(t, err)
	pl := fx.factory.last()

	pl.setLastBuffer(time.Now().Add(-time.Minute))
	fx.m.mu.Lock()
	fx.m.startedAt = time.Now().Add(-time.Minute)
	fx.m.mu.Unlock()

	require.Eventually(t, func() bool {
		return fx.m.Status().Health == models.MixerHealthUnhealthy
	}, 3*time.Second, 20*time.Millisecond)

	pl.setLastBuffer(time.Now().Add(time.Hour))
	require.Eventually(t, func() bool {
		return fx.m.Status().Health == models.MixerHealthHealthy
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStopIdempotent(t *testing.T) {
	fx := newMixerFixture(t)

	st := fx.m.Stop()
	assert.Equal(t, models.PipelineStateNull, st.State)

	_, err := fx.m.Start(context.Background(), "fullscreen_cam0")
	require.NoError(t, err)
	pl := fx.factory.last()

	st = fx.m.Stop()
	assert.Equal(t, models.PipelineStateNull, st.State)
	assert.Empty(t, st.ProgramScene)
	assert.Empty(t, st.Superset)
	assert.Equal(t, 1, pl.stopCount())

	st = fx.m.Stop()
	assert.Equal(t, models.PipelineStateNull, st.State)
	assert.Equal(t, 1, pl.stopCount())
}

func TestRefreshScenesReappliesProgram(t *testing.T) {
	fx := newMixerFixture(t)

	_, err := fx.m.Start(context.Background(), "fullscreen_cam0")
	require.NoError(t, err)
	pl := fx.factory.last()
	require.Equal(t, 0, pl.padValue("sink_0", "xpos"))

	moved := fullscreenScene("fullscreen_cam0", "cam0")
	moved.Slots[0].X = 0.5
	moved.Slots[0].W = 0.5
	fx.scenes.put(moved)

	fx.m.RefreshScenes()

	assert.Equal(t, 640, pl.padValue("sink_0", "xpos"))
	assert.Equal(t, 640, pl.padValue("sink_0", "width"))
	assert.Equal(t, models.SceneChangePadUpdate, fx.m.Status().LastChange)
}

func TestRefreshScenesKeepsLayoutWhenSupersetBreaks(t *testing.T) {
	fx := newMixerFixture(t)

	_, err := fx.m.Start(context.Background(), "fullscreen_cam0")
	require.NoError(t, err)
	pl := fx.factory.last()

	edited := sideBySideScene()
	edited.ID = "fullscreen_cam0"
	fx.scenes.put(edited)

	fx.m.RefreshScenes()

	// The edited scene needs cam1, which has no pad; layout is untouched.
	assert.Equal(t, 1280, pl.padValue("sink_0", "width"))
	assert.Equal(t, 1, fx.factory.builds())
}

func TestSceneCropAppliesToBranch(t *testing.T) {
	fx := newMixerFixture(t)
	cropped := fullscreenScene("cropped", "cam0")
	cropped.Slots[0].Crop = &models.SlotCrop{Left: 10, Top: 20, Right: 30, Bottom: 40}
	fx.scenes.put(cropped)

	_, err := fx.m.Start(context.Background(), "cropped")
	require.NoError(t, err)

	pl := fx.factory.last()
	assert.Equal(t, 10, pl.elementValue("crop_cam0", "left"))
	assert.Equal(t, 20, pl.elementValue("crop_cam0", "top"))
	assert.Equal(t, 30, pl.elementValue("crop_cam0", "right"))
	assert.Equal(t, 40, pl.elementValue("crop_cam0", "bottom"))
}
