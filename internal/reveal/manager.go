// Package reveal runs the two browser-rendered outputs: a full-screen
// presentation feed ("slides") and a transparent graphics feed
// ("slides_overlay"). Each output renders a web page offscreen and
// publishes it to the media server, where the mixer or any viewer can pick
// it up like one more camera.
package reveal

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
)

// browserStartWait bounds how long a freshly started browser pipeline may
// take to produce its first frame. Web engines cold-start slowly.
const browserStartWait = 20 * time.Second

var ErrUnknownOutput = fmt.Errorf("unknown reveal output")

// Pipeline is the slice of the GStreamer runtime an output drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	Errors() <-chan error
	WaitFirstBuffer(ctx context.Context) error
	IsRunning() bool
}

// Factory constructs a pipeline from a parsed description.
type Factory func(name, description string, opts gst.Options) (Pipeline, error)

type output struct {
	state models.RevealOutputState
	pl    Pipeline
	gen   int
	done  chan struct{}
}

// Manager owns the fixed output pair.
type Manager struct {
	cfg     *config.Config
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	outputs map[string]*output
	order   []string
}

// NewManager creates both outputs in the idle state.
func NewManager(cfg *config.Config, factory Factory, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		factory: factory,
		logger:  observability.WithComponent(logger, "reveal"),
		outputs: make(map[string]*output),
		order:   []string{models.RevealOutputSlides, models.RevealOutputSlidesOverlay},
	}
	for _, id := range m.order {
		m.outputs[id] = &output{state: models.RevealOutputState{
			OutputID:     id,
			State:        models.RevealStateIdle,
			MediaMTXPath: id,
		}}
	}
	return m
}

// Start launches one output rendering the given presentation. Starting an
// output that is already running the same URL is a no-op; a different URL
// restarts it. The call returns once the pipeline is constructed; the
// output reports starting until the first frame arrives.
func (m *Manager) Start(ctx context.Context, outputID, presentationID, url string) (models.RevealOutputState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, ok := m.outputs[outputID]
	if !ok {
		return models.RevealOutputState{}, fmt.Errorf("%w: %q (allowed: %s, %s)",
			ErrUnknownOutput, outputID, models.RevealOutputSlides, models.RevealOutputSlidesOverlay)
	}

	if out.state.State == models.RevealStateRunning || out.state.State == models.RevealStateStarting {
		if out.state.URL == url {
			return out.state, nil
		}
		m.stopLocked(out)
	}

	spec := pipeline.RevealPublish(url, m.cfg.Reveal,
		pipeline.Platform(m.cfg.Ingest.Platform),
		m.cfg.MediaServer.RTSPURL(outputID))

	pl, err := m.factory("reveal-"+outputID, spec.Description, gst.Options{Tap: spec.Tap})
	if err != nil {
		out.state.State = models.RevealStateIdle
		out.state.LastError = err.Error()
		return out.state, err
	}
	if err := pl.Start(ctx); err != nil {
		pl.Stop()
		out.state.State = models.RevealStateIdle
		out.state.LastError = err.Error()
		return out.state, err
	}

	out.pl = pl
	out.gen++
	out.done = make(chan struct{})
	out.state.State = models.RevealStateStarting
	out.state.PresentationID = presentationID
	out.state.URL = url
	out.state.LastError = ""

	go m.confirm(ctx, outputID, out.gen, pl, out.done)

	m.logger.Info("reveal output starting",
		slog.String("output", outputID),
		slog.String("url", url),
	)
	return out.state, nil
}

// confirm promotes a starting output to running once frames flow, or back
// to idle if the browser never renders. It then keeps watching for bus
// errors for the lifetime of this pipeline generation.
func (m *Manager) confirm(ctx context.Context, outputID string, gen int, pl Pipeline, done <-chan struct{}) {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), browserStartWait)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	err := pl.WaitFirstBuffer(waitCtx)
	cancel()

	m.mu.Lock()
	out := m.outputs[outputID]
	if out.gen != gen {
		// A restart or stop superseded this generation.
		m.mu.Unlock()
		return
	}
	if err != nil {
		pl.Stop()
		out.pl = nil
		out.state.State = models.RevealStateIdle
		out.state.LastError = fmt.Sprintf("no frames from renderer: %v", err)
		m.mu.Unlock()
		m.logger.Error("reveal output failed to start",
			slog.String("output", outputID),
			slog.String("error", err.Error()),
		)
		return
	}
	out.state.State = models.RevealStateRunning
	m.mu.Unlock()

	m.logger.Info("reveal output running", slog.String("output", outputID))

	select {
	case perr := <-pl.Errors():
		m.mu.Lock()
		if out.gen == gen {
			pl.Stop()
			out.pl = nil
			out.state.State = models.RevealStateIdle
			out.state.LastError = perr.Error()
			m.mu.Unlock()
			m.logger.Error("reveal output failed",
				slog.String("output", outputID),
				slog.String("error", perr.Error()),
			)
			return
		}
		m.mu.Unlock()
	case <-done:
	}
}

// Stop halts one output. Stopping an idle output is a no-op.
func (m *Manager) Stop(outputID string) (models.RevealOutputState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, ok := m.outputs[outputID]
	if !ok {
		return models.RevealOutputState{}, fmt.Errorf("%w: %q", ErrUnknownOutput, outputID)
	}
	m.stopLocked(out)
	return out.state, nil
}

// stopLocked tears one output down. Called with the lock held.
func (m *Manager) stopLocked(out *output) {
	if out.pl == nil {
		return
	}
	out.state.State = models.RevealStateStopping
	out.pl.Stop()
	out.pl = nil
	out.gen++
	if out.done != nil {
		close(out.done)
		out.done = nil
	}
	out.state.State = models.RevealStateIdle
	out.state.PresentationID = ""
	out.state.URL = ""
	m.logger.Info("reveal output stopped", slog.String("output", out.state.OutputID))
}

// StopAll halts both outputs.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		m.stopLocked(m.outputs[id])
	}
}

// Get returns one output's snapshot.
func (m *Manager) Get(outputID string) (models.RevealOutputState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.outputs[outputID]
	if !ok {
		return models.RevealOutputState{}, fmt.Errorf("%w: %q", ErrUnknownOutput, outputID)
	}
	return out.state, nil
}

// Status returns both outputs, slides first.
func (m *Manager) Status() []models.RevealOutputState {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]models.RevealOutputState, 0, len(m.order))
	for _, id := range m.order {
		states = append(states, m.outputs[id].state)
	}
	return states
}
