// Package gst wraps the go-gst bindings with the small pipeline runtime the
// supervisors need: parse-launch construction, a bus watch goroutine, buffer
// liveness taps, EOS-based finalization and compositor pad property updates.
package gst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
)

var initOnce sync.Once

// Init initializes the GStreamer library. Safe to call multiple times.
func Init() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

// Available reports whether a GStreamer element factory exists.
func Available(element string) bool {
	Init()
	return gst.Find(element) != nil
}

// MissingElements returns the subset of names with no installed factory.
func MissingElements(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !Available(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

var (
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNotRunning     = errors.New("pipeline not running")
	ErrEOSTimeout     = errors.New("timed out waiting for end of stream")
)

// Options name the elements a pipeline description exposes to the runtime.
type Options struct {
	// Tap is an appsink teed off the output; when set, every sample updates
	// the liveness clock readable via LastBuffer.
	Tap string
	// OverlaySrc is an appsrc to be fed by the caller; when set it is
	// configured live with OverlayCaps at Start.
	OverlaySrc string
	// OverlayCaps is the caps string applied to OverlaySrc.
	OverlayCaps string
	// Mixer is a compositor element whose request pads the caller updates
	// through SetPadProperty.
	Mixer string
}

// Pipeline wraps one GStreamer pipeline and its bus watch.
type Pipeline struct {
	name     string
	logger   *slog.Logger
	pipeline *gst.Pipeline
	opts     Options

	tap        *app.Sink
	overlaySrc *app.Source
	mixer      *gst.Element

	running  atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc

	// lastBufferNS is the wall clock of the last tap sample, lastPTSNS its
	// presentation timestamp. Both unix/duration nanoseconds.
	lastBufferNS atomic.Int64
	lastPTSNS    atomic.Int64

	errs    chan error
	eosOnce sync.Once
	eosCh   chan struct{}
	done    chan struct{}
}

// NewPipeline parses a gst-launch description and resolves the named
// elements. The pipeline is left in the NULL state.
func NewPipeline(name, description string, opts Options, logger *slog.Logger) (*Pipeline, error) {
	Init()

	pl, err := gst.NewPipelineFromString(description)
	if err != nil {
		return nil, fmt.Errorf("parsing pipeline %s: %w", name, err)
	}

	p := &Pipeline{
		name:     name,
		logger:   logger.With(slog.String("pipeline", name)),
		pipeline: pl,
		opts:     opts,
		errs:     make(chan error, 4),
		eosCh:    make(chan struct{}),
		done:     make(chan struct{}),
	}

	if opts.Tap != "" {
		elem, err := pl.GetElementByName(opts.Tap)
		if err != nil {
			pl.SetState(gst.StateNull)
			return nil, fmt.Errorf("pipeline %s: tap element %q: %w", name, opts.Tap, err)
		}
		p.tap = app.SinkFromElement(elem)
		if p.tap == nil {
			pl.SetState(gst.StateNull)
			return nil, fmt.Errorf("pipeline %s: element %q is not an appsink", name, opts.Tap)
		}
	}

	if opts.OverlaySrc != "" {
		elem, err := pl.GetElementByName(opts.OverlaySrc)
		if err != nil {
			pl.SetState(gst.StateNull)
			return nil, fmt.Errorf("pipeline %s: overlay source %q: %w", name, opts.OverlaySrc, err)
		}
		p.overlaySrc = app.SrcFromElement(elem)
		if p.overlaySrc == nil {
			pl.SetState(gst.StateNull)
			return nil, fmt.Errorf("pipeline %s: element %q is not an appsrc", name, opts.OverlaySrc)
		}
	}

	if opts.Mixer != "" {
		elem, err := pl.GetElementByName(opts.Mixer)
		if err != nil {
			pl.SetState(gst.StateNull)
			return nil, fmt.Errorf("pipeline %s: mixer element %q: %w", name, opts.Mixer, err)
		}
		p.mixer = elem
	}

	return p, nil
}

// Start moves the pipeline to PLAYING and begins watching its bus. The
// returned error covers construction-time failures only; runtime errors are
// delivered through Errors.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.running.Load() {
		return ErrAlreadyRunning
	}

	if p.tap != nil {
		p.tap.SetProperty("emit-signals", true)
		p.tap.SetProperty("max-buffers", uint(1))
		p.tap.SetProperty("drop", true)
		p.tap.SetProperty("sync", false)
		p.tap.SetCallbacks(&app.SinkCallbacks{
			NewSampleFunc: p.onTapSample,
		})
	}

	if p.overlaySrc != nil {
		p.overlaySrc.SetProperty("is-live", true)
		p.overlaySrc.SetProperty("format", gst.FormatTime)
		p.overlaySrc.SetProperty("do-timestamp", true)
		if p.opts.OverlayCaps != "" {
			p.overlaySrc.SetProperty("caps", gst.NewCapsFromString(p.opts.OverlayCaps))
		}
	}

	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		p.pipeline.SetState(gst.StateNull)
		return fmt.Errorf("starting pipeline %s: %w", p.name, err)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.running.Store(true)
	go p.watchBus(watchCtx)

	p.logger.Debug("pipeline started")
	return nil
}

// onTapSample records liveness from the output tap and discards the data.
func (p *Pipeline) onTapSample(sink *app.Sink) gst.FlowReturn {
	if !p.running.Load() {
		return gst.FlowEOS
	}

	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	if buffer := sample.GetBuffer(); buffer != nil {
		if pts := buffer.PresentationTimestamp().AsDuration(); pts != nil {
			p.lastPTSNS.Store(int64(*pts))
		}
	}
	p.lastBufferNS.Store(time.Now().UnixNano())
	return gst.FlowOK
}

// watchBus monitors the GStreamer bus for errors and EOS.
func (p *Pipeline) watchBus(ctx context.Context) {
	defer close(p.done)

	bus := p.pipeline.GetPipelineBus()
	if bus == nil {
		return
	}

	for p.running.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			p.eosOnce.Do(func() { close(p.eosCh) })
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			err := fmt.Errorf("pipeline %s error", p.name)
			if gerr != nil {
				err = fmt.Errorf("pipeline %s: %s", p.name, gerr.Error())
			}
			p.logger.Error("pipeline bus error", slog.String("error", err.Error()))
			select {
			case p.errs <- err:
			default:
			}
			return
		case gst.MessageWarning:
			if gwarn := msg.ParseWarning(); gwarn != nil {
				p.logger.Warn("pipeline bus warning", slog.String("warning", gwarn.Error()))
			}
		}
	}
}

// Stop idempotently tears the pipeline down without waiting for in-flight
// data. Use StopWithEOS when the sink must finalize its container first.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.running.Store(false)
		if p.cancel != nil {
			p.cancel()
		}
		if p.pipeline != nil {
			p.pipeline.SetState(gst.StateNull)
		}
		p.logger.Debug("pipeline stopped")
	})
}

// StopWithEOS injects EOS, waits for it to drain through the sink within the
// context deadline, then tears the pipeline down. mp4mux needs the EOS to
// write its index; skipping the wait yields an unplayable file.
func (p *Pipeline) StopWithEOS(ctx context.Context) error {
	if !p.running.Load() {
		p.Stop()
		return nil
	}

	p.pipeline.SendEvent(gst.NewEOSEvent())

	select {
	case <-p.eosCh:
		p.Stop()
		return nil
	case <-ctx.Done():
		p.Stop()
		return fmt.Errorf("pipeline %s: %w", p.name, ErrEOSTimeout)
	}
}

// Errors returns the channel runtime bus errors are delivered on. The channel
// is buffered; at most the first few errors are retained.
func (p *Pipeline) Errors() <-chan error {
	return p.errs
}

// IsRunning reports whether the pipeline is between Start and Stop.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// LastBuffer returns the wall-clock time and stream PTS of the most recent
// sample observed at the output tap. The zero time means no buffer has been
// seen yet.
func (p *Pipeline) LastBuffer() (time.Time, time.Duration) {
	ns := p.lastBufferNS.Load()
	if ns == 0 {
		return time.Time{}, 0
	}
	return time.Unix(0, ns), time.Duration(p.lastPTSNS.Load())
}

// OverlaySource returns the appsrc feed, nil when the pipeline has none.
func (p *Pipeline) OverlaySource() *app.Source {
	return p.overlaySrc
}

// PushOverlay hands one raw frame to the overlay appsrc. The source runs
// live with do-timestamp, so frames are stamped on arrival and the caller
// only has to push at the output frame rate.
func (p *Pipeline) PushOverlay(data []byte) error {
	if p.overlaySrc == nil {
		return fmt.Errorf("pipeline %s has no overlay source", p.name)
	}
	if !p.running.Load() {
		return ErrNotRunning
	}
	buffer := gst.NewBufferFromBytes(data)
	if ret := p.overlaySrc.PushBuffer(buffer); ret != gst.FlowOK {
		return fmt.Errorf("pipeline %s: overlay push rejected: flow %v", p.name, ret)
	}
	return nil
}

// SetPadProperty updates one property on a named pad of the mixer element.
// Compositor placement, alpha and z-order updates go through here; they apply
// on the next composited frame without interrupting the stream.
func (p *Pipeline) SetPadProperty(padName, property string, value any) error {
	if p.mixer == nil {
		return fmt.Errorf("pipeline %s has no mixer element", p.name)
	}
	pad := p.mixer.GetStaticPad(padName)
	if pad == nil {
		return fmt.Errorf("pipeline %s: mixer pad %q not found", p.name, padName)
	}
	if err := pad.SetProperty(property, value); err != nil {
		return fmt.Errorf("pipeline %s: setting %s.%s: %w", p.name, padName, property, err)
	}
	return nil
}

// SetElementProperty updates one property on a named element of the pipeline,
// such as the per-branch videocrop trims.
func (p *Pipeline) SetElementProperty(elementName, property string, value any) error {
	el, err := p.pipeline.GetElementByName(elementName)
	if err != nil {
		return fmt.Errorf("pipeline %s: element %q not found: %w", p.name, elementName, err)
	}
	if err := el.SetProperty(property, value); err != nil {
		return fmt.Errorf("pipeline %s: setting %s.%s: %w", p.name, elementName, property, err)
	}
	return nil
}

// WaitFirstBuffer blocks until the output tap has seen a sample or the
// context expires. It bounds "did the pipeline actually come up" checks.
func (p *Pipeline) WaitFirstBuffer(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.lastBufferNS.Load() != 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-p.errs:
			return err
		case <-ticker.C:
		}
	}
}
