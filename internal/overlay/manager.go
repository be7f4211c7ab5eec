// Package overlay holds the broadcast graphics drawn on top of the program
// mix: lower thirds, scoreboards, tickers, timers and logos. The element set
// is mutated through the API and WebSocket channel; the mixer's frame loop
// calls Draw once per composited frame. Animation timing runs on frame
// presentation timestamps so graphics stay in step with the video even when
// the wall clock and the pipeline clock drift apart.
package overlay

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
)

var ErrElementNotFound = fmt.Errorf("overlay element not found")

// item wraps an element with its animation bookkeeping. since is the PTS at
// which the current state was entered; base is the PTS of the first frame
// the element appeared on, which timers count from. stampNext defers the
// PTS capture to the next drawn frame, bridging API time into stream time.
type item struct {
	el        models.OverlayElement
	since     time.Duration
	base      time.Duration
	stampNext bool
}

// Manager owns the element set behind a single lock. Draw advances the
// animation machine and snapshots render instructions under the lock, then
// rasterizes outside it so pixel work never blocks API mutations.
type Manager struct {
	mu       sync.Mutex
	items    map[string]*item
	order    []string
	renderer *Renderer
	logger   *slog.Logger
}

// NewManager builds the element set and its rasterizer for the given
// canvas size.
func NewManager(width, height int, fontPath string, logger *slog.Logger) *Manager {
	log := observability.WithComponent(logger, "overlay")
	return &Manager{
		items:    make(map[string]*item),
		renderer: NewRenderer(width, height, fontPath, log),
		logger:   log,
	}
}

// Add registers a new element in the hidden state. An empty id gets a
// generated ULID.
func (m *Manager) Add(el models.OverlayElement) (models.OverlayElement, error) {
	if _, err := models.ParseOverlayKind(string(el.Kind)); err != nil {
		return models.OverlayElement{}, err
	}
	if el.ID == "" {
		el.ID = ulid.Make().String()
	}
	applyDefaults(&el)
	el.State = models.AnimationHidden

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[el.ID]; exists {
		return models.OverlayElement{}, fmt.Errorf("overlay element %s already exists", el.ID)
	}
	m.items[el.ID] = &item{el: el}
	m.order = append(m.order, el.ID)

	m.logger.Debug("overlay element added",
		slog.String("id", el.ID),
		slog.String("kind", string(el.Kind)),
	)
	return el, nil
}

// Update replaces an element's presentation data. Animation state and
// timing are preserved; kind and id cannot change.
func (m *Manager) Update(id string, el models.OverlayElement) (models.OverlayElement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return models.OverlayElement{}, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}

	el.ID = it.el.ID
	el.Kind = it.el.Kind
	el.State = it.el.State
	applyDefaults(&el)
	it.el = el
	return el, nil
}

// Remove deletes an element.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes every element.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*item)
	m.order = nil
}

// Show starts the enter animation. Showing a visible element is a no-op;
// showing an exiting element turns it around.
func (m *Manager) Show(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	switch it.el.State {
	case models.AnimationHidden, models.AnimationExiting:
		it.el.State = models.AnimationEntering
		it.stampNext = true
	}
	return nil
}

// Hide starts the exit animation. Hiding a hidden element is a no-op.
func (m *Manager) Hide(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	switch it.el.State {
	case models.AnimationVisible, models.AnimationEntering:
		it.el.State = models.AnimationExiting
		it.stampNext = true
	}
	return nil
}

// Get returns a copy of one element.
func (m *Manager) Get(id string) (models.OverlayElement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return models.OverlayElement{}, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	return it.el, nil
}

// List returns copies of all elements in draw order.
func (m *Manager) List() []models.OverlayElement {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.OverlayElement, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].el)
	}
	return out
}

// Draw renders all non-hidden elements for the frame at pts. The returned
// image is reused between calls; the caller must consume it before the
// next Draw.
func (m *Manager) Draw(pts time.Duration) *image.RGBA {
	m.mu.Lock()
	instructions := make([]renderInstruction, 0, len(m.order))
	for _, id := range m.order {
		it := m.items[id]
		alpha, visible := it.advance(pts)
		if !visible {
			continue
		}
		instructions = append(instructions, renderInstruction{
			el:      it.el,
			alpha:   alpha,
			elapsed: pts - it.base,
			pts:     pts,
		})
	}
	m.mu.Unlock()

	return m.renderer.Render(instructions)
}

// advance moves the animation machine for the frame at pts and returns the
// element's opacity and whether it renders at all. Called with the manager
// lock held.
func (it *item) advance(pts time.Duration) (float64, bool) {
	if it.stampNext {
		it.since = pts
		it.stampNext = false
		if it.el.State == models.AnimationEntering {
			it.base = pts
		}
	}
	// A pipeline rebuild resets the stream clock; rebase rather than
	// freezing until the PTS catches back up.
	if pts < it.since {
		it.since = pts
		it.base = pts
	}

	switch it.el.State {
	case models.AnimationHidden:
		return 0, false

	case models.AnimationEntering:
		if it.el.EnterDuration <= 0 {
			it.el.State = models.AnimationVisible
			it.since = pts
			return 1, true
		}
		progress := float64(pts-it.since) / float64(it.el.EnterDuration)
		if progress >= 1 {
			it.el.State = models.AnimationVisible
			it.since = pts
			return 1, true
		}
		return progress, true

	case models.AnimationVisible:
		if it.el.AutoHide > 0 && pts-it.since >= it.el.AutoHide {
			it.el.State = models.AnimationExiting
			it.since = pts
		}
		return 1, true

	case models.AnimationExiting:
		if it.el.ExitDuration <= 0 {
			it.el.State = models.AnimationHidden
			return 0, false
		}
		progress := float64(pts-it.since) / float64(it.el.ExitDuration)
		if progress >= 1 {
			it.el.State = models.AnimationHidden
			return 0, false
		}
		return 1 - progress, true
	}
	return 0, false
}

// applyDefaults fills presentation defaults appropriate to the kind.
func applyDefaults(el *models.OverlayElement) {
	if el.FontSize <= 0 {
		switch el.Kind {
		case models.OverlayScoreboard:
			el.FontSize = 42
		case models.OverlayTicker:
			el.FontSize = 28
		case models.OverlayTimer:
			el.FontSize = 48
		case models.OverlayLogo:
			el.FontSize = 32
		default:
			el.FontSize = 36
		}
	}
	if el.FGColor == "" {
		el.FGColor = "#ffffff"
	}
	if el.BGColor == "" {
		el.BGColor = "#000000cc"
	}
	if el.Kind == models.OverlayTicker && el.Speed <= 0 {
		el.Speed = 0.1
	}
	if el.EnterDuration < 0 {
		el.EnterDuration = 0
	}
	if el.ExitDuration < 0 {
		el.ExitDuration = 0
	}
}
