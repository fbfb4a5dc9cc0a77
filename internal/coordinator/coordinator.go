// Package coordinator renders overlay content on top of a bubbletea view.
//
// A Coordinator watches every channel of an overlay.Registry, keeps a stack
// of cards per layer, animates them in and out with gween tweens and calls
// the OnShown/OnDismissed completions when those tweens finish. Channel
// callbacks only append to an inbox; all state changes happen in Update on
// the bubbletea goroutine.
package coordinator

import (
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/jask/overlayhost/internal/config"
	"github.com/jask/overlayhost/internal/overlay"
)

// Settings controls drawing and animation.
type Settings struct {
	// Layers is the draw order above the root layer. Layers not listed draw
	// above these, in the order the registry created them.
	Layers    []overlay.LayerKey
	FrameRate int
	Appear    time.Duration
	Dismiss   time.Duration
	Easing    ease.TweenFunc
	Logger    *slog.Logger
}

// SettingsFromConfig converts the overlay config section.
func SettingsFromConfig(cfg config.OverlayConfig, logger *slog.Logger) Settings {
	layers := make([]overlay.LayerKey, 0, len(cfg.Layers))
	for _, name := range cfg.Layers {
		layers = append(layers, overlay.LayerKey(name))
	}
	return Settings{
		Layers:    layers,
		FrameRate: cfg.FrameRate,
		Appear:    time.Duration(cfg.AppearMS) * time.Millisecond,
		Dismiss:   time.Duration(cfg.DismissMS) * time.Millisecond,
		Easing:    Easing(cfg.Easing),
		Logger:    logger,
	}
}

// FrameMsg advances animations. The coordinator schedules these itself once
// Init has run.
type FrameMsg struct{ At time.Time }

type phase int

const (
	appearing phase = iota
	shown
	leaving
)

func (p phase) String() string {
	switch p {
	case appearing:
		return "appearing"
	case shown:
		return "shown"
	default:
		return "leaving"
	}
}

type entry struct {
	id          string
	layer       overlay.LayerKey
	render      func() string
	onShown     []func()
	onDismissed []func()
	phase       phase
	tween       *gween.Tween
	progress    float32
	bounds      rect
	drawn       bool
}

type inboxKind int

const (
	inPresent inboxKind = iota
	inUpdate
	inDismiss
)

type inboxItem struct {
	kind    inboxKind
	layer   overlay.LayerKey
	id      string
	render  func() string
	shown   func()
	dismiss func()
}

// Coordinator is the bubbletea-side consumer of overlay channels.
type Coordinator struct {
	settings Settings
	logger   *slog.Logger
	reg      *overlay.Registry[string]

	mu     sync.Mutex
	inbox  []inboxItem
	subs   []*overlay.Subscription
	closed bool
	watch  *overlay.Subscription

	stacks    map[overlay.LayerKey][]*entry
	settled   []func()
	seen      []overlay.LayerKey
	lastFrame time.Time
	width     int
	height    int
}

// New returns a coordinator subscribed to every channel of reg.
func New(reg *overlay.Registry[string], s Settings) *Coordinator {
	if s.FrameRate <= 0 {
		s.FrameRate = 30
	}
	if s.Easing == nil {
		s.Easing = ease.OutCubic
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	c := &Coordinator{
		settings: s,
		logger:   s.Logger.With("component", "coordinator"),
		reg:      reg,
		stacks:   make(map[overlay.LayerKey][]*entry),
	}
	c.watch = reg.Watch(c.attach)
	return c
}

func (c *Coordinator) attach(ch *overlay.Channel[string]) {
	layer := ch.Key()
	subs := []*overlay.Subscription{
		ch.SubscribePresent(func(ev overlay.PresentEvent[string]) {
			c.push(inboxItem{kind: inPresent, layer: layer, id: ev.ID, render: ev.Render, shown: ev.OnShown})
		}),
		ch.SubscribeUpdate(func(ev overlay.UpdateEvent[string]) {
			c.push(inboxItem{kind: inUpdate, layer: layer, id: ev.ID, render: ev.Render})
		}),
		ch.SubscribeDismiss(func(ev overlay.DismissEvent) {
			c.push(inboxItem{kind: inDismiss, layer: layer, id: ev.ID, dismiss: ev.OnDismissed})
		}),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// a Resolve racing Close still calls this watcher
	if c.closed {
		for _, s := range subs {
			s.Cancel()
		}
		return
	}
	c.subs = append(c.subs, subs...)
}

func (c *Coordinator) push(item inboxItem) {
	c.mu.Lock()
	c.inbox = append(c.inbox, item)
	c.mu.Unlock()
}

// Close detaches from the registry and every channel.
func (c *Coordinator) Close() {
	c.watch.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, s := range c.subs {
		s.Cancel()
	}
	c.subs = nil
}

// Init starts the frame clock.
func (c *Coordinator) Init() tea.Cmd {
	return c.tick()
}

func (c *Coordinator) frameInterval() time.Duration {
	return time.Second / time.Duration(c.settings.FrameRate)
}

func (c *Coordinator) tick() tea.Cmd {
	return tea.Tick(c.frameInterval(), func(t time.Time) tea.Msg { return FrameMsg{At: t} })
}

// Update handles frames, window size, mouse presses and esc. handled is true
// when the message was consumed and should not reach the underlying view.
func (c *Coordinator) Update(msg tea.Msg) (cmd tea.Cmd, handled bool) {
	switch m := msg.(type) {
	case FrameMsg:
		c.Advance(c.elapsed(m.At))
		return c.tick(), true
	case tea.WindowSizeMsg:
		c.width, c.height = m.Width, m.Height
		return nil, false
	case tea.MouseMsg:
		if m.Action != tea.MouseActionPress || m.Button != tea.MouseButtonLeft {
			return nil, false
		}
		top := c.topmost()
		if top == nil {
			return nil, false
		}
		if !top.drawn || !top.bounds.contains(m.X, m.Y) {
			c.reg.Resolve(top.layer).PublishInteraction(top.id, overlay.OutsideTap)
		}
		return nil, true
	case tea.KeyMsg:
		if m.Type != tea.KeyEsc {
			return nil, false
		}
		top := c.topmost()
		if top == nil {
			return nil, false
		}
		c.reg.Resolve(top.layer).PublishInteraction(top.id, overlay.OutsideTap)
		return nil, true
	}
	return nil, false
}

func (c *Coordinator) elapsed(at time.Time) float32 {
	step := c.frameInterval()
	dt := step
	if !c.lastFrame.IsZero() && !at.IsZero() {
		dt = at.Sub(c.lastFrame)
	}
	c.lastFrame = at
	if dt < 0 {
		dt = 0
	}
	if dt > 4*step {
		dt = 4 * step
	}
	return float32(dt.Seconds())
}

// Advance applies queued channel events and moves every animation forward by
// dt seconds, calling completions for animations that finished.
func (c *Coordinator) Advance(dt float32) {
	c.drain()
	done := c.settled
	c.settled = nil
	for _, layer := range c.drawOrder() {
		stack := c.stacks[layer]
		kept := stack[:0]
		for _, e := range stack {
			if e.tween != nil {
				v, finished := e.tween.Update(dt)
				e.progress = v
				if finished {
					e.tween = nil
				}
			}
			switch {
			case e.phase == appearing && e.tween == nil:
				e.phase = shown
				e.progress = 1
				done = append(done, e.onShown...)
				e.onShown = nil
			case e.phase == leaving && e.tween == nil:
				done = append(done, e.onShown...)
				done = append(done, e.onDismissed...)
				c.logger.Debug("overlay removed", "layer", layer.String(), "id", e.id)
				continue
			}
			kept = append(kept, e)
		}
		c.stacks[layer] = kept
	}
	// completions run after state is consistent; they may publish again
	for _, fn := range done {
		fn()
	}
}

func (c *Coordinator) drain() {
	c.mu.Lock()
	items := c.inbox
	c.inbox = nil
	c.mu.Unlock()
	for _, it := range items {
		switch it.kind {
		case inPresent:
			c.present(it)
		case inUpdate:
			if e := c.find(it.layer, it.id); e != nil && e.phase != leaving {
				e.render = it.render
			}
		case inDismiss:
			c.dismiss(it)
		}
	}
}

func (c *Coordinator) present(it inboxItem) {
	c.noteLayer(it.layer)
	if e := c.find(it.layer, it.id); e != nil {
		e.render = it.render
		switch e.phase {
		case shown:
			c.settled = append(c.settled, it.shown)
		case appearing:
			e.onShown = append(e.onShown, it.shown)
		case leaving:
			// re-presented while animating out: turn it around. The exit
			// never finishes, so its waiters are released now.
			c.settled = append(c.settled, e.onDismissed...)
			e.onDismissed = nil
			e.onShown = append(e.onShown, it.shown)
			e.phase = appearing
			e.tween = c.newTween(e.progress, 1, c.settings.Appear)
		}
		return
	}
	e := &entry{
		id:      it.id,
		layer:   it.layer,
		render:  it.render,
		onShown: []func(){it.shown},
		phase:   appearing,
		tween:   c.newTween(0, 1, c.settings.Appear),
	}
	c.stacks[it.layer] = append(c.stacks[it.layer], e)
	c.logger.Debug("overlay inserted", "layer", it.layer.String(), "id", it.id)
}

func (c *Coordinator) dismiss(it inboxItem) {
	e := c.find(it.layer, it.id)
	if e == nil {
		// nothing on screen to animate
		c.settled = append(c.settled, it.dismiss)
		return
	}
	e.onDismissed = append(e.onDismissed, it.dismiss)
	if e.phase == leaving {
		return
	}
	e.phase = leaving
	e.tween = c.newTween(e.progress, 0, time.Duration(float32(c.settings.Dismiss)*e.progress))
}

// newTween returns nil when there is nothing to animate, which completes the
// phase on the next Advance.
func (c *Coordinator) newTween(from, to float32, d time.Duration) *gween.Tween {
	if d <= 0 || from == to {
		return nil
	}
	return gween.New(from, to, float32(d.Seconds()), c.settings.Easing)
}

func (c *Coordinator) find(layer overlay.LayerKey, id string) *entry {
	for _, e := range c.stacks[layer] {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (c *Coordinator) noteLayer(layer overlay.LayerKey) {
	for _, l := range c.seen {
		if l == layer {
			return
		}
	}
	c.seen = append(c.seen, layer)
}

// drawOrder is root, then configured layers, then the rest as first seen.
func (c *Coordinator) drawOrder() []overlay.LayerKey {
	order := []overlay.LayerKey{overlay.RootLayer}
	listed := map[overlay.LayerKey]bool{overlay.RootLayer: true}
	for _, l := range c.settings.Layers {
		if !listed[l] {
			order = append(order, l)
			listed[l] = true
		}
	}
	for _, l := range c.seen {
		if !listed[l] {
			order = append(order, l)
			listed[l] = true
		}
	}
	return order
}

func (c *Coordinator) topmost() *entry {
	order := c.drawOrder()
	for i := len(order) - 1; i >= 0; i-- {
		stack := c.stacks[order[i]]
		for j := len(stack) - 1; j >= 0; j-- {
			if stack[j].phase != leaving {
				return stack[j]
			}
		}
	}
	return nil
}

// View composites every live card over base. Render funcs are called here,
// every frame, so content always reflects current state.
func (c *Coordinator) View(base string, width, height int) string {
	if width <= 0 || height <= 0 {
		width, height = c.width, c.height
	}
	if width <= 0 || height <= 0 {
		return base
	}
	cv := newCanvas(base, width, height)
	depth := 0
	for _, layer := range c.drawOrder() {
		for _, e := range c.stacks[layer] {
			var content string
			if e.render != nil {
				content = e.render()
			}
			b := frame(content, width)
			x := (width - b.w) / 2
			if x < 0 {
				x = 0
			}
			rest := (height-b.h)/2 + depth
			if rest < 0 {
				rest = 0
			}
			// slide up from below the bottom edge as progress goes 0 -> 1
			y := height - int(float32(height-rest)*clamp01(e.progress))
			e.bounds = cv.stamp(b, x, y)
			e.drawn = true
			depth++
		}
	}
	return cv.String()
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Active describes a card currently managed by the coordinator.
type Active struct {
	Layer    overlay.LayerKey
	ID       string
	Phase    string
	Progress float32
}

// Active lists cards bottom to top.
func (c *Coordinator) Active() []Active {
	var out []Active
	for _, layer := range c.drawOrder() {
		for _, e := range c.stacks[layer] {
			out = append(out, Active{Layer: layer, ID: e.id, Phase: e.phase.String(), Progress: e.progress})
		}
	}
	return out
}

// Topmost returns the layer and id of the front card that is not leaving.
func (c *Coordinator) Topmost() (overlay.LayerKey, string, bool) {
	e := c.topmost()
	if e == nil {
		return "", "", false
	}
	return e.layer, e.id, true
}
