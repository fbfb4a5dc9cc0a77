package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/overlayhost/internal/config"
	"github.com/jask/overlayhost/internal/coordinator"
	"github.com/jask/overlayhost/internal/database/repository"
	"github.com/jask/overlayhost/internal/keycache"
	"github.com/jask/overlayhost/internal/overlay"
)

const (
	layerSheet overlay.LayerKey = "sheet"
	layerAlert overlay.LayerKey = "alert"
	layerToast overlay.LayerKey = "toast"

	toastLinger  = 1500 * time.Millisecond
	sheetRefresh = 500 * time.Millisecond
	historyLimit = 12
)

// Deps are the collaborators the demo needs.
type Deps struct {
	Registry    *overlay.Registry[string]
	Cache       *keycache.Cache[string]
	Coordinator *coordinator.Coordinator
	Events      *repository.EventRepo
	Logger      *slog.Logger
}

// App is the demo screen: a plain base view with keys that present, update
// and dismiss overlays on several layers.
type App struct {
	ctx    context.Context
	cfg    config.Config
	deps   Deps
	logger *slog.Logger

	width       int
	height      int
	status      string
	toasts      int
	toastLinger time.Duration

	alert   *overlay.Handle[string]
	sheet   *sheetState
	history *overlay.Handle[string]
	rows    []repository.Event
}

// sheetState is a live-updating sheet. value is written by a background
// goroutine and cleared when the sheet closes; rendering falls back to the
// cache so the exit animation still has content.
type sheetState struct {
	handle *overlay.Handle[string]
	value  atomic.Pointer[string]
	stop   context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, deps Deps) *App {
	if deps.Cache == nil {
		deps.Cache = keycache.New[string]()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &App{
		ctx:         ctx,
		cfg:         cfg,
		deps:        deps,
		logger:      deps.Logger.With("component", "tui"),
		toastLinger: toastLinger,
	}
}

func (a *App) Init() tea.Cmd {
	return a.deps.Coordinator.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd, handled := a.deps.Coordinator.Update(msg)
	if handled {
		return a, cmd
	}
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case tea.KeyMsg:
		return a.handleKey(m)
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
		a.logger.Error("command failed", "err", m.error)
	case historyMsg:
		a.rows = []repository.Event(m)
		a.openHistory()
	}
	return a, cmd
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.alert != nil {
		switch m.String() {
		case "y":
			a.closeAlert("discarded")
			return a, nil
		case "n":
			a.closeAlert("kept")
			return a, nil
		}
	}
	switch m.String() {
	case "q", "ctrl+c":
		a.shutdown()
		return a, tea.Quit
	case "a":
		a.openAlert()
	case "s":
		a.toggleSheet()
	case "t":
		return a, a.toastCmd()
	case "h":
		return a, a.loadHistory()
	case "x":
		a.dismissTop()
	}
	return a, nil
}

// dismissTop closes the front card, going through its owner when the app
// holds a handle for it.
func (a *App) dismissTop() {
	layer, id, ok := a.deps.Coordinator.Topmost()
	if !ok {
		return
	}
	switch {
	case a.alert != nil && a.alert.ID() == id:
		a.closeAlert("alert dismissed")
	case a.sheet != nil && a.sheet.handle.ID() == id:
		a.closeSheet()
	case a.history != nil && a.history.ID() == id:
		a.closeHistory()
	default:
		a.deps.Registry.Resolve(layer).PublishDismiss(id, nil)
		a.status = fmt.Sprintf("dismissed %s on %s", short(id), layer)
	}
}

func (a *App) openAlert() {
	if a.alert != nil {
		return
	}
	ch := a.deps.Registry.Resolve(layerAlert)
	h := overlay.NewLinkedHandle(ch)
	h.OnOutsideInteraction(func() { a.closeAlert("alert cancelled") })
	h.OnDismiss(func(func()) { a.logger.Debug("alert dismiss requested", "id", h.ID()) })
	a.alert = h
	ch.PublishPresent(h.ID(), func() string {
		return titleStyle.Render("Discard draft?") + "\nUnsaved changes will be lost.\n[y] Discard  [n] Keep  [esc] Cancel"
	}, func() { a.status = "alert shown" })
}

func (a *App) closeAlert(status string) {
	h := a.alert
	if h == nil {
		return
	}
	a.alert = nil
	a.status = status
	h.Channel().PublishDismiss(h.ID(), h.Close)
}

func (a *App) toggleSheet() {
	if a.sheet != nil {
		a.closeSheet()
		return
	}
	ch := a.deps.Registry.Resolve(layerSheet)
	s := &sheetState{handle: overlay.NewLinkedHandle(ch)}
	key := "sheet:" + s.handle.ID()
	first := fmt.Sprintf("balance: %d", 0)
	s.value.Store(&first)
	render := a.sheetRender(key, s)

	ctx, cancel := context.WithCancel(a.ctx)
	s.stop = cancel
	s.handle.OnOutsideInteraction(a.closeSheet)
	a.sheet = s
	ch.PublishPresent(s.handle.ID(), render, nil)

	// data arrives off the UI goroutine
	go func() {
		t := time.NewTicker(sheetRefresh)
		defer t.Stop()
		for n := 1; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				old := s.value.Load()
				if old == nil {
					return
				}
				v := fmt.Sprintf("balance: %d", n*25)
				// loses to closeSheet clearing the value
				if !s.value.CompareAndSwap(old, &v) {
					return
				}
				ch.PublishUpdate(s.handle.ID(), render)
			}
		}
	}()
}

func (a *App) sheetRender(key string, s *sheetState) func() string {
	return func() string {
		var live string
		p := s.value.Load()
		if p != nil {
			live = *p
		}
		v, ok := a.deps.Cache.Latest(key, live, p != nil)
		if !ok {
			v = "(no data)"
		}
		return titleStyle.Render("Account sheet") + "\n" + v + "\n[s] Close"
	}
}

func (a *App) closeSheet() {
	s := a.sheet
	if s == nil {
		return
	}
	a.sheet = nil
	s.stop()
	// the driving value goes away now; the cache keeps the last one on screen
	s.value.Store(nil)
	key := "sheet:" + s.handle.ID()
	s.handle.Channel().PublishDismiss(s.handle.ID(), func() {
		s.handle.Close()
		a.deps.Cache.Remove(key)
	})
	a.status = "sheet closing"
}

// toastCmd presents a toast, waits for it to settle, lingers and dismisses
// it, all from a command goroutine.
func (a *App) toastCmd() tea.Cmd {
	a.toasts++
	n := a.toasts
	ch := a.deps.Registry.Resolve(layerToast)
	h := overlay.NewLinkedHandle(ch)
	ctx, linger := a.ctx, a.toastLinger
	return func() tea.Msg {
		defer h.Close()
		text := fmt.Sprintf("Saved (#%d)", n)
		if err := ch.Present(ctx, h.ID(), func() string { return text }); err != nil {
			return errMsg{fmt.Errorf("toast %d: %w", n, err)}
		}
		select {
		case <-time.After(linger):
		case <-ctx.Done():
		}
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ch.Dismiss(dctx, h.ID()); err != nil {
			return errMsg{fmt.Errorf("toast %d: %w", n, err)}
		}
		return statusMsg(fmt.Sprintf("toast #%d done", n))
	}
}

func (a *App) loadHistory() tea.Cmd {
	if a.history != nil {
		a.closeHistory()
		return nil
	}
	if a.deps.Events == nil {
		return func() tea.Msg { return errMsg{fmt.Errorf("journal not configured")} }
	}
	return func() tea.Msg {
		rows, err := a.deps.Events.Recent(a.ctx, historyLimit)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg(rows)
	}
}

func (a *App) openHistory() {
	if a.history != nil {
		return
	}
	ch := a.deps.Registry.Resolve(overlay.RootLayer)
	h := overlay.NewLinkedHandle(ch)
	h.OnOutsideInteraction(a.closeHistory)
	a.history = h
	ch.PublishPresent(h.ID(), a.renderHistory, nil)
}

func (a *App) closeHistory() {
	h := a.history
	if h == nil {
		return
	}
	a.history = nil
	h.Channel().PublishDismiss(h.ID(), h.Close)
}

func (a *App) shutdown() {
	if a.sheet != nil {
		a.sheet.stop()
	}
}

// messages
type statusMsg string

type errMsg struct{ error }

type historyMsg []repository.Event

// styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

func (a *App) View() string {
	return a.deps.Coordinator.View(a.renderBase(), a.width, a.height)
}

func (a *App) renderBase() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Overlay host"))
	b.WriteString("\n\n")
	layers := a.deps.Registry.Layers()
	names := make([]string, 0, len(layers))
	for _, l := range layers {
		names = append(names, l.String())
	}
	fmt.Fprintf(&b, "Layers: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Animation: %s, %dms in, %dms out\n", a.cfg.Overlay.Easing, a.cfg.Overlay.AppearMS, a.cfg.Overlay.DismissMS)
	active := a.deps.Coordinator.Active()
	fmt.Fprintf(&b, "On screen: %d\n", len(active))
	for _, c := range active {
		fmt.Fprintf(&b, "  %-8s %s  %-9s %3.0f%%\n", c.Layer, short(c.ID), c.Phase, c.Progress*100)
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("[a] Alert  [s] Sheet  [t] Toast  [h] History  [x] Dismiss top  [esc] Outside tap  [q] Quit"))
	if a.status != "" {
		b.WriteString("\n" + a.status)
	}
	return b.String()
}

func (a *App) renderHistory() string {
	out := titleStyle.Render("Recent overlay events") + "\n"
	if len(a.rows) == 0 {
		return out + "(journal is empty)\n[h] Close"
	}
	for _, e := range a.rows {
		detail := ""
		if e.Detail != "" {
			detail = " (" + e.Detail + ")"
		}
		out += fmt.Sprintf("%s  %-6s %-11s %s%s\n", e.CreatedAt.Local().Format("15:04:05"), e.Layer, e.Kind, short(e.LinkID), detail)
	}
	return out + "[h] Close"
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
