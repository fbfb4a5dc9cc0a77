package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"

	"github.com/jask/overlayhost/internal/config"
	"github.com/jask/overlayhost/internal/overlay"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *overlay.Registry[string]) {
	t.Helper()
	reg := overlay.NewRegistry[string]()
	c := New(reg, Settings{
		Layers:    []overlay.LayerKey{"sheet", "alert"},
		FrameRate: 10,
		Appear:    100 * time.Millisecond,
		Dismiss:   100 * time.Millisecond,
		Easing:    ease.Linear,
	})
	t.Cleanup(c.Close)
	return c, reg
}

func TestPresentCallsOnShownAfterAppear(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("alert")

	var shown int
	ch.PublishPresent("m1", func() string { return "Delete file?" }, func() { shown++ })

	c.Advance(0.05)
	require.Zero(t, shown)
	active := c.Active()
	require.Len(t, active, 1)
	require.Equal(t, "appearing", active[0].Phase)
	require.InDelta(t, 0.5, active[0].Progress, 0.01)

	c.Advance(0.06)
	c.Advance(0)
	require.Equal(t, 1, shown)
	require.Equal(t, "shown", c.Active()[0].Phase)

	c.Advance(1)
	require.Equal(t, 1, shown)
}

func TestRenderIsEvaluatedLazily(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve(overlay.RootLayer)
	label := "first"
	ch.PublishPresent("m1", func() string { return label }, nil)
	c.Advance(1)
	c.Advance(0)

	require.Contains(t, c.View("", 40, 12), "first")
	label = "second"
	require.Contains(t, c.View("", 40, 12), "second")

	ch.PublishUpdate("m1", func() string { return "third" })
	c.Advance(0)
	out := c.View("", 40, 12)
	require.Contains(t, out, "third")
	require.NotContains(t, out, "second")
}

func TestUpdateForUnknownIDIsDropped(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	reg.Resolve("sheet").PublishUpdate("ghost", func() string { return "boo" })
	require.NotPanics(t, func() { c.Advance(0) })
	require.Empty(t, c.Active())
}

func TestDismissRemovesAfterExitAnimation(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("sheet")
	ch.PublishPresent("s1", func() string { return "sheet" }, nil)
	c.Advance(1)
	c.Advance(0)

	var dismissed int
	ch.PublishDismiss("s1", func() { dismissed++ })
	c.Advance(0.05)
	require.Zero(t, dismissed)
	require.Equal(t, "leaving", c.Active()[0].Phase)

	c.Advance(0.06)
	c.Advance(0)
	require.Equal(t, 1, dismissed)
	require.Empty(t, c.Active())
}

func TestDismissWhileAppearingCompletesBoth(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("alert")
	var order []string
	ch.PublishPresent("m1", func() string { return "x" }, func() { order = append(order, "shown") })
	c.Advance(0.02)
	ch.PublishDismiss("m1", func() { order = append(order, "dismissed") })

	for i := 0; i < 5; i++ {
		c.Advance(0.05)
	}
	require.Equal(t, []string{"shown", "dismissed"}, order)
	require.Empty(t, c.Active())
}

func TestPresentAndDismissInSameFrame(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("alert")
	var shown, dismissed int
	ch.PublishPresent("m1", nil, func() { shown++ })
	ch.PublishDismiss("m1", func() { dismissed++ })

	c.Advance(0)
	c.Advance(0)
	require.Equal(t, 1, shown)
	require.Equal(t, 1, dismissed)
	require.Empty(t, c.Active())
}

func TestDismissUnknownIDCompletesImmediately(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	var dismissed bool
	reg.Resolve("toast").PublishDismiss("never-shown", func() { dismissed = true })
	c.Advance(0)
	require.True(t, dismissed)
}

func TestRepresentWhileLeavingTurnsAround(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("sheet")
	ch.PublishPresent("s1", nil, nil)
	c.Advance(1)
	c.Advance(0)
	var dismissed, shownAgain int
	ch.PublishDismiss("s1", func() { dismissed++ })
	c.Advance(0.05)
	ch.PublishPresent("s1", nil, func() { shownAgain++ })
	c.Advance(0)
	require.Equal(t, "appearing", c.Active()[0].Phase)
	require.Equal(t, 1, dismissed, "the abandoned exit releases its waiter")

	c.Advance(1)
	c.Advance(0)
	require.Equal(t, 1, shownAgain)
	require.Equal(t, 1, dismissed)
}

func TestBlockingDismissReturnsWhenRepresented(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("sheet")
	ch.PublishPresent("s1", nil, nil)
	c.Advance(1)
	c.Advance(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- ch.Dismiss(ctx, "s1") }()

	// wait for the dismiss to reach the inbox, then turn the card around
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.inbox) == 1
	}, time.Second, time.Millisecond)
	c.Advance(0.02)
	ch.PublishPresent("s1", nil, nil)
	c.Advance(0)
	require.NoError(t, <-errc)
}

func TestCloseRacingResolveLeavesNoSubscriptions(t *testing.T) {
	t.Parallel()

	reg := overlay.NewRegistry[string]()
	var c *Coordinator
	// runs before the coordinator's watcher for the same Resolve
	reg.Watch(func(ch *overlay.Channel[string]) {
		if ch.Key() == "late" {
			c.Close()
		}
	})
	c = New(reg, Settings{Appear: 0, Dismiss: 0})

	late := reg.Resolve("late")
	require.Zero(t, late.Subscribers())
	late.PublishPresent("l1", nil, nil)
	c.Advance(0)
	require.Empty(t, c.Active())
}

func TestLaterLayerCreatedAfterCoordinator(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	reg.Resolve("popover").PublishPresent("p1", func() string { return "pop" }, nil)
	reg.Resolve(overlay.RootLayer).PublishPresent("r1", func() string { return "root" }, nil)
	reg.Resolve("alert").PublishPresent("a1", func() string { return "alert" }, nil)
	c.Advance(0)

	var got []string
	for _, a := range c.Active() {
		got = append(got, a.Layer.String()+"/"+a.ID)
	}
	require.Equal(t, []string{"root/r1", "alert/a1", "popover/p1"}, got)

	layer, id, ok := c.Topmost()
	require.True(t, ok)
	require.Equal(t, overlay.LayerKey("popover"), layer)
	require.Equal(t, "p1", id)
}

func TestOutsideTapReachesTopmostHandle(t *testing.T) {
	t.Parallel()

	c, reg := newTestCoordinator(t)
	ch := reg.Resolve("alert")
	h := overlay.NewHandle(ch, "m1")
	defer h.Close()
	var taps int
	h.OnOutsideInteraction(func() { taps++ })

	ch.PublishPresent("m1", func() string { return "Are you sure?" }, nil)
	c.Advance(1)
	c.Advance(0)
	c.View("", 60, 20)

	active := c.Active()
	require.Len(t, active, 1)
	e := c.find("alert", "m1")
	require.NotNil(t, e)

	_, handled := c.Update(tea.MouseMsg{X: e.bounds.x + 1, Y: e.bounds.y + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.True(t, handled)
	require.Zero(t, taps)

	_, handled = c.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.True(t, handled)
	require.Equal(t, 1, taps)

	_, handled = c.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.True(t, handled)
	require.Equal(t, 2, taps)
}

func TestInputPassesThroughWithoutCards(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	_, handled := c.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, handled)
	_, handled = c.Update(tea.MouseMsg{X: 3, Y: 3, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.False(t, handled)
	_, handled = c.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	require.False(t, handled)
	require.Equal(t, "base", strings.TrimSpace(strings.Split(c.View("base", 0, 0), "\n")[0]))
}

func TestFrameMsgSchedulesNextFrame(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	cmd, handled := c.Update(FrameMsg{At: time.Now()})
	require.True(t, handled)
	require.NotNil(t, cmd)
	require.NotNil(t, c.Init())
}

func TestElapsedIsClamped(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t)
	t0 := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	require.InDelta(t, 0.1, c.elapsed(t0), 0.0001)
	require.InDelta(t, 0.05, c.elapsed(t0.Add(50*time.Millisecond)), 0.0001)
	require.InDelta(t, 0.4, c.elapsed(t0.Add(10*time.Second)), 0.0001)
	require.Zero(t, c.elapsed(t0))
}

func TestSettingsFromConfig(t *testing.T) {
	t.Parallel()

	s := SettingsFromConfig(config.OverlayConfig{
		Layers: []string{"sheet", "toast"}, FrameRate: 60, AppearMS: 250, DismissMS: 150, Easing: "linear",
	}, nil)
	require.Equal(t, []overlay.LayerKey{"sheet", "toast"}, s.Layers)
	require.Equal(t, 250*time.Millisecond, s.Appear)
	require.Equal(t, 150*time.Millisecond, s.Dismiss)
	require.Equal(t, float32(5), s.Easing(0.5, 0, 10, 1))
}
