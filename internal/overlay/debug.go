package overlay

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

type phase int

const (
	phasePresenting phase = iota + 1
	phasePresented
	phaseDismissing
)

// tracker follows the per-id lifecycle convention
// (absent -> presenting -> presented -> dismissing -> absent) and logs
// violations. It never blocks or drops an event.
type tracker struct {
	key    LayerKey
	logger *slog.Logger

	mu     sync.Mutex
	phases map[string]phase
}

func newTracker(key LayerKey, logger *slog.Logger) *tracker {
	return &tracker{key: key, logger: logger, phases: make(map[string]phase)}
}

func (t *tracker) warn(msg, id string, attrs ...any) {
	t.logger.Warn(msg, append([]any{"layer", t.key.String(), "id", id}, attrs...)...)
}

func (t *tracker) present(id string, onShown func()) func() {
	t.mu.Lock()
	if p, ok := t.phases[id]; ok && p != phaseDismissing {
		t.warn("present for an id that is already live", id)
	}
	t.phases[id] = phasePresenting
	t.mu.Unlock()
	return t.once("on_shown", id, onShown, func() {
		t.mu.Lock()
		if t.phases[id] == phasePresenting {
			t.phases[id] = phasePresented
		}
		t.mu.Unlock()
	})
}

func (t *tracker) update(id string) {
	t.mu.Lock()
	p, ok := t.phases[id]
	t.mu.Unlock()
	if !ok || p == phaseDismissing {
		t.warn("update for an id that is not presented", id)
	}
}

func (t *tracker) dismiss(id string, onDismissed func()) func() {
	t.mu.Lock()
	if _, ok := t.phases[id]; !ok {
		t.warn("dismiss for an id that was never presented", id)
	}
	t.phases[id] = phaseDismissing
	t.mu.Unlock()
	return t.once("on_dismissed", id, onDismissed, func() {
		t.mu.Lock()
		if t.phases[id] == phaseDismissing {
			delete(t.phases, id)
		}
		t.mu.Unlock()
	})
}

func (t *tracker) unheard(stream, id string) {
	t.warn("event published with no subscriber", id, "stream", stream)
}

// once wraps a completion so a second call is reported. The completion is
// still forwarded on every call.
func (t *tracker) once(name, id string, fn, first func()) func() {
	var calls atomic.Int32
	return func() {
		if calls.Add(1) == 1 {
			first()
		} else {
			t.warn("completion invoked more than once", id, "completion", name)
		}
		fn()
	}
}
