package overlay

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle scopes a channel to one presented instance. Content receives a
// Handle and only ever observes events whose id equals the handle's link id.
//
// A Handle keeps its channel subscriptions until Close. Closing without the
// dismiss completion having been called leaves whoever waits on it waiting;
// that is the owner's responsibility.
type Handle[C any] struct {
	id      string
	channel *Channel[C]
	shown   atomic.Bool

	present stream[struct{}]
	dismiss stream[func()]
	outside stream[struct{}]

	closeOnce sync.Once
	upstream  []*Subscription
}

// NewHandle subscribes to ch and filters its events down to linkID.
func NewHandle[C any](ch *Channel[C], linkID string) *Handle[C] {
	h := &Handle[C]{id: linkID, channel: ch}
	h.upstream = []*Subscription{
		ch.SubscribePresent(func(ev PresentEvent[C]) {
			if ev.ID != h.id || !h.shown.CompareAndSwap(false, true) {
				return
			}
			h.present.publish(struct{}{}, ch.recovered("handle present", h.id))
		}),
		ch.SubscribeDismiss(func(ev DismissEvent) {
			if ev.ID != h.id {
				return
			}
			h.dismiss.publish(ev.OnDismissed, ch.recovered("handle dismiss", h.id))
		}),
		ch.SubscribeInteraction(func(ev InteractionEvent) {
			if ev.ID != h.id || ev.Kind != OutsideTap {
				return
			}
			h.outside.publish(struct{}{}, ch.recovered("handle interaction", h.id))
		}),
	}
	return h
}

// NewLinkedHandle is NewHandle with a fresh random link id.
func NewLinkedHandle[C any](ch *Channel[C]) *Handle[C] {
	return NewHandle(ch, uuid.NewString())
}

// ID returns the link id.
func (h *Handle[C]) ID() string { return h.id }

// Channel returns the channel the handle is bound to.
func (h *Handle[C]) Channel() *Channel[C] { return h.channel }

// OnPresent registers fn for this instance's present event. It fires at most
// once over the life of the handle.
func (h *Handle[C]) OnPresent(fn func()) *Subscription {
	return h.present.subscribe(func(struct{}) { fn() })
}

// OnDismiss registers fn for this instance's dismiss event. done is the
// event's OnDismissed completion and must be called exactly once by whoever
// runs the exit animation.
func (h *Handle[C]) OnDismiss(fn func(done func())) *Subscription {
	return h.dismiss.subscribe(fn)
}

// OnOutsideInteraction registers fn for outside taps aimed at this instance.
// What to do about them is up to the content.
func (h *Handle[C]) OnOutsideInteraction(fn func()) *Subscription {
	return h.outside.subscribe(func(struct{}) { fn() })
}

// Close drops the channel subscriptions and every registered callback.
func (h *Handle[C]) Close() {
	h.closeOnce.Do(func() {
		for _, sub := range h.upstream {
			sub.Cancel()
		}
		h.present.clear()
		h.dismiss.clear()
		h.outside.clear()
	})
}
