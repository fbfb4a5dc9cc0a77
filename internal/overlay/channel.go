package overlay

import (
	"context"
	"log/slog"
	"sync"
)

// Channel is the event bus for one layer. Delivery is broadcast: a
// subscriber only sees events published after it subscribed.
type Channel[C any] struct {
	key    LayerKey
	logger *slog.Logger
	debug  *tracker

	present  stream[PresentEvent[C]]
	update   stream[UpdateEvent[C]]
	dismiss  stream[DismissEvent]
	interact stream[InteractionEvent]
}

// NewChannel returns a standalone channel. Most callers get channels from
// Registry.Resolve instead.
func NewChannel[C any](key LayerKey, opts ...Option) *Channel[C] {
	o := buildOptions(opts)
	ch := &Channel[C]{key: key, logger: o.logger.With("layer", key.String())}
	if o.debug {
		ch.debug = newTracker(key, o.logger)
	}
	return ch
}

// Key returns the layer this channel serves.
func (c *Channel[C]) Key() LayerKey { return c.key }

// Subscribers returns the number of live subscriptions across all streams.
func (c *Channel[C]) Subscribers() int {
	return c.present.size() + c.update.size() + c.dismiss.size() + c.interact.size()
}

func (c *Channel[C]) SubscribePresent(fn func(PresentEvent[C])) *Subscription {
	return c.present.subscribe(fn)
}

func (c *Channel[C]) SubscribeUpdate(fn func(UpdateEvent[C])) *Subscription {
	return c.update.subscribe(fn)
}

func (c *Channel[C]) SubscribeDismiss(fn func(DismissEvent)) *Subscription {
	return c.dismiss.subscribe(fn)
}

func (c *Channel[C]) SubscribeInteraction(fn func(InteractionEvent)) *Subscription {
	return c.interact.subscribe(fn)
}

// PublishPresent announces that id should be inserted. onShown may be nil.
func (c *Channel[C]) PublishPresent(id string, render func() C, onShown func()) {
	if onShown == nil {
		onShown = noop
	}
	if c.debug != nil {
		onShown = c.debug.present(id, onShown)
	}
	n := c.present.publish(PresentEvent[C]{ID: id, Render: render, OnShown: onShown}, c.recovered("present", id))
	c.heard(n, "present", id)
}

// PublishUpdate announces new content for id. Nobody caring about id is not
// an error; the update is simply missed.
func (c *Channel[C]) PublishUpdate(id string, render func() C) {
	if c.debug != nil {
		c.debug.update(id)
	}
	n := c.update.publish(UpdateEvent[C]{ID: id, Render: render}, c.recovered("update", id))
	c.heard(n, "update", id)
}

// PublishDismiss announces that id should be removed. onDismissed may be nil.
func (c *Channel[C]) PublishDismiss(id string, onDismissed func()) {
	if onDismissed == nil {
		onDismissed = noop
	}
	if c.debug != nil {
		onDismissed = c.debug.dismiss(id, onDismissed)
	}
	n := c.dismiss.publish(DismissEvent{ID: id, OnDismissed: onDismissed}, c.recovered("dismiss", id))
	c.heard(n, "dismiss", id)
}

// PublishInteraction forwards a user interaction aimed at id.
func (c *Channel[C]) PublishInteraction(id string, kind InteractionKind) {
	n := c.interact.publish(InteractionEvent{ID: id, Kind: kind}, c.recovered("interaction", id))
	c.heard(n, "interaction", id)
}

// Present publishes a present event and waits until OnShown is called or ctx
// is done.
func (c *Channel[C]) Present(ctx context.Context, id string, render func() C) error {
	done := make(chan struct{})
	var once sync.Once
	c.PublishPresent(id, render, func() { once.Do(func() { close(done) }) })
	return wait(ctx, done)
}

// Dismiss publishes a dismiss event and waits until OnDismissed is called or
// ctx is done.
func (c *Channel[C]) Dismiss(ctx context.Context, id string) error {
	done := make(chan struct{})
	var once sync.Once
	c.PublishDismiss(id, func() { once.Do(func() { close(done) }) })
	return wait(ctx, done)
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel[C]) heard(n int, stream, id string) {
	if n == 0 && c.debug != nil {
		c.debug.unheard(stream, id)
	}
}

func (c *Channel[C]) recovered(stream, id string) func(any) {
	return func(r any) {
		c.logger.Error("overlay subscriber panicked", "stream", stream, "id", id, "panic", r)
	}
}
