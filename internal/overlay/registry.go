package overlay

import (
	"log/slog"
	"sync"
)

// Registry maps layer keys to channels, creating them on first use. A
// program normally builds one Registry at startup and injects it wherever
// content is presented; channels are never removed.
type Registry[C any] struct {
	opts   []Option
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[LayerKey]*Channel[C]
	order    []LayerKey
	watchers stream[*Channel[C]]
}

// NewRegistry returns an empty registry. opts are applied to every channel it
// creates.
func NewRegistry[C any](opts ...Option) *Registry[C] {
	o := buildOptions(opts)
	return &Registry[C]{
		opts:     opts,
		logger:   o.logger,
		channels: make(map[LayerKey]*Channel[C]),
	}
}

// Resolve returns the channel for key, creating it if needed. Concurrent
// calls for the same unseen key observe the same channel.
func (r *Registry[C]) Resolve(key LayerKey) *Channel[C] {
	r.mu.RLock()
	ch, ok := r.channels[key]
	r.mu.RUnlock()
	if ok {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[key]; ok {
		return ch
	}
	ch = NewChannel[C](key, r.opts...)
	r.channels[key] = ch
	r.order = append(r.order, key)
	r.logger.Debug("overlay layer created", "layer", key.String())
	r.watchers.publish(ch, r.watchPanic(key))
	return ch
}

// Watch calls fn for every existing channel and then for each channel created
// afterwards. fn runs with the registry locked: it may subscribe to the
// channel but must not call Resolve.
func (r *Registry[C]) Watch(fn func(*Channel[C])) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.order {
		deliver(fn, r.channels[key], r.watchPanic(key))
	}
	return r.watchers.subscribe(fn)
}

// Layers returns the known keys in creation order.
func (r *Registry[C]) Layers() []LayerKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LayerKey, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry[C]) watchPanic(key LayerKey) func(any) {
	return func(rec any) {
		r.logger.Error("overlay watcher panicked", "layer", key.String(), "panic", rec)
	}
}
