package overlay

import "sync"

// Subscription is returned by every Subscribe/On/Watch call.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription returns a Subscription that runs cancel at most once. It
// lets callers that fan out over several subscriptions hand back one.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel stops delivery. It is safe to call more than once and on nil.
func (s *Subscription) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type subscriber[E any] struct {
	id uint64
	fn func(E)
}

// stream is a copy-on-write subscriber list. subs is replaced on every
// change and never mutated in place, so a snapshot can be iterated without
// holding the lock.
type stream[E any] struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber[E]
}

func (s *stream[E]) subscribe(fn func(E)) *Subscription {
	s.mu.Lock()
	s.next++
	id := s.next
	subs := make([]subscriber[E], len(s.subs), len(s.subs)+1)
	copy(subs, s.subs)
	s.subs = append(subs, subscriber[E]{id: id, fn: fn})
	s.mu.Unlock()
	return &Subscription{cancel: func() { s.remove(id) }}
}

func (s *stream[E]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]subscriber[E], 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.id != id {
			subs = append(subs, sub)
		}
	}
	s.subs = subs
}

func (s *stream[E]) clear() {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
}

func (s *stream[E]) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// publish delivers ev to the subscribers present when it was called and
// returns how many there were.
func (s *stream[E]) publish(ev E, onPanic func(any)) int {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, sub := range subs {
		deliver(sub.fn, ev, onPanic)
	}
	return len(subs)
}

func deliver[E any](fn func(E), ev E, onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	fn(ev)
}
