package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jask/overlayhost/internal/database"
	"github.com/jask/overlayhost/internal/database/repository"
	"github.com/jask/overlayhost/internal/overlay"
)

const maxBatch = 64

// Journal records every overlay lifecycle event into sqlite. Channel
// subscribers only enqueue; Run does the writes on its own goroutine so
// publishers never wait on disk.
type Journal struct {
	Events *repository.EventRepo
	Logger *slog.Logger

	queue   chan repository.Event
	dropped atomic.Int64
}

// NewJournal returns a journal with a queue of the given size.
func NewJournal(events *repository.EventRepo, logger *slog.Logger, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{Events: events, Logger: logger, queue: make(chan repository.Event, buffer)}
}

// AttachJournal subscribes j to every current and future channel of reg.
// Cancelling the returned subscription detaches it everywhere.
func AttachJournal[C any](j *Journal, reg *overlay.Registry[C]) *overlay.Subscription {
	var (
		mu     sync.Mutex
		subs   []*overlay.Subscription
		closed bool
	)
	watch := reg.Watch(func(ch *overlay.Channel[C]) {
		layer := ch.Key().String()
		s := []*overlay.Subscription{
			ch.SubscribePresent(func(ev overlay.PresentEvent[C]) {
				j.record(layer, ev.ID, repository.KindPresent, "")
			}),
			ch.SubscribeUpdate(func(ev overlay.UpdateEvent[C]) {
				j.record(layer, ev.ID, repository.KindUpdate, "")
			}),
			ch.SubscribeDismiss(func(ev overlay.DismissEvent) {
				j.record(layer, ev.ID, repository.KindDismiss, "")
			}),
			ch.SubscribeInteraction(func(ev overlay.InteractionEvent) {
				j.record(layer, ev.ID, repository.KindInteraction, ev.Kind.String())
			}),
		}
		mu.Lock()
		defer mu.Unlock()
		// a Resolve that raced the detach still delivers to this watcher
		if closed {
			cancelAll(s)
			return
		}
		subs = append(subs, s...)
	})
	return overlay.NewSubscription(func() {
		watch.Cancel()
		mu.Lock()
		defer mu.Unlock()
		closed = true
		cancelAll(subs)
		subs = nil
	})
}

func cancelAll(subs []*overlay.Subscription) {
	for _, s := range subs {
		s.Cancel()
	}
}

func (j *Journal) record(layer, linkID, kind, detail string) {
	e := repository.Event{
		ID:        uuid.NewString(),
		Layer:     layer,
		LinkID:    linkID,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: database.Now(),
	}
	select {
	case j.queue <- e:
	default:
		if j.dropped.Add(1) == 1 {
			j.Logger.Warn("journal queue full, dropping events", "capacity", cap(j.queue))
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Run writes queued events until ctx is done, then flushes what is left.
// Writes are not bound to ctx, so events queued before shutdown still land.
// The first failed write is returned once Run stops.
func (j *Journal) Run(ctx context.Context) error {
	wctx := context.WithoutCancel(ctx)
	var failed error
	for {
		select {
		case <-ctx.Done():
			return errors.Join(failed, j.Flush(wctx))
		case e := <-j.queue:
			if err := j.write(wctx, j.drain(e)); err != nil {
				j.Logger.Error("journal write failed", "err", err)
				if failed == nil {
					failed = err
				}
			}
		}
	}
}

// Flush writes whatever is queued right now.
func (j *Journal) Flush(ctx context.Context) error {
	for {
		select {
		case e := <-j.queue:
			if err := j.write(ctx, j.drain(e)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (j *Journal) drain(first repository.Event) []repository.Event {
	batch := []repository.Event{first}
	for len(batch) < maxBatch {
		select {
		case e := <-j.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (j *Journal) write(ctx context.Context, batch []repository.Event) error {
	if err := j.Events.InsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("journal: insert %d events: %w", len(batch), err)
	}
	j.Logger.Debug("journal batch written", "events", len(batch))
	return nil
}

// Prune deletes events older than maxAge.
func (j *Journal) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := j.Events.PruneBefore(ctx, database.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return n, nil
}
