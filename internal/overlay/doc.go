// Package overlay coordinates content presented above the normal view tree.
//
// Content is addressed by a layer and a per-instance id. Every layer has one
// [Channel], resolved through a [Registry], which broadcasts four kinds of
// events to its subscribers:
//
//   - present: a new id should be inserted; carries the render func and an
//     OnShown completion
//   - update: the content for a presented id must be re-rendered
//   - dismiss: an id should be removed; carries an OnDismissed completion
//   - interaction: an outside tap was seen for an id
//
// A coordinator (see internal/coordinator) subscribes to every channel via
// [Registry.Watch], performs the insertion and exit animations, and calls the
// completions. Content receives a [Handle] that only sees events for its own
// id.
//
// # Usage
//
//	reg := overlay.NewRegistry[string](overlay.WithLogger(logger))
//	ch := reg.Resolve("alerts")
//
//	h := overlay.NewLinkedHandle(ch)
//	defer h.Close()
//	h.OnOutsideInteraction(func() { ch.PublishDismiss(h.ID(), nil) })
//
//	if err := ch.Present(ctx, h.ID(), renderAlert); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// All types are safe for use from any goroutine and none of them start
// goroutines. Publishing delivers synchronously, in the publisher's
// goroutine, to a snapshot of the subscribers taken at publish time, so
// subscribers must not block. Events published by one goroutine on one
// channel reach a subscriber in publish order; nothing else is ordered.
// A subscriber that panics is logged and skipped.
//
// # Failure model
//
// Nothing here returns an error. Publishing with no subscriber drops the
// event; update or dismiss for an id that was never presented is dropped by
// whoever receives it. Completions must be called exactly once by the party
// that owns the animation. [WithDebugChecks] logs these caller mistakes
// without changing behaviour.
package overlay
