// Package testdata fills a journal with plausible overlay lifecycles for
// tests and demos.
package testdata

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/jask/overlayhost/internal/database/repository"
)

var layers = []string{"", "sheet", "alert", "toast"}

// Seed writes n lifecycles ending at now. Each lifecycle is a present, zero
// to three updates, sometimes an outside tap, and a dismiss. The same seed
// gives the same kinds and layers.
func Seed(ctx context.Context, events *repository.EventRepo, n int, seed uint64, now time.Time) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var batch []repository.Event
	at := now.Add(-time.Duration(n) * time.Minute)
	add := func(layer, link, kind, detail string) {
		at = at.Add(time.Duration(1+rng.IntN(900)) * time.Millisecond)
		batch = append(batch, repository.Event{
			ID:        uuid.NewString(),
			Layer:     layer,
			LinkID:    link,
			Kind:      kind,
			Detail:    detail,
			CreatedAt: at,
		})
	}
	for i := 0; i < n; i++ {
		layer := layers[rng.IntN(len(layers))]
		link := uuid.NewString()
		add(layer, link, repository.KindPresent, "")
		for u := rng.IntN(4); u > 0; u-- {
			add(layer, link, repository.KindUpdate, "")
		}
		if rng.IntN(3) == 0 {
			add(layer, link, repository.KindInteraction, "outside-tap")
		}
		add(layer, link, repository.KindDismiss, "")
	}
	if len(batch) == 0 {
		return nil
	}
	return events.InsertBatch(ctx, batch)
}
