package repository

import "time"

// Event kinds stored in overlay_events.kind.
const (
	KindPresent     = "present"
	KindUpdate      = "update"
	KindDismiss     = "dismiss"
	KindInteraction = "interaction"
)

// Event represents an overlay_events row: one lifecycle event seen on a layer.
type Event struct {
	ID        string
	Layer     string
	LinkID    string
	Kind      string
	Detail    string
	CreatedAt time.Time
}
