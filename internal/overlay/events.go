package overlay

// LayerKey names a layer. RootLayer is the default layer; distinct keys never
// share a channel.
type LayerKey string

// RootLayer is the default layer.
const RootLayer LayerKey = ""

func (k LayerKey) String() string {
	if k == RootLayer {
		return "root"
	}
	return string(k)
}

// PresentEvent announces that ID should be inserted. Render is evaluated by
// the receiver every time it draws; OnShown is called once the appear
// animation completes.
type PresentEvent[C any] struct {
	ID      string
	Render  func() C
	OnShown func()
}

// UpdateEvent announces that the content of an already presented ID changed.
type UpdateEvent[C any] struct {
	ID     string
	Render func() C
}

// DismissEvent announces that ID should be removed. OnDismissed is called once
// the exit animation completes, after which state tied to ID may be released.
type DismissEvent struct {
	ID          string
	OnDismissed func()
}

// InteractionKind classifies user interaction signals.
type InteractionKind int

const (
	// OutsideTap is a press outside the bounds of the presented content.
	OutsideTap InteractionKind = iota
)

func (k InteractionKind) String() string {
	switch k {
	case OutsideTap:
		return "outside-tap"
	default:
		return "unknown"
	}
}

// InteractionEvent carries a user interaction aimed at ID.
type InteractionEvent struct {
	ID   string
	Kind InteractionKind
}

func noop() {}
