package progress

import (
	"sync"
	"time"
)

// DefaultStickyWindow is how long a shown event stays up without a newer one.
const DefaultStickyWindow = 2 * time.Second

// Display applies the sticky rule on top of a Channel. Each Poll picks up the
// newest unread event if any; the displayed event stays current for the
// sticky window after it was first shown, then the display goes idle.
type Display struct {
	mu      sync.Mutex
	source  *Channel
	window  time.Duration
	current Event
	shownAt time.Time
	showing bool
}

// NewDisplay returns a display reading from source. A non-positive window
// uses DefaultStickyWindow.
func NewDisplay(source *Channel, window time.Duration) *Display {
	if window <= 0 {
		window = DefaultStickyWindow
	}
	return &Display{source: source, window: window}
}

// Poll returns the event to render at now. ok is false when the display is
// idle.
func (d *Display) Poll(now time.Time) (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev, ok := d.source.Latest(); ok {
		d.current = ev
		d.shownAt = now
		d.showing = true
	}
	if !d.showing {
		return Event{}, false
	}
	if now.Sub(d.shownAt) > d.window {
		d.showing = false
		d.current = Event{}
		return Event{}, false
	}
	return d.current, true
}
