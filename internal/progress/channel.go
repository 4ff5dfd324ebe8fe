package progress

// DefaultBuffer is the number of unread events a Channel keeps.
const DefaultBuffer = 64

// Channel is a one-way event stream with one producer and one consumer.
// Publish never blocks: when the buffer is full the oldest unread event is
// dropped, since only the most recent one matters for display.
type Channel struct {
	events chan Event
}

// NewChannel returns a channel holding up to size unread events.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Channel{events: make(chan Event, size)}
}

// Publish enqueues ev without blocking.
func (c *Channel) Publish(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

// Latest drains every unread event and returns the newest. ok is false when
// nothing arrived since the previous call.
func (c *Channel) Latest() (ev Event, ok bool) {
	for {
		select {
		case next := <-c.events:
			ev, ok = next, true
		default:
			return ev, ok
		}
	}
}

// Events exposes the receive side for consumers that prefer to block.
func (c *Channel) Events() <-chan Event {
	return c.events
}
