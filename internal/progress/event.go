// Package progress carries transfer and install events from the download
// worker to whatever renders them, and implements the sticky display rule.
package progress

// Stage identifies which part of the pipeline produced an event.
type Stage string

const (
	StageDownload Stage = "download"
	StageInstall  Stage = "install"
	StagePhase    Stage = "phase"
)

// Event is one progress update. Total <= 0 means the size is unknown.
type Event struct {
	Done    int64
	Total   int64
	Message string
	Stage   Stage
	Err     error
}

// Percent returns completion in the range 0-100. Unknown totals report 100.
func (e Event) Percent() float64 {
	if e.Total <= 0 {
		return 100
	}
	pct := float64(e.Done) / float64(e.Total) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// Failed reports whether the event carries an error.
func (e Event) Failed() bool {
	return e.Err != nil
}

// Sink receives events. Implementations must not block the caller.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(ev Event) {
	if f != nil {
		f(ev)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(nil)
