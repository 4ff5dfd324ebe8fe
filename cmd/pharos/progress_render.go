package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"pharos/internal/progress"
)

const renderInterval = 100 * time.Millisecond

// progressRenderer draws the sticky progress line on a terminal. On other
// writers it prints milestone events only, one per line, as they are
// published, so chunk bursts in the bounded channel cannot displace them.
type progressRenderer struct {
	channel *progress.Channel
	display *progress.Display
	out     io.Writer
	tty     bool

	stop chan struct{}
	wg   sync.WaitGroup
	last string

	mu      sync.Mutex
	stopped bool
}

func newProgressRenderer(out io.Writer, channel *progress.Channel, window time.Duration) *progressRenderer {
	return &progressRenderer{
		channel: channel,
		display: progress.NewDisplay(channel, window),
		out:     out,
		tty:     isTerminal(out),
		stop:    make(chan struct{}),
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Publish implements progress.Sink.
func (r *progressRenderer) Publish(ev progress.Event) {
	if r.tty {
		r.channel.Publish(ev)
		return
	}
	if !isMilestone(ev) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	fmt.Fprintln(r.out, ev.Message)
}

func (r *progressRenderer) Start() {
	if !r.tty {
		return
	}
	r.wg.Add(1)
	go r.runTerminal()
}

// Stop draws the final line and waits for the render loop to exit. Events
// published afterwards are dropped.
func (r *progressRenderer) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	close(r.stop)
	r.wg.Wait()
}

func (r *progressRenderer) runTerminal() {
	defer r.wg.Done()
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			if ev, ok := r.display.Poll(time.Now()); ok {
				r.drawLine(formatEvent(ev))
			}
			if r.last != "" {
				fmt.Fprintln(r.out)
			}
			return
		case now := <-ticker.C:
			ev, ok := r.display.Poll(now)
			if !ok {
				r.drawLine("")
				continue
			}
			r.drawLine(formatEvent(ev))
		}
	}
}

func (r *progressRenderer) drawLine(line string) {
	if line == r.last {
		return
	}
	fmt.Fprint(r.out, "\r\033[K"+line)
	r.last = line
}

func isMilestone(ev progress.Event) bool {
	if ev.Stage != progress.StageDownload || ev.Failed() {
		return true
	}
	return strings.HasPrefix(ev.Message, "Downloaded: ")
}

func formatEvent(ev progress.Event) string {
	if ev.Stage != progress.StageDownload || ev.Failed() || ev.Total <= 0 || ev.Done >= ev.Total {
		return ev.Message
	}
	return fmt.Sprintf("%s [%s / %s]", ev.Message, humanize.IBytes(uint64(ev.Done)), humanize.IBytes(uint64(ev.Total)))
}
