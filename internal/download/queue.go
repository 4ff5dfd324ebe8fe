package download

import (
	"context"
	"sync"

	"pharos/internal/catalog"
)

type queueItem struct {
	req  catalog.Request
	stop bool
}

// Queue is a multi-producer FIFO of package requests with a stop sentinel.
type Queue struct {
	mu     sync.Mutex
	items  []queueItem
	notify chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Submit appends a request.
func (q *Queue) Submit(req catalog.Request) {
	q.push(queueItem{req: req})
}

// Stop appends the sentinel. The consumer returns when it reaches it,
// leaving anything queued after it in place.
func (q *Queue) Stop() {
	q.push(queueItem{stop: true})
}

func (q *Queue) push(item queueItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Get blocks until an item is available or ctx ends. stop reports the
// sentinel.
func (q *Queue) Get(ctx context.Context) (req catalog.Request, stop bool, err error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = queueItem{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item.req, item.stop, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return catalog.Request{}, false, ctx.Err()
		}
	}
}

// Len returns the number of queued items, sentinels included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the number of queued requests, sentinels excluded.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, item := range q.items {
		if !item.stop {
			n++
		}
	}
	return n
}

// Empty reports whether no request is pending right now. A queued stop
// sentinel does not count, so the install pass still runs before the
// worker stops.
func (q *Queue) Empty() bool {
	return q.Pending() == 0
}

// Clear drops pending requests and keeps any stop sentinel. It returns the
// number of requests dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	dropped := 0
	for _, item := range q.items {
		if item.stop {
			kept = append(kept, item)
			continue
		}
		dropped++
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = queueItem{}
	}
	q.items = kept
	return dropped
}
