package download

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharos/internal/catalog"
)

func request(name string) catalog.Request {
	return catalog.Request{Package: &catalog.Package{Name: name}, Kind: catalog.KindPort}
}

func TestQueueFIFOAndSentinel(t *testing.T) {
	q := NewQueue()
	q.Submit(request("a"))
	q.Submit(request("b"))
	q.Stop()
	q.Submit(request("c"))

	ctx := context.Background()
	for _, want := range []string{"a", "b"} {
		req, stop, err := q.Get(ctx)
		if err != nil || stop {
			t.Fatalf("Get: stop=%v err=%v", stop, err)
		}
		if req.Package.Name != want {
			t.Fatalf("got %s, want %s", req.Package.Name, want)
		}
	}
	if _, stop, _ := q.Get(ctx); !stop {
		t.Fatal("expected sentinel")
	}
	if q.Len() != 1 {
		t.Fatalf("items after the sentinel should remain, len=%d", q.Len())
	}
}

func TestQueueGetHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestQueueGetWakesOnSubmit(t *testing.T) {
	q := NewQueue()
	got := make(chan string, 1)
	go func() {
		req, _, err := q.Get(context.Background())
		if err == nil {
			got <- req.Package.Name
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.Submit(request("late"))
	select {
	case name := <-got:
		if name != "late" {
			t.Fatalf("got %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not wake after Submit")
	}
}

func TestQueueClearKeepsSentinel(t *testing.T) {
	q := NewQueue()
	q.Submit(request("a"))
	q.Stop()
	q.Submit(request("b"))
	if dropped := q.Clear(); dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
	if _, stop, _ := q.Get(context.Background()); !stop {
		t.Fatal("expected the sentinel to survive Clear")
	}
	if !q.Empty() {
		t.Fatal("queue should be empty")
	}
}

func TestQueueEmptyIgnoresSentinel(t *testing.T) {
	q := NewQueue()
	q.Stop()
	if !q.Empty() || q.Pending() != 0 || q.Len() != 1 {
		t.Fatalf("empty=%v pending=%d len=%d", q.Empty(), q.Pending(), q.Len())
	}
	q.Submit(request("a"))
	if q.Empty() {
		t.Fatal("queue with a request should not be empty")
	}
}
