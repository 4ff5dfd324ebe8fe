package download_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"pharos/internal/catalog"
	"pharos/internal/download"
)

type countingRunner struct {
	queue   *download.Queue
	starts  atomic.Int32
	handled atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) error {
	r.starts.Add(1)
	if n := r.running.Add(1); n > r.peak.Load() {
		r.peak.Store(n)
	}
	defer r.running.Add(-1)
	for {
		_, stop, err := r.queue.Get(ctx)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
		r.handled.Add(1)
	}
}

func TestManagerRunsSingleWorker(t *testing.T) {
	queue := download.NewQueue()
	runner := &countingRunner{queue: queue}
	mgr := download.NewManager(context.Background(), queue, runner, nil)

	for i := 0; i < 5; i++ {
		mgr.Submit(catalog.Request{Package: &catalog.Package{Name: "p"}, Kind: catalog.KindPort})
	}
	if !mgr.Active() {
		t.Fatal("expected an active worker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := runner.starts.Load(); got != 1 {
		t.Fatalf("worker started %d times", got)
	}
	if got := runner.peak.Load(); got != 1 {
		t.Fatalf("peak concurrent workers = %d", got)
	}
	if got := runner.handled.Load(); got != 5 {
		t.Fatalf("handled %d requests, want 5", got)
	}
	if mgr.Active() {
		t.Fatal("worker should be inactive after shutdown")
	}
}

type stuckRunner struct{ release chan struct{} }

func (r stuckRunner) Run(context.Context) error {
	<-r.release
	return nil
}

func TestManagerShutdownAbandonsStuckWorker(t *testing.T) {
	runner := stuckRunner{release: make(chan struct{})}
	defer close(runner.release)
	mgr := download.NewManager(context.Background(), download.NewQueue(), runner, nil)
	mgr.Submit(catalog.Request{Package: &catalog.Package{Name: "p"}, Kind: catalog.KindPort})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := mgr.Shutdown(ctx); !errors.Is(err, download.ErrShutdownTimeout) {
		t.Fatalf("expected ErrShutdownTimeout, got %v", err)
	}
}

func TestShutdownWithoutWorkerIsNoop(t *testing.T) {
	mgr := download.NewManager(context.Background(), download.NewQueue(), &countingRunner{}, nil)
	if err := mgr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
