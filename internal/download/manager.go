package download

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"pharos/internal/catalog"
	"pharos/internal/logging"
)

// ErrShutdownTimeout reports a worker that did not stop before the deadline.
var ErrShutdownTimeout = errors.New("download worker did not stop before the deadline")

// Runner is the consumer loop a Manager starts.
type Runner interface {
	Run(ctx context.Context) error
}

// Manager owns the queue and at most one running worker.
type Manager struct {
	ctx    context.Context
	queue  *Queue
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	done   chan struct{}
}

// NewManager returns a manager whose worker runs under ctx.
func NewManager(ctx context.Context, queue *Queue, runner Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		ctx:    ctx,
		queue:  queue,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "download"),
	}
}

// Queue exposes the managed queue.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Submit enqueues req and starts the worker if none is active.
func (m *Manager) Submit(req catalog.Request) {
	m.queue.Submit(req)
	m.ensureWorker()
}

// Active reports whether a worker is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) ensureWorker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true
	done := make(chan struct{})
	m.done = done
	go func() {
		defer func() {
			m.mu.Lock()
			m.active = false
			m.mu.Unlock()
			close(done)
		}()
		if err := m.runner.Run(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(m.logger, "download worker exited", "worker_exit", logging.Error(err))
		}
	}()
}

// Shutdown enqueues the stop sentinel and waits for the worker until ctx
// ends. A worker still running at the deadline is abandoned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	done := m.done
	m.mu.Unlock()
	if !active {
		return nil
	}
	m.queue.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logging.WarnWithContext(m.logger, "download worker abandoned", "worker_shutdown_timeout",
			logging.String(logging.FieldImpact, "an in-flight transfer may leave a partial archive in staging"),
			logging.String(logging.FieldErrorHint, "run `pharos staging clean` to remove partial files"),
		)
		return ErrShutdownTimeout
	}
}
