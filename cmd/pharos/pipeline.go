package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"pharos/internal/config"
	"pharos/internal/download"
	"pharos/internal/install"
	"pharos/internal/ledger"
	"pharos/internal/logging"
	"pharos/internal/notifications"
	"pharos/internal/progress"
)

// tally forwards events to the renderer and counts outcomes.
type tally struct {
	next progress.Sink

	mu             sync.Mutex
	downloaded     int
	downloadFailed int
	installed      int
	installFailed  int
}

func (t *tally) Publish(ev progress.Event) {
	t.mu.Lock()
	switch {
	case ev.Stage == progress.StageDownload && ev.Failed():
		t.downloadFailed++
	case ev.Stage == progress.StageDownload && strings.HasPrefix(ev.Message, "Downloaded: "):
		t.downloaded++
	case ev.Stage == progress.StageInstall && ev.Failed():
		t.installFailed++
	case ev.Stage == progress.StageInstall && strings.HasPrefix(ev.Message, "Installed: "):
		t.installed++
	}
	t.mu.Unlock()
	t.next.Publish(ev)
}

func (t *tally) summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("Downloaded %d, failed %d; installed %d, install failures %d",
		t.downloaded, t.downloadFailed, t.installed, t.installFailed)
}

// pipeline is one locked download and install session.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	lock     *flock.Flock
	channel  *progress.Channel
	renderer *progressRenderer
	tally    *tally
	ledger   *ledger.Ledger
	queue    *download.Queue
	worker   *download.Worker
	manager  *download.Manager
}

func (c *commandContext) startPipeline(ctx context.Context, out io.Writer) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lock, err := acquireRunLock(cfg)
	if err != nil {
		return nil, err
	}
	logger := c.ensureLogger()

	channel := progress.NewChannel(progress.DefaultBuffer)
	renderer := newProgressRenderer(out, channel, cfg.StickyWindow())
	counts := &tally{next: renderer}
	led := ledger.New(cfg.Paths.LedgerPath, logger)
	queue := download.NewQueue()
	deps := download.Dependencies{
		Ledger:    led,
		Installer: install.NewEngine(cfg, logger),
		Sink:      counts,
		Notifier:  notifications.NewService(cfg),
		Logger:    logger,
	}
	if store := c.historyStore(); store != nil {
		deps.History = store
	}
	worker := download.NewWorker(cfg, queue, deps)

	p := &pipeline{
		cfg:      cfg,
		logger:   logger,
		lock:     lock,
		channel:  channel,
		renderer: renderer,
		tally:    counts,
		ledger:   led,
		queue:    queue,
		worker:   worker,
		manager:  download.NewManager(ctx, queue, worker, logger),
	}
	p.renderer.Start()
	return p, nil
}

// finish waits for queued work, honouring the shutdown deadline once ctx is
// cancelled, then stops rendering and releases the lock.
func (p *pipeline) finish(ctx context.Context) error {
	err := p.manager.Shutdown(ctx)
	if ctx.Err() != nil {
		waitCtx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout())
		_ = p.manager.Shutdown(waitCtx)
		cancel()
		err = ctx.Err()
	}
	p.close()
	return err
}

func (p *pipeline) close() {
	p.renderer.Stop()
	if err := p.lock.Unlock(); err != nil {
		p.logger.Warn("run lock not released", logging.Error(err))
	}
}
