package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharos/internal/catalog"
	"pharos/internal/config"
	"pharos/internal/history"
	"pharos/internal/install"
	"pharos/internal/logging"
	"pharos/internal/notifications"
	"pharos/internal/progress"
	"pharos/internal/services"
)

// Installer runs an install pass over the staging directory.
type Installer interface {
	InstallAll(ctx context.Context, sink progress.Sink) install.Summary
}

// LedgerRecorder persists fingerprints of completed transfers.
type LedgerRecorder interface {
	RecordInstall(pkg *catalog.Package, kind catalog.Kind) error
}

// Journal receives history entries. Write failures are logged only.
type Journal interface {
	Record(ctx context.Context, entry history.Entry) (int64, error)
}

// Dependencies are the collaborators a Worker needs. Nil optional fields fall
// back to no-ops.
type Dependencies struct {
	Ledger    LedgerRecorder
	Installer Installer
	Sink      progress.Sink
	Client    HTTPDoer
	History   Journal
	Notifier  notifications.Service
	Logger    *slog.Logger
}

// Worker is the single consumer of a Queue.
type Worker struct {
	queue      *Queue
	stagingDir string
	chunkSize  int
	userAgent  string
	minFree    uint64

	client    HTTPDoer
	ledger    LedgerRecorder
	installer Installer
	sink      progress.Sink
	history   Journal
	notifier  notifications.Service
	logger    *slog.Logger
	now       func() time.Time
}

// NewWorker wires a worker for queue from configuration.
func NewWorker(cfg *config.Config, queue *Queue, deps Dependencies) *Worker {
	chunk := cfg.ChunkSize()
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	client := deps.Client
	if client == nil {
		client = NewHTTPClient(cfg.DownloadTimeout())
	}
	sink := deps.Sink
	if sink == nil {
		sink = progress.Discard
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		queue:      queue,
		stagingDir: cfg.Paths.StagingDir,
		chunkSize:  chunk,
		userAgent:  cfg.Download.UserAgent,
		minFree:    cfg.MinFreeBytes(),
		client:     client,
		ledger:     deps.Ledger,
		installer:  deps.Installer,
		sink:       sink,
		history:    deps.History,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "download"),
		now:        time.Now,
	}
}

// Run consumes the queue until the stop sentinel or ctx ends. After each
// request, an empty queue triggers one install pass.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("download worker started")
	for {
		req, stop, err := w.queue.Get(ctx)
		if err != nil {
			w.logger.Debug("download worker cancelled", logging.Error(err))
			return err
		}
		if stop {
			w.logger.Debug("download worker stopping")
			return nil
		}
		w.handle(ctx, req)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.queue.Empty() {
			w.InstallPass(ctx)
		}
	}
}

func (w *Worker) handle(ctx context.Context, req catalog.Request) {
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	if req.Package != nil {
		ctx = services.WithPackage(ctx, req.Package.Name)
	}
	ctx = services.WithStage(ctx, "download")
	logger := logging.WithContext(ctx, w.logger)

	logger.Info("transfer started", logging.String("kind", string(req.Kind)))
	result, err := w.transfer(ctx, req.Package)
	if err != nil {
		w.reportFailure(ctx, req, requestID, err)
		return
	}
	logger.Info("transfer completed",
		logging.Int64("bytes", result.Bytes),
		logging.String("md5", result.Fingerprint),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "transfer_completed"),
	)

	entry := history.Entry{
		Kind:          history.KindTransfer,
		Name:          req.Package.Name,
		PackageKind:   string(req.Kind),
		Status:        services.OutcomeOK,
		Bytes:         result.Bytes,
		Fingerprint:   result.Fingerprint,
		CorrelationID: requestID,
	}
	if w.ledger != nil {
		if err := w.ledger.RecordInstall(req.Package, req.Kind); err != nil {
			entry.Detail = err.Error()
			logging.WarnWithContext(logger, "ledger not updated", "ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the ledger path"),
				logging.String(logging.FieldImpact, "update detection may report this package as changed"),
			)
		}
	}
	w.journal(ctx, entry)
}

func (w *Worker) reportFailure(ctx context.Context, req catalog.Request, requestID string, err error) {
	name := "unknown"
	archive := "unknown.zip"
	if req.Package != nil {
		name = req.Package.Name
		archive = req.Package.ArchiveName()
	}
	w.sink.Publish(progress.Event{
		Message: fmt.Sprintf("Failed %s: %v", archive, err),
		Stage:   progress.StageDownload,
		Err:     err,
	})
	if errors.Is(err, context.Canceled) {
		return
	}
	logging.ErrorWithContext(logging.WithContext(ctx, w.logger), "transfer failed", "transfer_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the download url and network access, then request the package again"),
		logging.String(logging.FieldImpact, "package not staged; remaining queue continues"),
	)
	w.journal(ctx, history.Entry{
		Kind:          history.KindTransfer,
		Name:          name,
		PackageKind:   string(req.Kind),
		Status:        services.FailureOutcome(err),
		Detail:        err.Error(),
		CorrelationID: requestID,
	})
	if notifyErr := w.notifier.NotifyTransferFailed(ctx, name, err); notifyErr != nil {
		w.logger.Debug("transfer failure notification not sent", logging.Error(notifyErr))
	}
}

// InstallPass installs everything currently staged, journals each archive,
// and sends the completion notification.
func (w *Worker) InstallPass(ctx context.Context) install.Summary {
	if w.installer == nil {
		return install.Summary{}
	}
	summary := w.installer.InstallAll(ctx, w.sink)
	if len(summary.Results) == 0 {
		return summary
	}
	w.logger.Info("install pass finished",
		logging.Int("installed", summary.Installed),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "install_pass_completed"),
	)
	for _, res := range summary.Results {
		status := services.OutcomeOK
		detail := ""
		if res.Status != install.StatusOK {
			status = services.OutcomeFailed
			detail = res.Status.String()
		}
		w.journal(ctx, history.Entry{
			Kind:        history.KindInstall,
			Name:        res.Archive,
			PackageKind: string(res.Kind),
			Status:      status,
			Detail:      detail,
		})
	}
	if err := w.notifier.NotifyInstallPassCompleted(ctx, summary.Installed, summary.Failed); err != nil {
		w.logger.Debug("install notification not sent", logging.Error(err))
	}
	return summary
}

func (w *Worker) journal(ctx context.Context, entry history.Entry) {
	if w.history == nil {
		return
	}
	if _, err := w.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(w.logger, "history entry not recorded", "history_write_failed",
			logging.String("name", entry.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "activity journal is incomplete"),
		)
	}
}
