package install

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pharos/internal/catalog"
	"pharos/internal/config"
	"pharos/internal/fileutil"
	"pharos/internal/gamelist"
	"pharos/internal/logging"
	"pharos/internal/progress"
	"pharos/internal/services"
	"pharos/internal/staging"
)

// Roots holds the two library roots.
type Roots struct {
	Ports   string
	Bottles string
}

// For returns the root that receives archives of kind.
func (r Roots) For(kind catalog.Kind) string {
	if kind == catalog.KindBottle {
		return r.Bottles
	}
	return r.Ports
}

// Result describes one archive install.
type Result struct {
	Archive       string
	Status        Status
	Kind          catalog.Kind
	Root          string
	Files         int
	MetadataAdded int
	Quarantined   string
}

// Summary aggregates one install pass.
type Summary struct {
	Results   []Result
	Installed int
	Failed    int
}

// Engine installs staged archives.
type Engine struct {
	roots      Roots
	stagingDir string
	quarantine bool
	logger     *slog.Logger
}

// NewEngine builds an engine from configuration.
func NewEngine(cfg *config.Config, logger *slog.Logger) *Engine {
	return New(Roots{Ports: cfg.Paths.PortsDir, Bottles: cfg.Paths.BottlesDir}, cfg.Paths.StagingDir, cfg.Install.QuarantineFailed, logger)
}

// New builds an engine. When quarantine is true, failed archives are moved
// into the staging failed directory instead of being left in place.
func New(roots Roots, stagingDir string, quarantine bool, logger *slog.Logger) *Engine {
	return &Engine{
		roots:      roots,
		stagingDir: stagingDir,
		quarantine: quarantine,
		logger:     logging.NewComponentLogger(logger, "install"),
	}
}

// InstallArchive installs the archive at archivePath. On success the archive
// is deleted. On failure it is kept (or quarantined) and the error wraps one
// of services.ErrNotFound, ErrBadArchive, ErrMissingDescriptor, or a
// transient marker for extraction failures.
func (e *Engine) InstallArchive(ctx context.Context, archivePath string) (Result, error) {
	name := filepath.Base(archivePath)
	ctx = services.WithPackage(services.WithStage(ctx, "install"), strings.TrimSuffix(name, filepath.Ext(name)))
	logger := logging.WithContext(ctx, e.logger)

	result := Result{Archive: name}
	if info, err := os.Stat(archivePath); err != nil || info.IsDir() {
		result.Status = StatusNotFound
		err = services.Wrap(services.ErrNotFound, "install", "locate archive", archivePath, err)
		logging.ErrorWithContext(logger, "archive not found", "install_not_found", logging.Error(err))
		return result, err
	}

	logger.Info("installing archive", logging.String("archive", archivePath))
	err := e.installFromArchive(logger, archivePath, &result)
	result.Status = StatusOf(err)
	if err != nil {
		logging.ErrorWithContext(logger, "install failed", "install_failed",
			logging.String("archive", archivePath),
			logging.String("status", result.Status.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the archive; it is retried on every install pass until replaced"),
		)
		e.handleFailure(logger, archivePath, &result)
		return result, err
	}

	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "installed archive could not be removed", "install_cleanup_failed",
			logging.String("archive", archivePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the archive will be installed again on the next pass"),
		)
	}
	logger.Info("archive installed",
		logging.String("kind", string(result.Kind)),
		logging.String("root", result.Root),
		logging.Int("files", result.Files),
		logging.Int("metadata_added", result.MetadataAdded),
		logging.String(logging.FieldEventType, "install_completed"),
	)
	return result, nil
}

func (e *Engine) installFromArchive(logger *slog.Logger, archivePath string, result *Result) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return services.Wrap(services.ErrBadArchive, "install", "open archive", result.Archive, err)
	}
	defer reader.Close()

	kind, descriptor, ok := findDescriptor(reader.File)
	if !ok {
		return services.Wrap(services.ErrMissingDescriptor, "install", "scan archive",
			fmt.Sprintf("no %s or %s in %s", catalog.KindPort.DescriptorFile(), catalog.KindBottle.DescriptorFile(), result.Archive), nil)
	}
	root := e.roots.For(kind)
	if strings.TrimSpace(root) == "" {
		return services.Wrap(services.ErrConfiguration, "install", "resolve root", "library root for "+string(kind)+" is not set", nil)
	}
	result.Kind = kind
	result.Root = root
	logger.Debug("package descriptor found", logging.String("descriptor", descriptor), logging.String("kind", string(kind)))

	if err := fileutil.ValidateZipEntries(root, reader.File); err != nil {
		return services.Wrap(services.ErrBadArchive, "install", "validate entries", result.Archive, err)
	}
	files, err := fileutil.ExtractZip(root, reader.File)
	result.Files = files
	if err != nil {
		return services.Wrap(services.ErrTransient, "install", "extract", result.Archive, err)
	}
	if removed, err := removeMacArtifacts(root); err != nil {
		return services.Wrap(services.ErrTransient, "install", "remove macOS artifacts", root, err)
	} else if removed > 0 {
		logger.Debug("removed macOS artifacts", logging.Int("count", removed))
	}

	e.mergeMetadata(logger, root, reader.File, result)
	return nil
}

// findDescriptor returns the kind of the first entry, in archive order,
// whose name ends with a package descriptor file name.
func findDescriptor(files []*zip.File) (catalog.Kind, string, bool) {
	for _, f := range files {
		for _, kind := range catalog.Kinds {
			if strings.HasSuffix(f.Name, kind.DescriptorFile()) {
				return kind, f.Name, true
			}
		}
	}
	return "", "", false
}

// mergeMetadata merges the first extracted gameinfo.xml into the root index.
// Merge failures are logged and never fail the install.
func (e *Engine) mergeMetadata(logger *slog.Logger, root string, files []*zip.File, result *Result) {
	for _, f := range files {
		if !strings.HasSuffix(f.Name, gamelist.MetadataFile) {
			continue
		}
		candidate, err := fileutil.SafeJoin(root, f.Name)
		if err != nil {
			continue
		}
		if info, err := os.Stat(candidate); err != nil || !info.Mode().IsRegular() {
			continue
		}
		added, err := gamelist.Merge(filepath.Join(root, gamelist.IndexFile), candidate, logger)
		if err != nil {
			logging.WarnWithContext(logger, "gamelist merge failed", "gamelist_merge_failed",
				logging.String("metadata", candidate),
				logging.Error(err),
				logging.String(logging.FieldImpact, "package installed without a library index entry"),
			)
			return
		}
		result.MetadataAdded = added
		return
	}
	logging.WarnWithContext(logger, "no gameinfo.xml in archive", "gamelist_metadata_missing",
		logging.String("archive", result.Archive),
		logging.String(logging.FieldErrorHint, "ask the package maintainer to ship gameinfo.xml"),
		logging.String(logging.FieldImpact, "package installed without a library index entry"),
	)
}

func (e *Engine) handleFailure(logger *slog.Logger, archivePath string, result *Result) {
	if !e.quarantine || result.Status == StatusNotFound || e.stagingDir == "" {
		return
	}
	dest := filepath.Join(staging.FailedDir(e.stagingDir), result.Archive)
	if err := fileutil.MoveFile(archivePath, dest); err != nil {
		logging.WarnWithContext(logger, "failed archive could not be quarantined", "install_quarantine_failed",
			logging.String("archive", archivePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the archive is retried on the next install pass"),
		)
		return
	}
	result.Quarantined = dest
	logger.Info("failed archive quarantined",
		logging.String("destination", dest),
		logging.String(logging.FieldEventType, "install_quarantined"),
	)
}

// InstallAll installs every archive in the staging directory in name order,
// publishing phase and per-archive events to sink. Nothing is published when
// the staging directory holds no archives.
func (e *Engine) InstallAll(ctx context.Context, sink progress.Sink) Summary {
	if sink == nil {
		sink = progress.Discard
	}
	summary := Summary{}
	archives, err := staging.ListArchives(e.stagingDir)
	if err != nil {
		logging.ErrorWithContext(e.logger, "staging directory unreadable", "install_list_failed",
			logging.String("staging_dir", e.stagingDir),
			logging.Error(err),
		)
		return summary
	}
	if len(archives) == 0 {
		return summary
	}

	sink.Publish(progress.Event{Total: 1, Message: "Installing packages…", Stage: progress.StagePhase})
	for _, archive := range archives {
		if ctx.Err() != nil {
			break
		}
		sink.Publish(progress.Event{Total: 1, Message: "Installing " + archive.Name, Stage: progress.StageInstall})
		result, err := e.InstallArchive(ctx, archive.Path)
		summary.Results = append(summary.Results, result)
		if err != nil {
			summary.Failed++
			sink.Publish(progress.Event{Total: 1, Message: "[ERROR] Install failed: " + archive.Name, Stage: progress.StageInstall, Err: err})
			continue
		}
		summary.Installed++
		sink.Publish(progress.Event{Done: 1, Total: 1, Message: "Installed: " + archive.Name, Stage: progress.StageInstall})
	}
	sink.Publish(progress.Event{Done: 1, Total: 1, Message: "Installation complete", Stage: progress.StageInstall})
	return summary
}
