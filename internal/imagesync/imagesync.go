package imagesync

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pharos/internal/catalog"
	"pharos/internal/fileutil"
	"pharos/internal/logging"
	"pharos/internal/services"
)

// DescriptorFile is the name of the descriptor kept beside the images.
const DescriptorFile = "images.json"

const (
	tempArchivePattern = ".images-*.zip"
	incomingPattern    = ".incoming-*"
)

// Descriptor identifies the asset the current images were extracted from.
type Descriptor struct {
	ID   int64 `json:"id"`
	Size int64 `json:"size"`
}

// Outcome summarizes a single source sync.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeNoAsset Outcome = "no-asset"
	OutcomeCurrent Outcome = "current"
	OutcomeUpdated Outcome = "updated"
)

// Report pairs a source with its sync result.
type Report struct {
	Source  *catalog.Source
	Outcome Outcome
	Files   int
	Err     error
}

// Syncer refreshes image directories from release assets.
type Syncer struct {
	client ReleaseClient
	logger *slog.Logger
}

// New builds a Syncer around client.
func New(client ReleaseClient, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{client: client, logger: logging.NewComponentLogger(logger, "imagesync")}
}

// ReadDescriptor loads the descriptor in dir. A missing or unreadable
// descriptor reports ok=false.
func ReadDescriptor(dir string) (Descriptor, bool) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return Descriptor{}, false
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return Descriptor{}, false
	}
	return desc, true
}

// WriteDescriptor atomically replaces the descriptor in dir.
func WriteDescriptor(dir string, desc Descriptor) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	return fileutil.WriteFileAtomic(filepath.Join(dir, DescriptorFile), data, 0o644)
}

// Sync brings src.ImagesDir in line with the source's images.zip asset.
func (s *Syncer) Sync(ctx context.Context, src *catalog.Source) (Outcome, int, error) {
	if src == nil || src.ImagesDir == "" || src.ImagesZipURL == "" {
		return OutcomeSkipped, 0, nil
	}
	logger := s.logger.With(logging.String("source", src.Slug()))

	asset, err := s.client.FindAsset(ctx, src.ImagesZipURL)
	if err != nil {
		return "", 0, services.Wrap(services.ErrImageSync, "imagesync", "find asset", "Could not query the images release", err)
	}
	if asset == nil {
		logger.Debug("no images asset published")
		return OutcomeNoAsset, 0, nil
	}

	current, ok := ReadDescriptor(src.ImagesDir)
	if ok && current.ID == asset.ID && current.Size == asset.Size {
		logger.Debug("images up to date", logging.Int64("asset_id", asset.ID))
		return OutcomeCurrent, 0, nil
	}

	files, err := s.replace(ctx, src.ImagesDir, asset)
	if err != nil {
		return "", 0, services.Wrap(services.ErrImageSync, "imagesync", "replace images", "Image refresh failed; previous images kept", err)
	}
	logger.Info("images updated",
		logging.Int64("asset_id", asset.ID),
		logging.Int64("size", asset.Size),
		logging.Int("files", files),
	)
	return OutcomeUpdated, files, nil
}

func (s *Syncer) replace(ctx context.Context, dir string, asset *Asset) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create image dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempArchivePattern)
	if err != nil {
		return 0, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := s.client.Download(ctx, asset, tmp); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp archive: %w", err)
	}

	reader, err := zip.OpenReader(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("open images archive: %w", err)
	}
	defer reader.Close()

	incoming, err := os.MkdirTemp(dir, incomingPattern)
	if err != nil {
		return 0, fmt.Errorf("create incoming dir: %w", err)
	}
	defer os.RemoveAll(incoming)

	if err := fileutil.ValidateZipEntries(incoming, reader.File); err != nil {
		return 0, err
	}
	files, err := fileutil.ExtractZip(incoming, reader.File)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	keep := map[string]bool{
		DescriptorFile:          true,
		filepath.Base(tmpPath):  true,
		filepath.Base(incoming): true,
	}
	if err := clearDir(dir, keep); err != nil {
		return 0, err
	}
	if err := moveEntries(incoming, dir); err != nil {
		return 0, err
	}
	if err := WriteDescriptor(dir, Descriptor{ID: asset.ID, Size: asset.Size}); err != nil {
		return 0, err
	}
	return files, nil
}

func clearDir(dir string, keep map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read image dir: %w", err)
	}
	for _, entry := range entries {
		if keep[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func moveEntries(from, to string) error {
	entries, err := os.ReadDir(from)
	if err != nil {
		return fmt.Errorf("read incoming dir: %w", err)
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), DescriptorFile) {
			continue
		}
		if err := os.Rename(filepath.Join(from, entry.Name()), filepath.Join(to, entry.Name())); err != nil {
			return fmt.Errorf("move %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// SyncAll syncs every source concurrently. Failures are logged and carried
// in the reports; they never abort the other sources.
func (s *Syncer) SyncAll(ctx context.Context, sources []*catalog.Source) []Report {
	reports := make([]Report, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src *catalog.Source) {
			defer wg.Done()
			outcome, files, err := s.Sync(ctx, src)
			reports[i] = Report{Source: src, Outcome: outcome, Files: files, Err: err}
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(s.logger, "image sync failed", "image_sync_failed",
					logging.String("source", src.Slug()),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check network access and the release assets"),
					logging.String(logging.FieldImpact, "previous images remain in place"),
				)
			}
		}(i, src)
	}
	wg.Wait()
	return reports
}
