package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pharos/internal/logging"
)

// FailedDirName is the quarantine directory for archives that failed to install.
const FailedDirName = "failed"

// ArchiveInfo describes a staged archive.
type ArchiveInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// CleanResult contains the outcome of a cleanup operation.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// FailedDir returns the quarantine directory beneath stagingDir.
func FailedDir(stagingDir string) string {
	return filepath.Join(stagingDir, FailedDirName)
}

// ValidateArchiveName reports whether name can be staged as name+".zip"
// directly inside the staging directory.
func ValidateArchiveName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("empty package name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid package name %q", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("package name %q contains a path separator", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("package name %q contains a NUL byte", name)
	}
	return nil
}

// ArchivePath returns the staged location for a package archive.
func ArchivePath(stagingDir, name string) string {
	return filepath.Join(stagingDir, name+".zip")
}

// ListArchives returns the *.zip files directly inside dir, sorted by name.
// A missing directory yields no archives.
func ListArchives(dir string) ([]ArchiveInfo, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var archives []ArchiveInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Name < archives[j].Name })
	return archives, nil
}

// CleanPartial removes temp files left in stagingDir by interrupted writes.
func CleanPartial(ctx context.Context, stagingDir string, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		name := entry.Name()
		if entry.IsDir() || !isPartial(name) {
			continue
		}
		removeLogged(filepath.Join(stagingDir, name), "partial download", &result, logger)
	}
	return result
}

// CleanFailed removes quarantined archives older than maxAge. A zero maxAge
// removes every quarantined archive.
func CleanFailed(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	archives, err := ListArchives(FailedDir(stagingDir))
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: FailedDir(stagingDir), Error: err})
		return result
	}
	cutoff := time.Now().Add(-maxAge)
	for _, archive := range archives {
		if ctx.Err() != nil {
			break
		}
		if maxAge > 0 && !archive.ModTime.Before(cutoff) {
			continue
		}
		removeLogged(archive.Path, "failed archive", &result, logger)
	}
	return result
}

func isPartial(name string) bool {
	return strings.HasSuffix(name, ".part") || (strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-"))
}

func removeLogged(path, what string, result *CleanResult, logger *slog.Logger) {
	if err := os.Remove(path); err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		logging.WarnWithContext(logger, "failed to remove "+what, "staging_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return
	}
	result.Removed = append(result.Removed, path)
	if logger != nil {
		logger.Info("removed "+what,
			logging.String("path", path),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
}
