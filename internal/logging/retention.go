package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionPolicy bounds how many per-run log files survive and for how long.
// Zero values disable the corresponding rule.
type RetentionPolicy struct {
	Days      int
	KeepFiles int
	Pattern   string
	Exclude   []string
}

// CleanupOldLogs prunes files in dir matching policy.Pattern. Files older than
// policy.Days are removed, then the newest policy.KeepFiles are kept. Excluded
// paths (typically the log file of the current run) are never removed.
func CleanupOldLogs(logger *slog.Logger, dir string, policy RetentionPolicy, now time.Time) int {
	dir = strings.TrimSpace(dir)
	if dir == "" || (policy.Days <= 0 && policy.KeepFiles <= 0) {
		return 0
	}
	pattern := strings.TrimSpace(policy.Pattern)
	if pattern == "" {
		pattern = LogFilePrefix + "*.log"
	}
	excluded := make(map[string]struct{}, len(policy.Exclude))
	for _, path := range policy.Exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			excluded[abs] = struct{}{}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	type candidate struct {
		path    string
		modTime time.Time
	}
	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
			continue
		}
		full, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if _, skip := excluded[full]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: full, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var cutoff time.Time
	if policy.Days > 0 {
		cutoff = now.AddDate(0, 0, -policy.Days)
	}
	// The excluded current file counts toward KeepFiles.
	keep := policy.KeepFiles - len(excluded)
	removed := 0
	for i, file := range files {
		expired := !cutoff.IsZero() && file.modTime.Before(cutoff)
		overflow := policy.KeepFiles > 0 && i >= keep
		if !expired && !overflow {
			continue
		}
		if err := os.Remove(file.path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", file.path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", file.path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
