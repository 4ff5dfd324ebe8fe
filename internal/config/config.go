package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	StagingDir   string `toml:"staging_dir"`
	PortsDir     string `toml:"ports_dir"`
	BottlesDir   string `toml:"bottles_dir"`
	ResourcesDir string `toml:"resources_dir"`
	LedgerPath   string `toml:"ledger_path"`
	SourcesFile  string `toml:"sources_file"`
	LogDir       string `toml:"log_dir"`
}

// Download contains settings for the streamed package transfer.
type Download struct {
	ChunkSizeKiB   int    `toml:"chunk_size_kib"`
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
	MinFreeMiB     int    `toml:"min_free_mib"`
}

// Install contains settings for the archive install pass.
type Install struct {
	// QuarantineFailed moves archives that fail to install into the
	// staging "failed" directory instead of leaving them for the next pass.
	QuarantineFailed bool `toml:"quarantine_failed"`
}

// Images contains settings for preview-image bundle refreshes.
type Images struct {
	Enabled        bool   `toml:"enabled"`
	RequestTimeout int    `toml:"request_timeout"`
	GitHubAPIURL   string `toml:"github_api_url"`
	GitHubToken    string `toml:"github_token"`
	ReleaseTag     string `toml:"release_tag"`
}

// Progress contains settings for progress display.
type Progress struct {
	StickySeconds int `toml:"sticky_seconds"`
}

// Workflow contains settings for worker lifecycle.
type Workflow struct {
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Install        bool   `toml:"install"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	KeepFiles     int    `toml:"keep_files"`
}

// Config encapsulates all configuration values for Pharos.
//
// Configuration sections by subsystem:
//   - Paths: staging, library roots, resources, ledger, sources list, logs
//   - Download: chunk size, timeouts, user agent, free-space floor
//   - Install: failed archive policy
//   - Images: preview-image release lookups
//   - Progress: sticky display window
//   - Workflow: worker shutdown deadline
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	Install       Install       `toml:"install"`
	Images        Images        `toml:"images"`
	Progress      Progress      `toml:"progress"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pharos/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pharos.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// Library roots are created on a best-effort basis so downloads can proceed
// while removable storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.ResourcesDir, c.Paths.LogDir, filepath.Dir(c.Paths.LedgerPath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.PortsDir, c.Paths.BottlesDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// HistoryPath returns the location of the activity journal database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "pharos.lock")
}

// ChunkSize returns the transfer read size in bytes.
func (c *Config) ChunkSize() int {
	return c.Download.ChunkSizeKiB * 1024
}

// DownloadTimeout returns the per-request timeout for package transfers.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.RequestTimeout) * time.Second
}

// ImagesTimeout returns the per-request timeout for image sync calls.
func (c *Config) ImagesTimeout() time.Duration {
	return time.Duration(c.Images.RequestTimeout) * time.Second
}

// StickyWindow returns how long the last progress message stays displayed.
func (c *Config) StickyWindow() time.Duration {
	return time.Duration(c.Progress.StickySeconds) * time.Second
}

// ShutdownTimeout returns the bounded wait applied when stopping the worker.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Workflow.ShutdownTimeout) * time.Second
}

// MinFreeBytes returns the free-space floor enforced on the staging filesystem.
func (c *Config) MinFreeBytes() uint64 {
	if c.Download.MinFreeMiB <= 0 {
		return 0
	}
	return uint64(c.Download.MinFreeMiB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
