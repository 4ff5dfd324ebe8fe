package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeImages()
	c.normalizeTimings()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.PortsDir, err = expandPath(c.Paths.PortsDir); err != nil {
		return fmt.Errorf("paths.ports_dir: %w", err)
	}
	if c.Paths.BottlesDir, err = expandPath(c.Paths.BottlesDir); err != nil {
		return fmt.Errorf("paths.bottles_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResourcesDir) == "" {
		c.Paths.ResourcesDir = defaultResourcesDir
	}
	if c.Paths.ResourcesDir, err = expandPath(c.Paths.ResourcesDir); err != nil {
		return fmt.Errorf("paths.resources_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = filepath.Join(c.Paths.ResourcesDir, defaultLedgerName)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	if c.Paths.SourcesFile, err = expandPath(c.Paths.SourcesFile); err != nil {
		return fmt.Errorf("paths.sources_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	if c.Download.ChunkSizeKiB <= 0 {
		c.Download.ChunkSizeKiB = defaultChunkSizeKiB
	}
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	if c.Download.MinFreeMiB < 0 {
		c.Download.MinFreeMiB = 0
	}
}

func (c *Config) normalizeImages() {
	c.Images.GitHubAPIURL = strings.TrimRight(strings.TrimSpace(c.Images.GitHubAPIURL), "/")
	if c.Images.GitHubAPIURL == "" {
		c.Images.GitHubAPIURL = defaultGitHubAPIURL
	}
	c.Images.GitHubToken = strings.TrimSpace(c.Images.GitHubToken)
	if c.Images.GitHubToken == "" {
		if value, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
			c.Images.GitHubToken = strings.TrimSpace(value)
		}
	}
	c.Images.ReleaseTag = strings.TrimSpace(c.Images.ReleaseTag)
	if c.Images.ReleaseTag == "" {
		c.Images.ReleaseTag = defaultImagesReleaseTag
	}
}

func (c *Config) normalizeTimings() {
	if c.Progress.StickySeconds < 0 {
		c.Progress.StickySeconds = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("PHAROS_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.KeepFiles < 0 {
		c.Logging.KeepFiles = 0
	}
}
