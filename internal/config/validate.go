package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PortsDir) == "" {
		return errors.New("paths.ports_dir must be set")
	}
	if strings.TrimSpace(c.Paths.BottlesDir) == "" {
		return errors.New("paths.bottles_dir must be set")
	}
	if filepath.Clean(c.Paths.PortsDir) == filepath.Clean(c.Paths.BottlesDir) {
		return errors.New("paths.ports_dir and paths.bottles_dir must differ")
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		return errors.New("paths.ledger_path must be set")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"download.chunk_size_kib":       c.Download.ChunkSizeKiB,
		"download.request_timeout":      c.Download.RequestTimeout,
		"images.request_timeout":        c.Images.RequestTimeout,
		"workflow.shutdown_timeout":     c.Workflow.ShutdownTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateImages() error {
	if !c.Images.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Images.GitHubAPIURL, "http://") && !strings.HasPrefix(c.Images.GitHubAPIURL, "https://") {
		return fmt.Errorf("images.github_api_url must be an http(s) URL, got %q", c.Images.GitHubAPIURL)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
