package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"pharos/internal/catalog"
	"pharos/internal/config"
	"pharos/internal/history"
	"pharos/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logPath    string

	historyOnce sync.Once
	history     *history.Store
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger opens this run's log file and prunes old ones. A logger that
// cannot be built falls back to a no-op so commands still run.
func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		console := c.verbose != nil && *c.verbose
		logger, logPath, err := logging.NewFromConfig(cfg, console)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
		c.logPath = logPath
		removed := logging.CleanupOldLogs(logger, cfg.Paths.LogDir, logging.RetentionPolicy{
			Days:      cfg.Logging.RetentionDays,
			KeepFiles: cfg.Logging.KeepFiles,
			Exclude:   []string{logPath},
		}, time.Now())
		if removed > 0 {
			logger.Debug("old logs pruned", logging.Int("removed", removed))
		}
	})
	return c.logger
}

// historyStore opens the journal lazily. Failures are logged and yield nil;
// the journal is never required for a command to succeed.
func (c *commandContext) historyStore() *history.Store {
	c.historyOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			return
		}
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(c.ensureLogger(), "history journal unavailable", "history_open_failed",
				logging.String("path", cfg.HistoryPath()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is not journaled"),
			)
			return
		}
		c.history = store
	})
	return c.history
}

func (c *commandContext) close() {
	if c.history != nil {
		_ = c.history.Close()
	}
}

// loadSources reads the configured sources file.
func (c *commandContext) loadSources() ([]*catalog.Source, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	sources, err := catalog.LoadSources(cfg.Paths.SourcesFile, cfg.Paths.ResourcesDir)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources configured in %s", cfg.Paths.SourcesFile)
	}
	for _, src := range sources {
		src.UseReleaseTag(cfg.Images.ReleaseTag)
	}
	return sources, nil
}

var errLocked = errors.New("another pharos run is already downloading or installing")

// acquireRunLock takes the single-instance lock guarding staging and the
// library roots.
func acquireRunLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", errLocked, cfg.LockPath())
	}
	return lock, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
