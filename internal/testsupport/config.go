package testsupport

import (
	"path/filepath"
	"testing"

	"pharos/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.PortsDir = filepath.Join(base, "roms", "ports")
	cfgVal.Paths.BottlesDir = filepath.Join(base, "roms", "windows")
	cfgVal.Paths.ResourcesDir = filepath.Join(base, "resources")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "resources", "manifest.json")
	cfgVal.Paths.SourcesFile = filepath.Join(base, "sources")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Images.GitHubToken = ""
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithQuarantine enables moving failed archives into the staging failed dir.
func WithQuarantine() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Install.QuarantineFailed = true
	}
}

// WithGitHubAPI points image sync and catalog lookups at a test server.
func WithGitHubAPI(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.GitHubAPIURL = url
	}
}

// WithNtfyTopic sets the notification endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
