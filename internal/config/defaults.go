package config

const (
	defaultStagingDir             = "~/.local/share/pharos/autoinstall"
	defaultPortsDir               = "/roms/ports"
	defaultBottlesDir             = "/roms/windows"
	defaultResourcesDir           = "~/.local/share/pharos/resources"
	defaultLedgerName             = "manifest.json"
	defaultSourcesFile            = "~/.config/pharos/sources"
	defaultLogDir                 = "~/.local/share/pharos/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultLogKeepFiles           = 10
	defaultChunkSizeKiB           = 64
	defaultDownloadRequestTimeout = 60
	defaultUserAgent              = "Pharos/1.0"
	defaultImagesRequestTimeout   = 60
	defaultGitHubAPIURL           = "https://api.github.com"
	defaultImagesReleaseTag       = "screenshots-latest"
	defaultStickySeconds          = 2
	defaultShutdownTimeout        = 5
	defaultNotifyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:   defaultStagingDir,
			PortsDir:     defaultPortsDir,
			BottlesDir:   defaultBottlesDir,
			ResourcesDir: defaultResourcesDir,
			SourcesFile:  defaultSourcesFile,
			LogDir:       defaultLogDir,
		},
		Download: Download{
			ChunkSizeKiB:   defaultChunkSizeKiB,
			RequestTimeout: defaultDownloadRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Images: Images{
			Enabled:        true,
			RequestTimeout: defaultImagesRequestTimeout,
			GitHubAPIURL:   defaultGitHubAPIURL,
			ReleaseTag:     defaultImagesReleaseTag,
		},
		Progress: Progress{
			StickySeconds: defaultStickySeconds,
		},
		Workflow: Workflow{
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Install:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			KeepFiles:     defaultLogKeepFiles,
		},
	}
}
