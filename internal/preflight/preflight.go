package preflight

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"pharos/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Ports directory", cfg.Paths.PortsDir),
		CheckDirectoryAccess("Bottles directory", cfg.Paths.BottlesDir),
		CheckDirectoryAccess("Resources directory", cfg.Paths.ResourcesDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, cfg.MinFreeBytes()),
		CheckFile("Sources file", cfg.Paths.SourcesFile),
	}

	if cfg.Images.Enabled {
		results = append(results, CheckGitHubAPI(ctx, cfg.Images.GitHubAPIURL, cfg.Images.GitHubToken))
	}
	return results
}

// EnsureFreeSpace fails when the volume holding path has less than need bytes
// available. A zero need always passes.
func EnsureFreeSpace(path string, need uint64) error {
	if need == 0 {
		return nil
	}
	free, err := FreeBytes(path)
	if err != nil {
		return err
	}
	if free < need {
		return fmt.Errorf("%s has %s free, need %s", path, humanize.IBytes(free), humanize.IBytes(need))
	}
	return nil
}
