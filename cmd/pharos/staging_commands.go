package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pharos/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staged archives",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staged archives awaiting install",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.StagingDir
			if failed {
				dir = staging.FailedDir(dir)
			}
			archives, err := staging.ListArchives(dir)
			if err != nil {
				return fmt.Errorf("list staged archives: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(archives) == 0 {
				fmt.Fprintln(out, "No staged archives")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", dir)
			var total int64
			rows := make([][]string, 0, len(archives))
			for _, archive := range archives {
				total += archive.Size
				rows = append(rows, []string{
					archive.Name,
					humanize.Time(archive.ModTime),
					humanize.IBytes(uint64(archive.Size)),
				})
			}
			fmt.Fprint(out, tableSpec{
				headers: []string{"Archive", "Staged", "Size"},
				rows:    rows,
				aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
				footer:  []string{fmt.Sprintf("%d archives", len(archives)), "", humanize.IBytes(uint64(total))},
			}.render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "List quarantined archives instead")
	return cmd
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var failed bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove partial downloads and, optionally, quarantined archives",
		Long: `Remove files left behind by interrupted downloads and ledger writes.

With --failed, archives quarantined after a failed install are removed too;
--older-than limits that to archives quarantined before the given age.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()
			result := staging.CleanPartial(cmd.Context(), cfg.Paths.StagingDir, logger)
			if failed {
				extra := staging.CleanFailed(cmd.Context(), cfg.Paths.StagingDir, olderThan, logger)
				result.Removed = append(result.Removed, extra.Removed...)
				result.Errors = append(result.Errors, extra.Errors...)
			}
			return printStagingCleanResult(cmd, result)
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "Also remove quarantined archives")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove quarantined archives older than this")
	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "Nothing to clean")
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d files, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d files\n", len(result.Removed))
	return nil
}
