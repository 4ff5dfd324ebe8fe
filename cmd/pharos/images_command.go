package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pharos/internal/catalog"
	"pharos/internal/history"
	"pharos/internal/imagesync"
	"pharos/internal/logging"
	"pharos/internal/services"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "images [source]",
		Short: "Refresh preview images from each source's screenshots release",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Images.Enabled {
				fmt.Fprintln(out, "Image sync disabled in configuration")
				return nil
			}
			sources, err := ctx.loadSources()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				src := catalog.FindSource(sources, args[0])
				if src == nil {
					return fmt.Errorf("unknown source %q", args[0])
				}
				sources = []*catalog.Source{src}
			}

			logger := ctx.ensureLogger()
			syncer := imagesync.New(imagesync.NewGitHubClient(cfg), logger)
			reports := syncer.SyncAll(cmd.Context(), sources)

			store := ctx.historyStore()
			rows := make([][]string, 0, len(reports))
			for _, report := range reports {
				status := string(report.Outcome)
				detail := ""
				if report.Err != nil {
					status = services.OutcomeFailed
					detail = report.Err.Error()
				}
				rows = append(rows, []string{report.Source.Slug(), status, strconv.Itoa(report.Files), detail})
				if store == nil || report.Outcome == imagesync.OutcomeCurrent || report.Outcome == imagesync.OutcomeNoAsset {
					continue
				}
				if _, err := store.Record(cmd.Context(), history.Entry{
					Kind:   history.KindImageSync,
					Name:   report.Source.Slug(),
					Status: status,
					Detail: detail,
				}); err != nil {
					logger.Debug("image sync not journaled", logging.Error(err))
				}
			}
			fmt.Fprint(out, renderTable(
				[]string{"Source", "Result", "Files", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
