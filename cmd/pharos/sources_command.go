package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pharos/internal/catalog"
	"pharos/internal/imagesync"
	"pharos/internal/ledger"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	var fetch bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured catalog sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sources, err := ctx.loadSources()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !fetch {
				rows := make([][]string, 0, len(sources))
				for _, src := range sources {
					_, synced := imagesync.ReadDescriptor(src.ImagesDir)
					rows = append(rows, []string{src.Slug(), src.URL, yesNo(synced)})
				}
				fmt.Fprint(out, renderTable([]string{"Source", "URL", "Images"}, rows, nil))
				return nil
			}

			logger := ctx.ensureLogger()
			catalog.NewFetcher(cfg, logger).FetchAll(cmd.Context(), sources)
			idx := ledger.LoadIndex(cfg.Paths.LedgerPath, logger)
			rows := make([][]string, 0, len(sources))
			for _, src := range sources {
				counts := make([]string, 0, 2*len(catalog.Kinds)+1)
				previews := 0
				for _, kind := range catalog.Kinds {
					items := src.Items(kind)
					catalog.MarkUpdates(items, idx)
					catalog.AttachImages(items, src.ImagesDir)
					updates := 0
					for _, item := range items {
						if item.UpdateAvailable {
							updates++
						}
						if item.ImagePath != "" {
							previews++
						}
					}
					counts = append(counts, strconv.Itoa(len(items)), strconv.Itoa(updates))
				}
				counts = append(counts, strconv.Itoa(previews))
				rows = append(rows, append([]string{src.Slug()}, counts...))
			}
			fmt.Fprint(out, renderTable(
				[]string{"Source", "Ports", "Port updates", "Bottles", "Bottle updates", "Previews"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Fetch listings and count available updates")
	return cmd
}
