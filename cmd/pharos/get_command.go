package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pharos/internal/catalog"
	"pharos/internal/ledger"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var updates bool
	var bottles bool

	cmd := &cobra.Command{
		Use:   "get <source> [names...]",
		Short: "Download and install packages from a source",
		Long: `Download packages from a catalog source into staging and install them.

Name packages explicitly, or use --all for every package in the listing or
--updates for packages whose fingerprint differs from the ledger. Downloads
run one at a time; staged archives are installed once the queue drains.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sources, err := ctx.loadSources()
			if err != nil {
				return err
			}
			src := catalog.FindSource(sources, args[0])
			if src == nil {
				return fmt.Errorf("unknown source %q", args[0])
			}

			kind := catalog.KindPort
			if bottles {
				kind = catalog.KindBottle
			}
			logger := ctx.ensureLogger()
			if err := catalog.NewFetcher(cfg, logger).FetchSource(cmd.Context(), src); err != nil {
				return fmt.Errorf("load %s listing: %w", src.Slug(), err)
			}
			items := src.Items(kind)
			catalog.MarkUpdates(items, ledger.LoadIndex(cfg.Paths.LedgerPath, logger))

			selected, err := selectPackages(items, args[1:], all, updates)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to download")
				return nil
			}

			p, err := ctx.startPipeline(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, pkg := range selected {
				p.manager.Submit(catalog.Request{Package: pkg, Kind: kind})
			}
			if err := p.finish(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.tally.summary())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Download every package in the listing")
	cmd.Flags().BoolVar(&updates, "updates", false, "Download packages with an update available")
	cmd.Flags().BoolVar(&bottles, "bottles", false, "Select from the bottle listing instead of ports")
	cmd.MarkFlagsMutuallyExclusive("all", "updates")
	return cmd
}

func selectPackages(items []*catalog.Package, names []string, all, updates bool) ([]*catalog.Package, error) {
	switch {
	case all:
		return items, nil
	case updates:
		var out []*catalog.Package
		for _, item := range items {
			if item.UpdateAvailable {
				out = append(out, item)
			}
		}
		return out, nil
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("name at least one package, or pass --all or --updates")
	}
	var (
		out     []*catalog.Package
		missing []string
	)
	for _, name := range names {
		pkg := catalog.Find(items, name)
		if pkg == nil {
			missing = append(missing, name)
			continue
		}
		out = append(out, pkg)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("not in listing: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
