package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pharos/internal/catalog"
	"pharos/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the fingerprint ledger",
	}
	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded packages and their fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kinds := catalog.Kinds
			if kindFlag != "" {
				kind, err := catalog.ParseKind(kindFlag)
				if err != nil {
					return err
				}
				kinds = []catalog.Kind{kind}
			}

			doc := ledger.New(cfg.Paths.LedgerPath, ctx.ensureLogger()).Load()
			var rows [][]string
			for _, kind := range kinds {
				for _, rec := range doc.Records(kind) {
					size := "-"
					if rec.SizeBytes != nil {
						size = humanize.IBytes(uint64(*rec.SizeBytes))
					}
					rows = append(rows, []string{string(kind), rec.Name, size, rec.Fingerprint, rec.DateUpdated})
				}
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "Ledger is empty")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"Kind", "Name", "Size", "MD5", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Only show one partition (port or bottle)")
	return cmd
}
