package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent downloads, installs, and image refreshes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := ctx.historyStore()
			if store == nil {
				return errors.New("history journal unavailable; see the log for details")
			}
			out := cmd.OutOrStdout()
			if clear {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d history entries\n", removed)
				return nil
			}

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				size := ""
				if entry.Bytes > 0 {
					size = humanize.IBytes(uint64(entry.Bytes))
				}
				rows = append(rows, []string{
					humanize.Time(entry.CreatedAt),
					string(entry.Kind),
					entry.Name,
					entry.Status,
					size,
					entry.Detail,
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"When", "Kind", "Name", "Status", "Size", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete every history entry")
	return cmd
}
