package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install every archive currently in staging",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.startPipeline(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			summary := p.worker.InstallPass(cmd.Context())
			p.close()

			out := cmd.OutOrStdout()
			if len(summary.Results) == 0 {
				fmt.Fprintln(out, "No staged archives")
				return nil
			}
			rows := make([][]string, 0, len(summary.Results))
			for _, res := range summary.Results {
				dest := res.Root
				if res.Quarantined != "" {
					dest = res.Quarantined
				}
				rows = append(rows, []string{res.Archive, res.Status.String(), string(res.Kind), dest})
			}
			fmt.Fprint(out, tableSpec{
				headers: []string{"Archive", "Status", "Kind", "Destination"},
				rows:    rows,
				footer:  []string{fmt.Sprintf("%d installed", summary.Installed), fmt.Sprintf("%d failed", summary.Failed)},
			}.render())
			if summary.Failed > 0 {
				return fmt.Errorf("%d archive(s) failed to install", summary.Failed)
			}
			return nil
		},
	}
}
