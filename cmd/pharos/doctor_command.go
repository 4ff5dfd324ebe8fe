package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pharos/internal/notifications"
	"pharos/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, free space, and external services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if notify {
				result := preflight.Result{Name: "Notifications", Passed: true, Detail: "test sent"}
				if cfg.Notifications.NtfyTopic == "" {
					result.Detail = "no ntfy topic configured"
				} else if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					result = preflight.Result{Name: "Notifications", Detail: err.Error()}
				}
				results = append(results, result)
			}

			failed := 0
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
					failed++
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a test notification")
	return cmd
}
