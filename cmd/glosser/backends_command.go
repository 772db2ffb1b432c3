package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBackendsCommand(ctx *commandContext) *cobra.Command {
	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "Inspect and probe configured model backends",
	}

	backendsCmd.AddCommand(newBackendsListCommand(ctx))
	backendsCmd.AddCommand(newBackendsTestCommand(ctx))

	return backendsCmd
}

func newBackendsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cfg.Backends))
			for _, backend := range cfg.Backends {
				def := ""
				if backend.ID == cfg.DefaultBackend {
					def = "yes"
				}
				rows = append(rows, []string{backend.ID, backend.Kind, backend.Model, backend.BaseURL, def})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Kind", "Model", "Base URL", "Default"},
				rows,
			))
			return nil
		},
	}
}

func newBackendsTestCommand(ctx *commandContext) *cobra.Command {
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "test [backend-id...]",
		Short: "Probe backend connectivity and model availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ids := args
			if len(ids) == 0 {
				ids = rt.registry.IDs()
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failures := 0
			for _, id := range ids {
				client, err := rt.registry.Client(id)
				if err != nil {
					fmt.Fprintln(out, renderStatusLine(id, statusError, err.Error(), colorize))
					failures++
					continue
				}
				probeCtx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSeconds)*time.Second)
				probe := client.TestConnection(probeCtx)
				cancel()
				if probe.OK {
					detail := fmt.Sprintf("%s (%s)", probe.Detail, probe.Latency.Round(time.Millisecond))
					fmt.Fprintln(out, renderStatusLine(id, statusOK, detail, colorize))
					continue
				}
				fmt.Fprintln(out, renderStatusLine(id, statusError, probe.Detail, colorize))
				failures++
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d backends failed the connection test", failures, len(ids))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "Per-backend probe timeout in seconds")
	return cmd
}
