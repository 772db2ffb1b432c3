package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var mediaID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show resumable annotation checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			checkpoints, err := rt.checkpoints.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(checkpoints))
			for _, cp := range checkpoints {
				if mediaID != "" && cp.MediaID != mediaID {
					continue
				}
				rows = append(rows, []string{
					cp.MediaID,
					shortID(cp.JobID),
					fmt.Sprintf("%d/%d", len(cp.CompletedIndices), cp.TotalLines),
					cp.BackendID,
					strconv.Itoa(cp.BatchSize),
					humanizeAge(cp.UpdatedAt),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No resumable jobs; completed jobs remove their checkpoints.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Media", "Job", "Progress", "Backend", "Batch", "Updated"},
				rows,
				3, 5,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaID, "media-id", "", "Only show checkpoints for this media")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func humanizeAge(at time.Time) string {
	if at.IsZero() {
		return "unknown"
	}
	age := time.Since(at)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return at.Format("2006-01-02 15:04")
	}
}
