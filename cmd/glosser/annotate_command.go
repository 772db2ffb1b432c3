package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"glosser/internal/config"
	"glosser/internal/engine"
)

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	var mediaID string
	var episode int
	var backendID string
	var resume bool

	cmd := &cobra.Command{
		Use:   "annotate [subtitle-file]",
		Short: "Annotate a subtitle file with semantic tags",
		Long: "Annotate runs every line of a subtitle file through the configured " +
			"model backend and writes the tagged records next to a resumable " +
			"checkpoint. Interrupt with Ctrl-C to stop gracefully; run again " +
			"with --resume to continue where the job left off.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) > 0 {
				expanded, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				source = expanded
			}
			if source == "" && !resume {
				return errors.New("subtitle file required (or use --resume)")
			}
			if mediaID == "" {
				if source == "" {
					return errors.New("--media-id required when resuming without a subtitle file")
				}
				mediaID = deriveMediaID(source)
			}

			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			jobID, err := rt.manager.Start(cmd.Context(), engine.JobSpec{
				MediaID:    mediaID,
				Episode:    episode,
				SourcePath: source,
				BackendID:  backendID,
				Resume:     resume,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cancelOnSignal(rt.manager, jobID, out)

			done := make(chan struct{})
			go func() {
				_ = rt.manager.Wait(jobID)
				close(done)
			}()
			reportProgress(rt.manager, jobID, out, done)

			if err := rt.manager.Wait(jobID); err != nil {
				return err
			}
			return printOutcome(rt, jobID, out)
		},
	}

	cmd.Flags().StringVar(&mediaID, "media-id", "", "Media identifier (defaults to the subtitle file name)")
	cmd.Flags().IntVar(&episode, "episode", 0, "Episode number for record ids (0 for none)")
	cmd.Flags().StringVar(&backendID, "backend", "", "Backend id (defaults to default_backend)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume from the newest checkpoint for this media")
	return cmd
}

// cancelOnSignal requests a graceful stop on the first interrupt. In-flight
// backend calls drain and progress is saved. A second interrupt exits hard.
func cancelOnSignal(manager *engine.Manager, jobID string, out io.Writer) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		fmt.Fprintln(out, "\nstopping: waiting for in-flight requests, saving checkpoint (interrupt again to force quit)")
		_ = manager.Cancel(jobID)
		<-signals
		os.Exit(130)
	}()
}

func reportProgress(manager *engine.Manager, jobID string, out io.Writer, done <-chan struct{}) {
	interactive := shouldColorize(out)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if interactive {
				fmt.Fprintln(out)
			}
			return
		case <-ticker.C:
			status, err := manager.Status(jobID)
			if err != nil {
				return
			}
			if interactive {
				fmt.Fprintf(out, "\rannotating %d/%d lines (%d in flight)   ", status.Completed, status.Total, status.InFlight)
			}
		}
	}
}

func printOutcome(rt *runtime, jobID string, out io.Writer) error {
	status, err := rt.manager.Status(jobID)
	if err != nil {
		return err
	}
	colorize := shouldColorize(out)
	progress := fmt.Sprintf("%d/%d lines", status.Completed, status.Total)
	switch status.State {
	case engine.StateCompleted:
		fmt.Fprintln(out, renderStatusLine("Annotation", statusOK, progress, colorize))
		fmt.Fprintln(out, renderStatusLine("Output", statusInfo, rt.outputs.Path(status.MediaID), colorize))
		return nil
	case engine.StateCancelled:
		fmt.Fprintln(out, renderStatusLine("Annotation", statusWarn, "stopped at "+progress+", resume with --resume", colorize))
		return nil
	default:
		fmt.Fprintln(out, renderStatusLine("Annotation", statusError, status.LastError, colorize))
		return fmt.Errorf("annotation failed: %s", status.LastError)
	}
}

// deriveMediaID turns a subtitle file name into a stable media identifier.
func deriveMediaID(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(strings.TrimSpace(base))
	var sb strings.Builder
	lastDash := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && sb.Len() > 0 {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}
