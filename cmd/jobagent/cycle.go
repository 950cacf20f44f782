package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/pkg/app"
)

// cycleCmd runs one due cycle for hosts that schedule jobagent from an
// external cron instead of running the service.
func cycleCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Recurring task scheduling",
	}

	var timeout time.Duration
	run := &cobra.Command{
		Use:   "run",
		Short: "Execute every recurring task that is due, once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(g, func(rt *app.Runtime) error {
				lock := flock.New(filepath.Join(rt.DataDir, "cycle.lock"))
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquiring cycle lock: %w", err)
				}
				if !ok {
					rt.Logger.Info("cycle already running on this host, skipping")
					return writeJSON(cmd.OutOrStdout(), map[string]any{"skipped": true})
				}
				defer lock.Unlock() //nolint:errcheck // released on exit anyway

				ctx := cmd.Context()
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}

				rt.Audit.Log(security.AuditEvent{Type: security.EventCycleTrigger, Surface: "cli"})
				summary, err := rt.Scheduler.RunDueCycle(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	run.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Abort the cycle after this long")

	cmd.AddCommand(run)
	return cmd
}
