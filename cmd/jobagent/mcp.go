package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/jobagent/internal/mcpserver"
	"github.com/flemzord/jobagent/pkg/app"
)

func mcpCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdin/stdout",
		Long: "Serve submit, deactivate and cycle tools to an MCP client over stdio.\n" +
			"Logs go to stderr so they never interleave with the protocol stream.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(g, func(rt *app.Runtime) error {
				srv, err := mcpserver.New(mcpserver.Config{
					Name:    "jobagent",
					Version: version,
					Tasks:   rt.Orchestrator,
					Cycles:  rt.Scheduler,
					Audit:   rt.Audit,
					Logger:  rt.Logger.With("component", "mcp"),
				})
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				rt.Logger.Info("mcp server listening on stdio")
				return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}
