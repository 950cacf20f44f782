package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
	"github.com/flemzord/jobagent/pkg/app"
)

func resumeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Manage resumes",
	}

	var owner, name, file string
	add := &cobra.Command{
		Use:   "add",
		Short: "Store a resume from a text file (use - for stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("resume %s is empty", file)
			}

			return withRuntime(g, func(rt *app.Runtime) error {
				r := &task.Resume{
					ID:        uuid.NewString(),
					OwnerID:   owner,
					Name:      name,
					Content:   content,
					CreatedAt: time.Now().UTC(),
				}
				if err := rt.Resumes.CreateResume(cmd.Context(), r); err != nil {
					return err
				}
				rt.Audit.Log(security.AuditEvent{Type: security.EventResumeAdd, Surface: "cli", OwnerID: owner, Detail: r.ID})
				fmt.Fprintln(cmd.OutOrStdout(), r.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "Owner ID")
	add.Flags().StringVar(&name, "name", "resume", "Display name")
	add.Flags().StringVarP(&file, "file", "f", "", "Path to a plain-text resume")
	_ = add.MarkFlagRequired("owner")
	_ = add.MarkFlagRequired("file")

	cmd.AddCommand(add)
	return cmd
}

func taskCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Run and manage search tasks",
	}
	cmd.AddCommand(taskRunCmd(g), taskDeactivateCmd(g))
	return cmd
}

func taskRunCmd(g *globalFlags) *cobra.Command {
	var (
		req         pipeline.Request
		titles      []string
		interval    int
		maxRuns     int
		waitTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a task and run its first execution in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.SearchTerms = titles
			if interval > 0 {
				req.Recurrence = &task.Recurrence{IntervalHours: interval, MaxExecutions: maxRuns}
			}

			return withRuntime(g, func(rt *app.Runtime) error {
				ctx := cmd.Context()
				t, err := rt.Orchestrator.Create(ctx, req)
				if err != nil {
					return validationError(err)
				}
				rt.Audit.Log(security.AuditEvent{Type: security.EventTaskSubmit, Surface: "cli", OwnerID: t.OwnerID, TaskID: t.ID})

				if waitTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, waitTimeout)
					defer cancel()
				}
				outcome, err := rt.Orchestrator.Execute(ctx, t)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{
					"task_id":           t.ID,
					"status":            outcome.Status,
					"result":            outcome.Result,
					"next_execution_at": t.NextExecutionAt,
				}); err != nil {
					return err
				}
				if outcome.Err != nil {
					return fmt.Errorf("execution failed: %w", outcome.Err)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.OwnerID, "owner", "", "Owner ID")
	f.StringVar(&req.ResumeID, "resume", "", "Resume ID")
	f.StringSliceVarP(&titles, "title", "t", nil, "Job title to search for (repeatable or comma-separated)")
	f.StringVar(&req.Location, "location", "", "Search location (default "+pipeline.DefaultLocation+")")
	f.IntVarP(&req.TargetCount, "count", "n", 0, "Number of new postings to find (default 5)")
	f.StringVar(&req.Evaluator, "evaluator", "", "Evaluator key (default from pipeline.default_evaluator)")
	f.IntVar(&interval, "every", 0, "Repeat every N hours (1-168)")
	f.IntVar(&maxRuns, "max-executions", 0, "Stop after this many executions (0: unbounded)")
	f.DurationVar(&waitTimeout, "timeout", 0, "Abort the execution after this long")
	return cmd
}

func taskDeactivateCmd(g *globalFlags) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "deactivate <task-id>",
		Short: "Stop a recurring task from being scheduled again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(g, func(rt *app.Runtime) error {
				t, err := rt.Orchestrator.Deactivate(cmd.Context(), owner, args[0])
				if err != nil {
					return validationError(err)
				}
				rt.Audit.Log(security.AuditEvent{Type: security.EventTaskDeactivate, Surface: "cli", OwnerID: owner, TaskID: t.ID})
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"task_id":   t.ID,
					"status":    t.Status,
					"is_active": t.IsActive,
				})
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

// withRuntime builds a runtime without starting it, runs fn and closes it.
func withRuntime(g *globalFlags, fn func(rt *app.Runtime) error) error {
	params, err := g.params()
	if err != nil {
		return err
	}
	rt, err := app.Build(params)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// validationError flattens a joined validation error into one line per
// problem.
func validationError(err error) error {
	if !errors.Is(err, task.ErrValidation) {
		return err
	}
	msgs := pipeline.ValidationMessages(err)
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
