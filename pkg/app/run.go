// Package app provides the shared entry point for the jobagent binary: it
// loads configuration, provisions modules and wires the pipeline.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/jobagent/internal/config"
	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/match"
	"github.com/flemzord/jobagent/internal/metrics"
	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
)

// RunParams configures the application.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a provisioned and wired application. The long-running service
// starts it; one-shot commands use its parts directly and Close it.
type Runtime struct {
	Config  *config.Config
	CfgPath string
	DataDir string
	Logger  *slog.Logger

	App    *core.App
	AppCtx *core.AppContext

	Credentials *security.CredentialStore
	Redactor    *security.Redactor
	Audit       *security.AuditLogger
	Metrics     *metrics.Metrics

	Store        task.Store
	Resumes      task.ResumeStore
	Evaluators   *match.Registry
	Orchestrator *pipeline.Orchestrator
	Scheduler    *recurrence.Scheduler

	auditFile *os.File
}

// Build loads and validates configuration, provisions every configured
// module and wires the pipeline. Modules are not started.
func Build(params RunParams) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := errors.Join(config.Validate(cfg), config.ValidateRoles(cfg)); err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	rt := &Runtime{
		Config:      cfg,
		CfgPath:     cfgPath,
		DataDir:     dataDir,
		Credentials: security.NewCredentialStore(),
		Redactor:    security.NewRedactor(),
		Metrics:     metrics.New(),
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	inner := slog.NewTextHandler(out, &slog.HandlerOptions{Level: params.LogLevel})
	rt.Logger = slog.New(security.NewRedactingHandler(inner, rt.Redactor))

	rt.auditFile, err = os.OpenFile(filepath.Join(dataDir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	rt.Audit = security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   rt.auditFile,
		Redactor: rt.Redactor,
	})

	rt.AppCtx = core.NewAppContext(rt.Logger, dataDir).WithModuleConfigs(cfg.Modules)
	rt.AppCtx.RegisterService("security.credentials", rt.Credentials)
	rt.AppCtx.RegisterService("security.redactor", rt.Redactor)
	rt.AppCtx.RegisterService("security.audit", rt.Audit)
	rt.AppCtx.RegisterService("security.urlfilter", security.NewURLFilter(cfg.Security.URLFilter))
	rt.AppCtx.RegisterService("metrics", rt.Metrics)
	rt.AppCtx.RegisterService("config.path", cfgPath)

	rt.App = core.NewApp(rt.AppCtx)
	if err := rt.App.LoadModules(config.Resolve(cfg)); err != nil {
		_ = rt.auditFile.Close()
		return nil, err
	}

	// Modules register their secrets during Provision.
	rt.Redactor.SyncCredentials(rt.Credentials)

	if err := wirePipeline(rt); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close drains background executions, stops every module and closes the
// audit log. It is for runtimes that were never started.
func (rt *Runtime) Close() {
	if rt.Orchestrator != nil {
		rt.Orchestrator.Wait()
	}
	rt.App.Close()
	if rt.auditFile != nil {
		_ = rt.auditFile.Close()
	}
}

// Start builds the runtime and starts all modules together with the
// due-cycle cron job.
func Start(params RunParams) (*Runtime, error) {
	rt, err := Build(params)
	if err != nil {
		return nil, err
	}
	if err := appendLifecycle(rt); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.App.Start(); err != nil {
		_ = rt.auditFile.Close()
		return nil, err
	}
	rt.Redactor.SyncCredentials(rt.Credentials)
	rt.Logger.Info("jobagent started", "version", params.Version, "config", rt.CfgPath)
	return rt, nil
}

// Shutdown stops a started runtime: the cron job first, then background
// executions are drained, then the gateway and stores.
func (rt *Runtime) Shutdown() {
	rt.App.Stop()
	if rt.auditFile != nil {
		_ = rt.auditFile.Close()
	}
	rt.Logger.Info("shutdown complete")
}

// Run starts the runtime and blocks until SIGINT or SIGTERM.
func Run(params RunParams) error {
	rt, err := Start(params)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	rt.Logger.Info("shutdown signal received", "signal", sig.String())
	rt.Shutdown()
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/jobagent/jobagent.yaml → ~/.config/jobagent/jobagent.yaml → ./jobagent.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "jobagent", "jobagent.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "jobagent", "jobagent.yaml"))
	}

	candidates = append(candidates, "jobagent.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/jobagent if set, otherwise ~/.local/share/jobagent.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "jobagent")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "jobagent")
}
