package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/flemzord/jobagent/internal/config"
	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/cron"
	"github.com/flemzord/jobagent/internal/discovery"
	"github.com/flemzord/jobagent/internal/match"
	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/provider"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
)

// cronModule wraps a *cron.Scheduler so the due cycle participates in the
// App lifecycle.
type cronModule struct {
	scheduler *cron.Scheduler
}

func (m *cronModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *cronModule) Start() error {
	return m.scheduler.Start()
}

func (m *cronModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// drainModule waits for background executions started by Submit. It is
// appended first so it stops after the cron scheduler.
type drainModule struct {
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

func (m *drainModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "pipeline"}
}

func (m *drainModule) Start() error { return nil }

func (m *drainModule) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("pipeline: shutdown before background executions finished")
		return ctx.Err()
	}
}

// wirePipeline assembles the evaluator registry, discoverer, match engine,
// orchestrator and recurrence scheduler from the loaded modules and
// registers them as services. Must be called after LoadModules and before
// Start so the gateway can resolve them.
func wirePipeline(rt *Runtime) error {
	pcfg := rt.Config.Pipeline.WithDefaults()
	appCtx := rt.AppCtx
	logger := rt.Logger

	store, resumes, err := resolveStores(appCtx)
	if err != nil {
		return err
	}
	rt.Store, rt.Resumes = store, resumes

	evaluators, err := buildEvaluators(rt.App, logger)
	if err != nil {
		return err
	}
	if _, err := evaluators.Get(pcfg.DefaultEvaluator); err != nil {
		return fmt.Errorf("pipeline: default evaluator %q has no provider (have %v)", pcfg.DefaultEvaluator, evaluators.Keys())
	}
	rt.Evaluators = evaluators
	appCtx.RegisterService("match.evaluators", evaluators)

	svc, ok := appCtx.GetService("discovery.source")
	if !ok {
		return errors.New("pipeline: no discovery source module loaded")
	}
	source, ok := svc.(discovery.Source)
	if !ok {
		return fmt.Errorf("pipeline: discovery.source is %T, not a discovery.Source", svc)
	}

	var filter *security.URLFilter
	if svc, ok := appCtx.GetService("security.urlfilter"); ok {
		filter, _ = svc.(*security.URLFilter)
	}

	discoverer, err := discovery.New(discovery.Config{
		Source: source,
		Store:  store,
		Filter: filter,
		Logger: logger.With("component", "discovery"),
	})
	if err != nil {
		return err
	}

	engine := match.NewEngine(match.EngineConfig{
		Writer:  store,
		Timeout: pcfg.MatchTimeout,
		Logger:  logger.With("component", "match"),
		Metrics: rt.Metrics,
	})

	orchestrator, err := pipeline.New(pipeline.Config{
		Store:            store,
		Resumes:          resumes,
		Discoverer:       discoverer,
		Evaluators:       evaluators,
		Engine:           engine,
		DefaultEvaluator: pcfg.DefaultEvaluator,
		MatchConcurrency: pcfg.MatchConcurrency,
		DiscoverTimeout:  pcfg.DiscoverTimeout,
		Logger:           logger.With("component", "pipeline"),
		Metrics:          rt.Metrics,
	})
	if err != nil {
		return err
	}
	rt.Orchestrator = orchestrator
	appCtx.RegisterService("pipeline.orchestrator", orchestrator)

	var locker recurrence.Locker
	if svc, ok := appCtx.GetService("recurrence.locker"); ok {
		locker, _ = svc.(recurrence.Locker)
	}

	scheduler, err := recurrence.New(recurrence.Config{
		Store:       store,
		Executor:    orchestrator,
		Locker:      locker,
		BatchSize:   pcfg.CycleBatchSize,
		Concurrency: pcfg.CycleConcurrency,
		StaleAfter:  pcfg.StaleAfter,
		Logger:      logger.With("component", "recurrence"),
		Metrics:     rt.Metrics,
	})
	if err != nil {
		return err
	}
	rt.Scheduler = scheduler
	appCtx.RegisterService("recurrence.scheduler", scheduler)

	logger.Info("pipeline wired",
		"source", discoverer.SourceName(),
		"evaluators", evaluators.Keys(),
		"default_evaluator", pcfg.DefaultEvaluator,
		"distributed_lock", locker != nil,
	)
	return nil
}

// appendLifecycle adds the drain and cron modules to the App. Only the long
// running service calls it; one-shot commands run cycles themselves.
func appendLifecycle(rt *Runtime) error {
	pcfg := rt.Config.Pipeline.WithDefaults()

	rt.App.AppendModule("pipeline", &drainModule{orchestrator: rt.Orchestrator, logger: rt.Logger})

	sched := cron.NewScheduler(rt.Logger.With("component", "cron"))
	if err := sched.RegisterJob(&cron.DueCycleJob{
		Runner:       rt.Scheduler,
		ScheduleExpr: pcfg.CycleSchedule,
		Timeout:      pcfg.CycleTimeout,
		Logger:       rt.Logger,
	}); err != nil {
		return err
	}
	rt.App.AppendModule("cron", &cronModule{scheduler: sched})
	return nil
}

func resolveStores(appCtx *core.AppContext) (task.Store, task.ResumeStore, error) {
	svc, ok := appCtx.GetService("task.store")
	if !ok {
		return nil, nil, errors.New("pipeline: no store module loaded")
	}
	store, ok := svc.(task.Store)
	if !ok {
		return nil, nil, fmt.Errorf("pipeline: task.store is %T, not a task.Store", svc)
	}
	svc, ok = appCtx.GetService("task.resumes")
	if !ok {
		return nil, nil, errors.New("pipeline: store module does not provide resumes")
	}
	resumes, ok := svc.(task.ResumeStore)
	if !ok {
		return nil, nil, fmt.Errorf("pipeline: task.resumes is %T, not a task.ResumeStore", svc)
	}
	return store, resumes, nil
}

// buildEvaluators registers one matcher per provider exposed by the loaded
// modules. A module exposing a provider.Set contributes each of its keys; a
// module that is itself a provider.Provider is keyed by its module name.
func buildEvaluators(app *core.App, logger *slog.Logger) (*match.Registry, error) {
	registry := match.NewRegistry()
	retry := provider.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	register := func(key string, p provider.Provider) error {
		wrapped := provider.WithRetry(p, retry, logger.With("evaluator", key))
		if err := registry.Register(key, match.NewProviderMatcher(wrapped)); err != nil {
			return err
		}
		logger.Info("registered evaluator", "key", key, "model", p.ModelName())
		return nil
	}

	for _, id := range app.ModuleIDs() {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if set, ok := mod.(provider.Set); ok {
			providers := set.Providers()
			keys := make([]string, 0, len(providers))
			for k := range providers {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				if err := register(k, providers[k]); err != nil {
					return nil, fmt.Errorf("module %s: %w", id, err)
				}
			}
			continue
		}
		if p, ok := mod.(provider.Provider); ok {
			if err := register(core.ModuleID(id).Name(), p); err != nil {
				return nil, fmt.Errorf("module %s: %w", id, err)
			}
		}
	}

	if len(registry.Keys()) == 0 {
		return nil, fmt.Errorf("pipeline: at least one %s module is required", config.NamespaceProvider)
	}
	return registry, nil
}
