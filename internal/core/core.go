package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// stopTimeout bounds the whole shutdown, shared by every module's Stop.
const stopTimeout = 30 * time.Second

// App owns the modules of one process and drives their lifecycle: loaded in
// configuration order, started in that order and stopped in reverse.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules loads each module with AppContext.LoadModule. On the first
// failure the modules loaded so far are stopped and forgotten.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.Close()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.modules = append(a.modules, moduleInstance{id: mod.ModuleInfo().ID, module: mod})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds a module built outside the registry, such as the cron
// scheduler. It starts after the loaded modules and stops before them. Must
// be called before Start.
func (a *App) AppendModule(id string, mod Module) {
	a.modules = append(a.modules, moduleInstance{id: ModuleID(id), module: mod})
}

// Start starts the modules in order. Modules without a Start hook count as
// started so that Stop still reaches their Stop hook, which is how stores
// close their databases. If a Start fails the modules before it are stopped.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		if s, ok := mi.module.(Starter); ok {
			a.logger.Info("starting module", "module", string(mi.id))
			if err := s.Start(); err != nil {
				a.logger.Error("module start failed", "module", string(mi.id), "error", err)
				a.stop(i-1, true)
				return fmt.Errorf("starting module %s: %w", mi.id, err)
			}
		}
		mi.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops the started modules in reverse order.
func (a *App) Stop() {
	a.stop(len(a.modules)-1, true)
}

// Close stops every loaded module, started or not, and forgets them. One-shot
// commands provision modules without starting them and Close when done.
func (a *App) Close() {
	a.stop(len(a.modules)-1, false)
	a.modules = nil
}

func (a *App) stop(from int, startedOnly bool) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	for i := from; i >= 0; i-- {
		mi := &a.modules[i]
		if startedOnly && !mi.started {
			continue
		}
		mi.started = false
		s, ok := mi.module.(Stopper)
		if !ok {
			continue
		}
		a.logger.Debug("stopping module", "module", string(mi.id))
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop error", "module", string(mi.id), "error", err)
		}
	}
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// ModuleIDs returns the IDs of the modules in lifecycle order.
func (a *App) ModuleIDs() []string {
	ids := make([]string, len(a.modules))
	for i, mi := range a.modules {
		ids[i] = string(mi.id)
	}
	return ids
}
