package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// stopBudget bounds how long shutdown waits for all modules together.
const stopBudget = 30 * time.Second

// App owns an ordered set of loaded modules and drives their lifecycle.
// Modules start in load order and stop in the reverse order.
type App struct {
	ctx    *AppContext
	slots  []slot
	logger *slog.Logger
}

type slot struct {
	id      ModuleID
	mod     Module
	running bool
}

// NewApp returns an App that loads modules through ctx.
func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// LoadModules loads each ID in turn and appends it to the lifecycle. On the
// first failure every module loaded so far is stopped and discarded.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.discard()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.AppendModule(mod)
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds a module built outside the registry, such as the
// dispatch core. Call it before Start.
func (a *App) AppendModule(mod Module) {
	a.slots = append(a.slots, slot{id: mod.ModuleInfo().ID, mod: mod})
}

// Module finds a loaded module by ID.
func (a *App) Module(id string) (Module, bool) {
	i := slices.IndexFunc(a.slots, func(s slot) bool { return string(s.id) == id })
	if i < 0 {
		return nil, false
	}
	return a.slots[i].mod, true
}

// Modules returns the loaded modules in load order.
func (a *App) Modules() []Module {
	out := make([]Module, 0, len(a.slots))
	for _, s := range a.slots {
		out = append(out, s.mod)
	}
	return out
}

// Start starts every Starter in load order. When one fails, the modules
// already running are stopped before the error is returned.
func (a *App) Start() error {
	for i := range a.slots {
		s := &a.slots[i]
		starter, ok := s.mod.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting module", "module", string(s.id))
		if err := starter.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(s.id), "error", err)
			a.stopRunning()
			return fmt.Errorf("starting module %s: %w", s.id, err)
		}
		s.running = true
	}
	a.logger.Info("all modules started", "count", len(a.slots))
	return nil
}

// Stop stops every running module, newest first. Errors are logged.
func (a *App) Stop() {
	a.stopRunning()
}

func (a *App) stopRunning() {
	ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
	defer cancel()

	for i := len(a.slots) - 1; i >= 0; i-- {
		s := &a.slots[i]
		if !s.running {
			continue
		}
		s.running = false
		stopper, ok := s.mod.(Stopper)
		if !ok {
			continue
		}
		a.logger.Info("stopping module", "module", string(s.id))
		if err := stopper.Stop(ctx); err != nil {
			a.logger.Error("module stop failed", "module", string(s.id), "error", err)
		}
	}
}

// discard releases modules that were loaded but never started, then
// forgets them.
func (a *App) discard() {
	ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
	defer cancel()

	for i := len(a.slots) - 1; i >= 0; i-- {
		if stopper, ok := a.slots[i].mod.(Stopper); ok {
			_ = stopper.Stop(ctx)
		}
	}
	a.slots = nil
}
