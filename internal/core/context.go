// Package core provides the module system almond is assembled from: a
// registry of modules, their lifecycle, and the shared context handed to them.
package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext is handed to every module while it loads. A module sees its own
// scoped logger, the shared data directory and the shared service table.
type AppContext struct {
	Logger  *slog.Logger
	DataDir string

	root     *slog.Logger
	sections map[string]yaml.Node
	services *services
}

type services struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewAppContext returns a root context. A nil logger means slog.Default.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		root:     logger,
		services: &services{m: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of ctx that hands each module its own
// section of configs, keyed by module ID.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.sections = configs
	return &cp
}

// ForModule returns a context scoped to id. Its logger carries a module
// attribute; everything else is shared with ctx.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// RegisterService publishes svc under name to every context sharing the
// same root. A later registration under the same name wins.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.m[name] = svc
}

// GetService returns what was registered under name.
func (ctx *AppContext) GetService(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.m[name]
	return svc, ok
}

// Service returns the service registered under name when it has type T.
func Service[T any](ctx *AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.GetService(name)
	if !ok {
		return zero, false
	}
	v, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// LoadModule builds the module registered as id and runs its loading hooks:
// Configure (only when the module has a config section), then Provision
// with a scoped context, then Validate.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if section, found := ctx.sections[id]; found {
			if err := c.Configure(&section); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}
	return mod, nil
}
