package app

import (
	"log/slog"

	"github.com/flemzord/almond/internal/config"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/memory"
)

// MemoryHandle gives maintenance commands direct access to the configured
// stores without starting providers, channels or the dispatcher.
type MemoryHandle struct {
	Manager *memory.Manager
	app     *core.App
}

// OpenMemory loads and starts only the memory.* modules named in the
// configuration and builds a memory manager over their stores.
func OpenMemory(params RunParams) (*MemoryHandle, error) {
	_, cfg, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	return openMemory(cfg, NewLogger(params.LogLevel, cfg), params.DataDir)
}

func openMemory(cfg *config.Config, logger *slog.Logger, dataDir string) (*MemoryHandle, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	application := core.NewApp(appCtx)

	var ids []string
	for _, id := range config.Resolve(cfg) {
		if core.ModuleID(id).Namespace() == "memory" {
			ids = append(ids, id)
		}
	}
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}
	if err := application.Start(); err != nil {
		return nil, err
	}

	mem, err := newMemory(appCtx, cfg.Memory, nil, nil)
	if err != nil {
		application.Stop()
		return nil, err
	}
	return &MemoryHandle{Manager: mem, app: application}, nil
}

// Close stops the store modules.
func (h *MemoryHandle) Close() {
	h.app.Stop()
}
