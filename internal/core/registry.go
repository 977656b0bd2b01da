package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// catalog holds every module type compiled into the binary, keyed by ID.
type catalog struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var registry = &catalog{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds a module type to the registry. IDs must be namespaced
// ("memory.mongo"). It panics on a malformed ID, a nil constructor or a
// duplicate, and is meant to be called from init.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	ns, name, ok := strings.Cut(string(info.ID), ".")
	if !ok || ns == "" || name == "" {
		panic(fmt.Sprintf("core: module ID %q must have the form namespace.name", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule looks a module type up by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules lists every registered module type, ordered by ID.
func GetModules() []ModuleInfo {
	return registry.filter(func(ModuleID) bool { return true })
}

// GetModulesByNamespace lists the module types in one namespace ("memory"
// yields "memory.mongo", "memory.sqlite", ...), ordered by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return registry.filter(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func (c *catalog) filter(keep func(ModuleID) bool) []ModuleInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []ModuleInfo
	for _, id := range slices.Sorted(maps.Keys(c.byID)) {
		if keep(id) {
			out = append(out, c.byID[id])
		}
	}
	return out
}

// resetRegistry empties the registry between tests.
func resetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	clear(registry.byID)
}
