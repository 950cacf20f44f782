package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// registry holds the modules compiled into the binary. It is filled from
// init functions and read when configuration is validated and loaded.
var registry = struct {
	sync.RWMutex
	byID map[string]ModuleInfo
}{byID: make(map[string]ModuleInfo)}

// RegisterModule records the module's ModuleInfo. It panics on an empty ID,
// a nil constructor or a duplicate ID, which are programming errors caught
// at process start.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[string(info.ID)]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.byID[string(info.ID)] = info
}

// GetModule looks up a compiled module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[id]
	return info, ok
}

// GetModules returns every compiled module ordered by ID.
func GetModules() []ModuleInfo {
	return modulesWhere(func(string) bool { return true })
}

// GetModulesByNamespace returns the compiled modules of one role, such as
// "store" or "provider", ordered by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."
	return modulesWhere(func(id string) bool { return strings.HasPrefix(id, prefix) })
}

func modulesWhere(keep func(id string) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	ids := slices.Sorted(maps.Keys(registry.byID))
	out := make([]ModuleInfo, 0, len(ids))
	for _, id := range ids {
		if keep(id) {
			out = append(out, registry.byID[id])
		}
	}
	return out
}

// resetRegistry empties the registry for tests.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[string]ModuleInfo)
}
