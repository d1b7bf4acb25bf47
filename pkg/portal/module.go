package portal

import (
	"fmt"
	"sort"
)

// Module is an installable business module that declares types and handlers.
type Module interface {
	Name() string
	Version() string
	Register(registry *Registry) error
}

// ModuleInfo describes an installed module.
type ModuleInfo struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Types   []string `json:"types"`
}

// Install registers a module's types and handlers.
func (r *Registry) Install(module Module) (ModuleInfo, error) {
	if module == nil {
		return ModuleInfo{}, fmt.Errorf("module cannot be nil")
	}
	r.mu.RLock()
	_, exists := r.modules[module.Name()]
	before := make(map[string]struct{}, len(r.types))
	for name := range r.types {
		before[name] = struct{}{}
	}
	r.mu.RUnlock()
	if exists {
		return ModuleInfo{}, fmt.Errorf("module %s already installed", module.Name())
	}

	if err := module.Register(r); err != nil {
		return ModuleInfo{}, fmt.Errorf("install module %s: %w", module.Name(), err)
	}

	info := ModuleInfo{Name: module.Name(), Version: module.Version()}
	for _, name := range r.Types() {
		if _, ok := before[name]; !ok {
			info.Types = append(info.Types, name)
		}
	}
	r.mu.Lock()
	r.modules[module.Name()] = info
	r.mu.Unlock()
	return info, nil
}

// Modules returns installed modules sorted by name.
func (r *Registry) Modules() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleInfo, 0, len(r.modules))
	for _, info := range r.modules {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
