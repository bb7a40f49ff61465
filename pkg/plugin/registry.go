package plugin

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"blindscontrol/internal/config"

	"go.uber.org/multierr"
)

// Priority constants for plugin registration.
// Higher priority values override lower priority plugins with the same name.
const (
	PriorityDefault  = 0
	PriorityOverride = 100
)

// DefaultOrder is used when a plugin does not set Order
const DefaultOrder = 50

// PluginInfo contains metadata about a registered plugin.
type PluginInfo struct {
	// Name is the unique identifier for the plugin.
	Name string

	Description string

	// Priority decides which registration wins for the same name.
	Priority int

	Factory Factory

	// Order specifies the startup order. Lower values start first and stop last.
	Order int

	// Enabled reports whether the plugin should run for a config.
	// A nil Enabled always runs.
	Enabled func(cfg *config.Config) bool
}

// Registry manages plugin registration and instantiation.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]PluginInfo),
		order:   make([]string, 0),
	}
}

// Register adds a plugin to the registry.
// If a plugin with the same name already exists, the one with higher
// priority wins. If priorities are equal, the later registration wins.
func (r *Registry) Register(info PluginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}
	if info.Order == 0 {
		info.Order = DefaultOrder
	}

	existing, exists := r.plugins[info.Name]
	if exists {
		if info.Priority < existing.Priority {
			log.Printf("Plugin %q registration skipped (priority %d < existing %d)",
				info.Name, info.Priority, existing.Priority)
			return nil
		}
		log.Printf("Plugin %q being overridden (priority %d -> %d)",
			info.Name, existing.Priority, info.Priority)
	}

	r.plugins[info.Name] = info
	if !exists {
		r.order = append(r.order, info.Name)
	}
	return nil
}

// Get returns the plugin info for a given name, or nil if not found.
func (r *Registry) Get(name string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns all registered plugins sorted by Order, then by name.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.plugins))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// CreateAll instantiates every enabled plugin in startup order.
// Plugins already created are stopped if a later factory fails.
func (r *Registry) CreateAll(ctx *Context) ([]Plugin, error) {
	var cfg *config.Config
	if ctx != nil && ctx.Config != nil {
		cfg = ctx.Config.Get()
	}

	infos := r.List()
	result := make([]Plugin, 0, len(infos))
	for _, info := range infos {
		if info.Enabled != nil && (cfg == nil || !info.Enabled(cfg)) {
			continue
		}

		p, err := info.Factory(ctx)
		if err != nil {
			StopAll(result)
			return nil, fmt.Errorf("failed to create plugin %s: %w", info.Name, err)
		}
		result = append(result, p)
	}
	return result, nil
}

// Names returns the names of all registered plugins in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Clear removes all registered plugins. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]PluginInfo)
	r.order = make([]string, 0)
}

// StartAll starts plugins in order. On failure the ones already started are
// stopped and the error is returned.
func StartAll(plugins []Plugin) error {
	for i, p := range plugins {
		if err := p.Start(); err != nil {
			StopAll(plugins[:i])
			return fmt.Errorf("failed to start plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// StopAll stops plugins in reverse order
func StopAll(plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		plugins[i].Stop()
	}
}

// ResetAll resets every Resettable plugin and combines their errors
func ResetAll(plugins []Plugin) error {
	var errs error
	for _, p := range plugins {
		if r, ok := p.(Resettable); ok {
			if err := r.Reset(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to reset plugin %s: %w", p.Name(), err))
			}
		}
	}
	return errs
}

var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry.
// This is typically called from init() functions in plugin packages.
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// Get returns plugin info from the global registry.
func Get(name string) *PluginInfo {
	return globalRegistry.Get(name)
}

// List returns all plugins from the global registry.
func List() []PluginInfo {
	return globalRegistry.List()
}

// CreateAll creates all enabled plugins from the global registry.
func CreateAll(ctx *Context) ([]Plugin, error) {
	return globalRegistry.CreateAll(ctx)
}

// Names returns all plugin names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}

// ClearGlobal clears the global registry. Useful for testing.
func ClearGlobal() {
	globalRegistry.Clear()
}
