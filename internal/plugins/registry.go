// Package plugins maintains the registry of native extension modules.
// Modules are registered explicitly from typed descriptors rather than
// discovered from a directory, and the core drives each one only
// through the three-call Module contract.
package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/logging"
)

// StatusOK is the module status code meaning success.
const StatusOK = 0

// Module is the narrow contract every extension exposes. Init runs
// once at registration, Execute per dispatched command, Cleanup once
// at deregistration or shutdown. A non-zero status is a failure.
type Module interface {
	Init() int
	Execute(command string, payload []byte) int
	Cleanup()
}

// Descriptor declares one module for registration.
type Descriptor struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Enabled bool   `json:"enabled"`

	// Module is the loaded implementation. Descriptors arriving from
	// configuration have it filled in by the registered Loader.
	Module Module `json:"-"`
}

// Loader materializes a Module from its descriptor. The process that
// maps a path to a loaded module lives outside the core.
type Loader func(desc Descriptor) (Module, error)

// Info is the externally visible state of a registered module.
type Info struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Usable  bool   `json:"usable"`
	Reason  string `json:"reason,omitempty"`
	Invoked int64  `json:"invoked"`
}

type entry struct {
	desc    Descriptor
	usable  bool
	reason  string
	invoked int64
}

// Registry holds registered modules. Reload replaces the whole set at
// once so a reader never observes a mix of old and new modules.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	loader  Loader
	log     *logging.Logger
}

// NewRegistry builds an empty registry. loader may be nil when all
// descriptors carry pre-loaded modules.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		loader:  loader,
		log:     logging.Global().WithComponent("plugins"),
	}
}

// NewRegistryFromConfig registers every enabled module from
// configuration. Modules that fail validation are kept in the registry
// as unusable so operators can see why.
func NewRegistryFromConfig(cfgs []config.PluginConfig, loader Loader) *Registry {
	r := NewRegistry(loader)

	descs := make([]Descriptor, 0, len(cfgs))
	for _, pc := range cfgs {
		descs = append(descs, Descriptor{Name: pc.Name, Path: pc.Path, Enabled: pc.Enabled})
	}
	r.Reload(descs)
	return r
}

// register validates one descriptor and stores it. Caller holds the
// write lock.
func (r *Registry) register(entries map[string]*entry, desc Descriptor) {
	e := &entry{desc: desc}
	entries[desc.Name] = e

	if desc.Name == "" {
		e.reason = "descriptor has no name"
		return
	}
	if !desc.Enabled {
		e.reason = "disabled in configuration"
		return
	}

	if desc.Module == nil && r.loader != nil {
		mod, err := r.loader(desc)
		if err != nil {
			e.reason = fmt.Sprintf("load failed: %v", err)
			r.log.Warn("Module %s failed to load: %v", desc.Name, err)
			return
		}
		desc.Module = mod
		e.desc = desc
	}
	if desc.Module == nil {
		e.reason = "no implementation available"
		return
	}

	if status := desc.Module.Init(); status != StatusOK {
		e.reason = fmt.Sprintf("init returned status %d", status)
		r.log.Warn("Module %s init failed with status %d", desc.Name, status)
		return
	}

	e.usable = true
	r.log.Info("Registered module %s", desc.Name)
}

// Register adds or replaces a single module.
func (r *Registry) Register(desc Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[desc.Name]; ok && old.usable {
		old.desc.Module.Cleanup()
	}
	r.register(r.entries, desc)
}

// Reload replaces the entire module set. Old modules are cleaned up
// after the swap; a concurrent reader sees either the old set or the
// new set, never a blend.
func (r *Registry) Reload(descs []Descriptor) {
	next := make(map[string]*entry, len(descs))
	staging := &Registry{entries: next, loader: r.loader, log: r.log}
	for _, desc := range descs {
		staging.register(next, desc)
	}

	r.mu.Lock()
	old := r.entries
	r.entries = next
	r.mu.Unlock()

	for _, e := range old {
		if e.usable {
			e.desc.Module.Cleanup()
		}
	}
}

// Execute dispatches command with payload to the named module.
func (r *Registry) Execute(name, command string, payload []byte) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok && e.usable {
		e.invoked++
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("module %s is not registered", name)
	}
	if !e.usable {
		return fmt.Errorf("module %s is not usable: %s", name, e.reason)
	}

	if status := e.desc.Module.Execute(command, payload); status != StatusOK {
		return fmt.Errorf("module %s returned status %d for %s", name, status, command)
	}
	return nil
}

// List returns registered modules sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, Info{
			Name:    e.desc.Name,
			Path:    e.desc.Path,
			Usable:  e.usable,
			Reason:  e.reason,
			Invoked: e.invoked,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Shutdown cleans up every usable module.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.usable {
			e.desc.Module.Cleanup()
			e.usable = false
			e.reason = "shut down"
		}
	}
}
