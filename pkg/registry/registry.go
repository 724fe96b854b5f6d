// Copyright 2024-2026 Aiku AI

// Package registry resolves module ids to constructible modules.
//
// Modules become constructible through two sources: compile-time
// registration (an adapter package registers its builder from init or from
// the importing main package, in the manner of database/sql drivers), and
// Go plugins loaded from a user module directory (see LoadPluginDir).
//
// The registry returns builders; the runner constructs one instance per
// named occurrence in the profile, passing the optional instance id so two
// occurrences of the same slave class coexist under composite ids.
package registry

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/chatbridge/pkg/bridge"
	"github.com/aiku/chatbridge/pkg/ids"
)

// Role is the category a module is registered under.
type Role string

const (
	RoleMaster     Role = "master"
	RoleSlave      Role = "slave"
	RoleMiddleware Role = "middleware"
)

// BuildContext carries everything a module builder may need. The
// coordinator is handed to modules at construction instead of living in a
// global.
type BuildContext struct {
	Coordinator *bridge.Coordinator
	Log         zerolog.Logger
	Profile     string
	InstanceID  string
	// DataDir and CacheDir are the module's private directories, already
	// keyed by profile and composite module id.
	DataDir  string
	CacheDir string
}

// ChannelBuilder constructs one channel instance.
type ChannelBuilder func(ctx BuildContext) (bridge.Channel, error)

// MiddlewareBuilder constructs one middleware instance.
type MiddlewareBuilder func(ctx BuildContext) (bridge.Middleware, error)

// Info is the static metadata declared at registration, available without
// constructing the module (e.g. for --version output).
type Info struct {
	Name    string
	Version string
	Emoji   string
}

// Entry is one resolvable module class.
type Entry struct {
	ID   ids.ModuleID
	Role Role
	Info Info

	channel    ChannelBuilder
	middleware MiddlewareBuilder
}

// Registry maps module ids to entries across the three categories.
type Registry struct {
	mu      sync.RWMutex
	entries map[ids.ModuleID]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[ids.ModuleID]*Entry)}
}

// Default is the process-wide registry that package-level Register calls
// feed. main imports adapter packages for their registration side effects.
var Default = New()

func (r *Registry) register(id ids.ModuleID, role Role, info Info, ch ChannelBuilder, mw MiddlewareBuilder) error {
	if _, _, err := ids.ParseModuleID(string(id)); err != nil {
		return err
	}
	if id.Instance() != "" {
		return fmt.Errorf("module %q: registration ids may not carry an instance suffix", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, dup := r.entries[id]; dup {
		return fmt.Errorf("module %q already registered as %s", id, prev.Role)
	}
	r.entries[id] = &Entry{ID: id, Role: role, Info: info, channel: ch, middleware: mw}
	return nil
}

// RegisterMaster registers a master channel class.
func (r *Registry) RegisterMaster(id ids.ModuleID, info Info, build ChannelBuilder) error {
	return r.register(id, RoleMaster, info, build, nil)
}

// RegisterSlave registers a slave channel class.
func (r *Registry) RegisterSlave(id ids.ModuleID, info Info, build ChannelBuilder) error {
	return r.register(id, RoleSlave, info, build, nil)
}

// RegisterMiddleware registers a middleware class.
func (r *Registry) RegisterMiddleware(id ids.ModuleID, info Info, build MiddlewareBuilder) error {
	return r.register(id, RoleMiddleware, info, nil, build)
}

// MustRegisterMaster registers with Default and panics on error. Intended
// for adapter package init functions.
func MustRegisterMaster(id ids.ModuleID, info Info, build ChannelBuilder) {
	if err := Default.RegisterMaster(id, info, build); err != nil {
		panic(err)
	}
}

// MustRegisterSlave registers with Default and panics on error.
func MustRegisterSlave(id ids.ModuleID, info Info, build ChannelBuilder) {
	if err := Default.RegisterSlave(id, info, build); err != nil {
		panic(err)
	}
}

// MustRegisterMiddleware registers with Default and panics on error.
func MustRegisterMiddleware(id ids.ModuleID, info Info, build MiddlewareBuilder) {
	if err := Default.RegisterMiddleware(id, info, build); err != nil {
		panic(err)
	}
}

// Resolve parses a module id spec ("dotted.path.ClassName#instance") and
// looks up its entry. The returned instance id is "" when the spec has no
// suffix.
func (r *Registry) Resolve(spec string) (*Entry, string, error) {
	base, instance, err := ids.ParseModuleID(spec)
	if err != nil {
		return nil, "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[base]
	if !ok {
		return nil, "", fmt.Errorf("module %q is not installed", base)
	}
	return entry, instance, nil
}

// Entries returns every registered entry, for enumeration (e.g. version
// listings). Order is unspecified.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out
}

// BuildChannel resolves spec, checks it is registered under wantRole, and
// constructs one instance with the instance id from the spec.
func (r *Registry) BuildChannel(spec string, wantRole Role, ctx BuildContext) (bridge.Channel, error) {
	entry, instance, err := r.Resolve(spec)
	if err != nil {
		return nil, err
	}
	if entry.Role != wantRole {
		return nil, fmt.Errorf("module %q is a %s, not a %s", entry.ID, entry.Role, wantRole)
	}
	ctx.InstanceID = instance
	ch, err := entry.channel(ctx)
	if err != nil {
		return nil, fmt.Errorf("constructing %q: %w", spec, err)
	}
	return ch, nil
}

// BuildMiddleware resolves spec as a middleware and constructs one
// instance.
func (r *Registry) BuildMiddleware(spec string, ctx BuildContext) (bridge.Middleware, error) {
	entry, instance, err := r.Resolve(spec)
	if err != nil {
		return nil, err
	}
	if entry.Role != RoleMiddleware {
		return nil, fmt.Errorf("module %q is a %s, not a middleware", entry.ID, entry.Role)
	}
	ctx.InstanceID = instance
	mw, err := entry.middleware(ctx)
	if err != nil {
		return nil, fmt.Errorf("constructing %q: %w", spec, err)
	}
	return mw, nil
}
