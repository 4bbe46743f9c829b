package schema

import (
	"embed"
	"fmt"
	"sort"
	"sync"
)

//go:embed profiles/*.yaml
var builtinFS embed.FS

// Registry holds the known profiles keyed by name and header type.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Profile
	byType map[string]*Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Profile),
		byType: make(map[string]*Profile),
	}
}

// Register adds a profile. Names and header types must be unique.
func (r *Registry) Register(p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name]; exists {
		return fmt.Errorf("profile %q already registered", p.Name)
	}
	if _, exists := r.byType[p.Type]; exists {
		return fmt.Errorf("header type %q already registered", p.Type)
	}

	p.buildIndex()
	r.byName[p.Name] = p
	r.byType[p.Type] = p
	return nil
}

// Get returns a profile by name.
func (r *Registry) Get(name string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	return p, ok
}

// Lookup returns the profile accepting the given Header.Type.
func (r *Registry) Lookup(dbType string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byType[dbType]
	return p, ok
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir parses and registers every profile definition in dir.
func (r *Registry) LoadDir(dir string) error {
	profiles, err := ParseDir(dir)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Builtin returns a registry holding the embedded item and mob profiles.
func Builtin() *Registry {
	r := NewRegistry()
	for _, name := range []string{"profiles/item_db.yaml", "profiles/mob_db.yaml"} {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			panic(fmt.Sprintf("schema: read %s: %v", name, err))
		}
		p, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("schema: %s: %v", name, err))
		}
		if err := r.Register(p); err != nil {
			panic(fmt.Sprintf("schema: %s: %v", name, err))
		}
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry of built-in profiles.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = Builtin()
	})
	return defaultRegistry
}

// Item returns the built-in item profile.
func Item() *Profile {
	p, _ := Default().Get("item")
	return p
}

// Mob returns the built-in mob profile.
func Mob() *Profile {
	p, _ := Default().Get("mob")
	return p
}
