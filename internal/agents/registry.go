package agents

import (
	"sort"
	"sync"
)

// Registry holds the loaded sub-agent profiles. Refresh is called at
// startup and again whenever the config watcher sees a change under a
// profile directory.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	loader   *Loader
}

// NewRegistry creates a registry over the default search paths.
func NewRegistry() *Registry {
	return NewRegistryWithPaths(DefaultPaths())
}

// NewRegistryWithPaths creates a registry over custom search paths.
func NewRegistryWithPaths(paths []string) *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
		loader:   NewLoader(paths),
	}
}

// Refresh reloads all profiles from disk, replacing the current set.
func (r *Registry) Refresh() error {
	profiles, err := r.loader.LoadAll()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles = make(map[string]*Profile)
	for _, p := range profiles {
		r.profiles[p.Name] = p
	}

	return nil
}

// Get returns the named profile.
func (r *Registry) Get(name string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// List returns every loaded profile sorted by name.
func (r *Registry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
