package policy

import (
	"fmt"
	"sort"
)

// DefaultProfileID is the profile used when none is configured.
const DefaultProfileID = "figma"

// Registry holds all known app profiles.
type Registry struct {
	profiles map[string]AppProfile
}

// NewRegistry creates a registry with all default profiles.
func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[string]AppProfile),
	}

	r.Register(NewFigmaProfile())

	return r
}

// NewRegistryWithProfiles creates a registry with custom profiles (for testing).
func NewRegistryWithProfiles(profiles ...AppProfile) *Registry {
	r := &Registry{
		profiles: make(map[string]AppProfile),
	}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds a profile to the registry.
func (r *Registry) Register(p AppProfile) {
	r.profiles[p.ID()] = p
}

// Get returns a profile by ID.
func (r *Registry) Get(id string) (AppProfile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// Lookup returns a profile by ID, falling back to the default for an empty ID.
func (r *Registry) Lookup(id string) (AppProfile, error) {
	if id == "" {
		id = DefaultProfileID
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("unknown app profile %q (known: %v)", id, r.List())
	}
	return p, nil
}

// List returns all profile IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
