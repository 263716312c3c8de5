package provider

import (
	"fmt"
	"sort"
	"sync"

	"ai-mediagen-be/pkg/apperror"
)

// Registry resolves model ids to their spec and provider. It is filled once at startup.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	models    map[string]ModelSpec
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]ModelSpec),
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// RegisterModel adds a model. The provider it names must already be registered.
func (r *Registry) RegisterModel(spec ModelSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[spec.Provider]; !ok {
		return fmt.Errorf("model %s references unknown provider %s", spec.ID, spec.Provider)
	}
	r.models[spec.ID] = spec
	return nil
}

func (r *Registry) Resolve(modelID string) (ModelSpec, Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.models[modelID]
	if !ok {
		return ModelSpec{}, nil, apperror.Validation(fmt.Sprintf("Unknown model: %s", modelID))
	}
	return spec, r.providers[spec.Provider], nil
}

func (r *Registry) Model(modelID string) (ModelSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.models[modelID]
	return spec, ok
}

// Models returns the registered catalog sorted by credits then id.
func (r *Registry) Models() []ModelSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelSpec, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits < out[j].Credits
		}
		return out[i].ID < out[j].ID
	})
	return out
}
