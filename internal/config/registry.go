package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signloom/signloom/pkg/provider/meaning"
)

// ErrProviderNotRegistered reports a CreateMeaning call naming a
// provider that no factory was registered for.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry binds provider names to factories so configuration can name
// a backend without the config package importing every implementation.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	meaning map[string]func(ProviderEntry) (meaning.Provider, error)
}

// NewRegistry returns a Registry with no factories bound.
func NewRegistry() *Registry {
	return &Registry{
		meaning: make(map[string]func(ProviderEntry) (meaning.Provider, error)),
	}
}

// RegisterMeaning binds a meaning provider factory to name. Registering
// the same name again replaces the earlier factory.
func (r *Registry) RegisterMeaning(name string, factory func(ProviderEntry) (meaning.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meaning[name] = factory
}

// CreateMeaning instantiates the provider entry.Name refers to, or
// returns [ErrProviderNotRegistered] when nothing is bound to it.
func (r *Registry) CreateMeaning(entry ProviderEntry) (meaning.Provider, error) {
	r.mu.RLock()
	factory, ok := r.meaning[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: meaning/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
