package providers

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrModelNotSupported is returned when a model is not in a provider catalog
	ErrModelNotSupported = errors.New("model not supported")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry holds provider descriptors in registration order.
// Registration order is the fallback priority.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
	order       []string
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor at the end of the fallback order
func (r *Registry) Register(d *Descriptor) error {
	if d == nil {
		return errors.New("provider cannot be nil")
	}
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, d.ID)
	}

	r.descriptors[d.ID] = d.clone()
	r.order = append(r.order, d.ID)

	return nil
}

// Get returns a copy of the descriptor registered under id. Changes to the
// copy do not reach the registry.
func (r *Registry) Get(id string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, exists := r.descriptors[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}

	return d.clone(), nil
}

// Has reports whether a provider id is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.descriptors[id]
	return exists
}

// ListIDs returns provider ids in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// AttemptOrder returns the primary id first, then every other id in registry order
func (r *Registry) AttemptOrder(primary string) []string {
	ids := r.ListIDs()

	order := make([]string, 0, len(ids))
	order = append(order, primary)
	for _, id := range ids {
		if id != primary {
			order = append(order, id)
		}
	}

	return order
}

// Models returns a copy of a provider's catalog
func (r *Registry) Models(id string) ([]ModelOption, error) {
	d, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return append([]ModelOption(nil), d.Models...), nil
}

// DefaultModel returns the first catalog model of a provider
func (r *Registry) DefaultModel(id string) (string, error) {
	d, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return d.DefaultModel(), nil
}

// ValidateModel checks that a model is in a provider's catalog
func (r *Registry) ValidateModel(id, model string) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if !d.HasModel(model) {
		return fmt.Errorf("%w: %s does not offer %s", ErrModelNotSupported, id, model)
	}
	return nil
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
