package provider

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps provider names ("openai", "anthropic") to configured
// delegates. It is the factory the assistant uses to turn the configured
// provider string into a concrete Delegate.
type Registry struct {
	mu        sync.RWMutex
	delegates map[string]Delegate
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{delegates: make(map[string]Delegate)}
}

// Add registers d under name. Names are case-insensitive.
func (r *Registry) Add(name string, d Delegate) error {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.delegates[key]; exists {
		return fmt.Errorf("provider: %q already registered", name)
	}
	r.delegates[key] = d
	r.order = append(r.order, key)
	return nil
}

// Get returns the delegate registered under name. An empty name selects the
// first registered delegate.
func (r *Registry) Get(name string) (Delegate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		if len(r.order) == 0 {
			return nil, ErrNoProvider
		}
		return r.delegates[r.order[0]], nil
	}
	d, ok := r.delegates[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownProvider, name, strings.Join(r.order, ", "))
	}
	return d, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Resolve builds the delegate for a primary provider name followed by
// fallbacks. With no fallbacks the primary is returned unwrapped.
func (r *Registry) Resolve(primary string, fallbacks []string, opts ...FallbackOption) (Delegate, error) {
	first, err := r.Get(primary)
	if err != nil {
		return nil, err
	}
	if len(fallbacks) == 0 {
		return first, nil
	}

	entries := []FallbackEntry{{Name: primary, Delegate: first}}
	for _, name := range fallbacks {
		d, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, FallbackEntry{Name: name, Delegate: d})
	}
	return NewFallback(entries, opts...)
}
