// Package registry maps normalized handler names to step handler
// functions
//
// Both runners resolve handlers through the same Registry so that
// handler availability has a single source of truth. A Registry is
// constructed once at process start and passed to whatever needs to
// resolve steps; there is no process-wide instance
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/opsforge/taskkit/pkg/api"
)

// Registry is a concurrency-safe table of step handlers keyed by
// normalized name
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]api.Handler
}

var (
	// ErrAlreadyRegistered is raised when a name is registered twice
	// without an explicit override
	ErrAlreadyRegistered = errors.New("step handler is already registered")

	// ErrHandlerNotFound is raised when a lookup misses. The message
	// lists every registered name to make typos easy to spot
	ErrHandlerNotFound = errors.New("step handler not found")
)

// New creates an empty handler registry
func New() *Registry {
	return &Registry{
		handlers: map[string]api.Handler{},
	}
}

// Normalize lowercases a handler name and replaces underscores with
// hyphens, so lookups are insensitive to either spelling
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// Register adds a handler under the normalized form of name, refusing
// to replace an existing registration
func (r *Registry) Register(name string, h api.Handler) error {
	key := Normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.handlers[key] = h
	return nil
}

// Override adds a handler under the normalized form of name, replacing
// any existing registration
func (r *Registry) Override(name string, h api.Handler) {
	key := Normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
}

// Get returns the handler registered under the normalized form of name
func (r *Registry) Get(name string) (api.Handler, error) {
	key := Normalize(name)
	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s (available: %s)", ErrHandlerNotFound, name, r.available(),
		)
	}
	return h, nil
}

// Has reports whether a handler is registered under the normalized form
// of name
func (r *Registry) Has(name string) bool {
	key := Normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[key]
	return ok
}

// Names returns all registered handler names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes every registration. Primarily for tests that need a
// clean slate
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handlers)
}

func (r *Registry) available() string {
	names := r.Names()
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
