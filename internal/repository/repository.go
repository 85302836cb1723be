package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"camscout/internal/config"
	"camscout/internal/domain"
)

// ErrConfigure is wrapped by every backend setup failure
var ErrConfigure = errors.New("store configuration failed")

// Store defines the interface every stream store backend implements
type Store interface {
	// Name returns the backend identifier
	Name() string

	// Configure performs one-time setup (open connections, create schema).
	// A failed Configure must abort the run.
	Configure(ctx context.Context, cfg config.StoreConfig) error

	// SetStreams loads the working set discovered by the mapper
	SetStreams(ctx context.Context, streams []domain.Stream) error

	// UpdateStream replaces the stored stream sharing the same key.
	// It is a no-op when no such stream exists and must be safe for
	// concurrent callers.
	UpdateStream(ctx context.Context, stream domain.Stream) error

	// GetStreams returns the open RTSP streams
	GetStreams(ctx context.Context) ([]domain.Stream, error)

	// GetValidStreams returns open RTSP streams with both credentials and route found
	GetValidStreams(ctx context.Context) ([]domain.Stream, error)

	// Close releases resources
	Close() error
}

// ChangeTracker is implemented by stores that can tell whether a stream was
// modified since the given snapshot was read. Attacks use it to stop
// working on a record another worker already resolved.
type ChangeTracker interface {
	HasChanged(ctx context.Context, snapshot domain.Stream) (bool, error)
}

// Factory creates an unconfigured store
type Factory func(logger *zap.Logger) Store

// Registry maps backend names to their factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty backend registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a backend under the given name
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("store backend %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	return factory, ok
}

// Names returns the registered backend names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolved reports whether stored differs from snapshot in any field an
// attack writes. Backends implementing ChangeTracker share this rule.
func Resolved(snapshot, stored domain.Stream) bool {
	return snapshot.IDsFound != stored.IDsFound ||
		snapshot.PathFound != stored.PathFound ||
		snapshot.Username != stored.Username ||
		snapshot.Password != stored.Password ||
		snapshot.Route != stored.Route
}
