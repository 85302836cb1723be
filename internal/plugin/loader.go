// Package plugin resolves a store backend name to a live repository.Store.
//
// Built-in backends come from a repository.Registry. Any other name is
// looked up as a Go plugin at {dir}/lib{name}_cache_manager{.so|.dylib}
// exporting an entry symbol (NewStore by default) of type
// func() repository.Store or func(*zap.Logger) repository.Store.
package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"runtime"

	"go.uber.org/zap"

	"camscout/internal/repository"
	"camscout/internal/repository/memory"
	"camscout/internal/repository/postgres"
	"camscout/internal/repository/sqlite"
)

// ErrPluginLoad is wrapped by every LoadError
var ErrPluginLoad = errors.New("store plugin load failed")

// LoadError describes why a backend could not be instantiated
type LoadError struct {
	Name   string
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load store backend %q", e.Name)
	if e.Path != "" {
		msg += fmt.Sprintf(" from %s", e.Path)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrPluginLoad and the underlying cause
func (e *LoadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPluginLoad, e.Err}
	}
	return []error{ErrPluginLoad}
}

// Descriptor records how the active backend was resolved
type Descriptor struct {
	Name   string
	Path   string // empty for built-in backends
	Symbol string // empty for built-in backends
}

// openFunc opens a plugin file; swapped out in tests
type openFunc func(path string) (symbolLookup, error)

type symbolLookup interface {
	Lookup(symName string) (goplugin.Symbol, error)
}

// Loader resolves backend names to store instances
type Loader struct {
	dir      string
	symbol   string
	registry *repository.Registry
	logger   *zap.Logger
	open     openFunc
}

// NewLoader creates a loader over the given registry. dir and symbol are
// used for names the registry does not know.
func NewLoader(registry *repository.Registry, dir, symbol string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if symbol == "" {
		symbol = "NewStore"
	}
	return &Loader{
		dir:      dir,
		symbol:   symbol,
		registry: registry,
		logger:   logger.Named("plugin"),
		open: func(path string) (symbolLookup, error) {
			return goplugin.Open(path)
		},
	}
}

// DefaultRegistry returns a registry holding every built-in backend
func DefaultRegistry() *repository.Registry {
	r := repository.NewRegistry()
	_ = r.Register(memory.Name, memory.Factory)
	_ = r.Register(memory.Alias, memory.Factory)
	_ = r.Register(sqlite.Name, sqlite.Factory)
	_ = r.Register(postgres.Name, postgres.Factory)
	return r
}

// LibraryPath returns the canonical plugin file for a backend name
func LibraryPath(dir, name string) string {
	ext := ".so"
	if runtime.GOOS == "darwin" {
		ext = ".dylib"
	}
	return filepath.Join(dir, "lib"+name+"_cache_manager"+ext)
}

// Load instantiates exactly one store for name. The store is not yet
// configured.
func (l *Loader) Load(name string) (repository.Store, Descriptor, error) {
	if name == "" {
		return nil, Descriptor{}, &LoadError{Name: name, Reason: "empty backend name"}
	}

	if l.registry != nil {
		if factory, ok := l.registry.Lookup(name); ok {
			store := factory(l.logger)
			if store == nil {
				return nil, Descriptor{}, &LoadError{Name: name, Reason: "factory returned nil store"}
			}
			l.logger.Info("Using built-in store backend", zap.String("backend", name))
			return store, Descriptor{Name: name}, nil
		}
	}

	return l.loadLibrary(name)
}

func (l *Loader) loadLibrary(name string) (repository.Store, Descriptor, error) {
	path := LibraryPath(l.dir, name)
	desc := Descriptor{Name: name, Path: path, Symbol: l.symbol}

	if _, err := os.Stat(path); err != nil {
		return nil, desc, &LoadError{Name: name, Path: path, Reason: "invalid path", Err: err}
	}

	lib, err := l.open(path)
	if err != nil {
		return nil, desc, &LoadError{Name: name, Path: path, Reason: "invalid store plugin", Err: err}
	}

	sym, err := lib.Lookup(l.symbol)
	if err != nil {
		return nil, desc, &LoadError{Name: name, Path: path, Reason: fmt.Sprintf("missing symbol %s", l.symbol), Err: err}
	}

	var store repository.Store
	switch ctor := sym.(type) {
	case func() repository.Store:
		store = ctor()
	case func(*zap.Logger) repository.Store:
		store = ctor(l.logger)
	case *func() repository.Store:
		store = (*ctor)()
	default:
		return nil, desc, &LoadError{
			Name:   name,
			Path:   path,
			Reason: fmt.Sprintf("symbol %s has unsupported type %T", l.symbol, sym),
		}
	}
	if store == nil {
		return nil, desc, &LoadError{Name: name, Path: path, Reason: "invalid store format: constructor returned nil"}
	}

	l.logger.Info("Loaded store plugin",
		zap.String("backend", name),
		zap.String("path", path),
		zap.String("symbol", l.symbol),
	)
	return store, desc, nil
}
