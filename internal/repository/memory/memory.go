// Package memory implements an in-process stream store.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"camscout/internal/config"
	"camscout/internal/domain"
	"camscout/internal/repository"
)

// Name is the backend identifier; Alias is accepted for compatibility with
// older configs.
const (
	Name  = "memory"
	Alias = "dumb"
)

// Store keeps streams in a slice guarded by a mutex
type Store struct {
	mu      sync.RWMutex
	streams []domain.Stream
	logger  *zap.Logger
}

// New creates an empty in-memory store
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger.Named("store.memory")}
}

// Factory adapts New to repository.Factory
func Factory(logger *zap.Logger) repository.Store {
	return New(logger)
}

// Name returns the backend identifier
func (s *Store) Name() string {
	return Name
}

// Configure has nothing to set up
func (s *Store) Configure(ctx context.Context, cfg config.StoreConfig) error {
	s.logger.Debug("In-memory store ready")
	return nil
}

// SetStreams replaces the whole working set
func (s *Store) SetStreams(ctx context.Context, streams []domain.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streams = domain.Dedupe(streams)
	s.logger.Debug("Streams replaced", zap.Int("count", len(s.streams)))
	return nil
}

// UpdateStream replaces the stream sharing the same key
func (s *Store) UpdateStream(ctx context.Context, stream domain.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stream.Key()
	for i := range s.streams {
		if s.streams[i].Key() == key {
			s.streams[i] = stream
			return nil
		}
	}
	s.logger.Debug("Update ignored, unknown stream", zap.Stringer("key", key))
	return nil
}

// GetStreams returns the open RTSP streams
func (s *Store) GetStreams(ctx context.Context) ([]domain.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.FilterOpenRTSP(s.streams), nil
}

// GetValidStreams returns the streams with credentials and route found
func (s *Store) GetValidStreams(ctx context.Context) ([]domain.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.FilterValid(s.streams), nil
}

// All returns every stored stream, whatever its service or state
func (s *Store) All(ctx context.Context) ([]domain.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Stream(nil), s.streams...), nil
}

// HasChanged reports whether the stored copy of snapshot differs from it.
// A stream that is no longer stored counts as changed.
func (s *Store) HasChanged(ctx context.Context, snapshot domain.Stream) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := snapshot.Key()
	for _, stored := range s.streams {
		if stored.Key() == key {
			return repository.Resolved(snapshot, stored), nil
		}
	}
	return true, nil
}

// Close drops all streams
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = nil
	return nil
}
