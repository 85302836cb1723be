// Command jsonfile is a store plugin that keeps streams in a JSON file so
// results survive between runs.
//
//	go build -buildmode=plugin -o plugins/libjsonfile_cache_manager.so ./plugins/jsonfile
//
// Select it with store.backend: jsonfile and set store.options.path.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"camscout/internal/codec"
	"camscout/internal/config"
	"camscout/internal/domain"
	"camscout/internal/repository"
	"camscout/internal/repository/memory"
)

const (
	name        = "jsonfile"
	defaultPath = "camscout-streams.json"
)

// fileStore writes through to disk after every change
type fileStore struct {
	*memory.Store

	mu     sync.Mutex
	path   string
	codec  *codec.JSONCodec
	logger *zap.Logger
}

// NewStore is the plugin entry point
func NewStore(logger *zap.Logger) repository.Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileStore{
		Store:  memory.New(logger),
		codec:  codec.NewJSONCodec(),
		logger: logger.Named("store." + name),
	}
}

func (s *fileStore) Name() string {
	return name
}

// Configure loads the streams left by a previous run, if any
func (s *fileStore) Configure(ctx context.Context, cfg config.StoreConfig) error {
	s.path = cfg.Options["path"]
	if s.path == "" {
		s.path = defaultPath
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("Starting with an empty stream file", zap.String("path", s.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", repository.ErrConfigure, s.path, err)
	}
	defer f.Close()

	streams, err := s.codec.Parse(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrConfigure, s.path, err)
	}
	if err := s.Store.SetStreams(ctx, streams); err != nil {
		return err
	}
	s.logger.Info("Streams restored", zap.String("path", s.path), zap.Int("count", len(streams)))
	return nil
}

func (s *fileStore) SetStreams(ctx context.Context, streams []domain.Stream) error {
	if err := s.Store.SetStreams(ctx, streams); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *fileStore) UpdateStream(ctx context.Context, stream domain.Stream) error {
	if err := s.Store.UpdateStream(ctx, stream); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *fileStore) Close() error {
	err := s.flush(context.Background())
	return errors.Join(err, s.Store.Close())
}

func (s *fileStore) flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	streams, err := s.Store.All(ctx)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.codec.Export(streams, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

var _ repository.ChangeTracker = (*fileStore)(nil)

func main() {}
