// Package postgres implements a shared stream store on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"camscout/internal/config"
	"camscout/internal/domain"
	"camscout/internal/repository"
)

// Name is the backend identifier
const Name = "postgres"

//go:embed migrations/*.sql
var migrationsFS embed.FS

const streamColumns = `address, port, username, password, route, service_name,
	product, protocol, state, ids_found, path_found, thumbnail_path`

// Store implements repository.Store using a pgx connection pool
type Store struct {
	pool    *pgxpool.Pool
	writeMu sync.Mutex
	logger  *zap.Logger
}

// New creates an unconfigured PostgreSQL store
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger.Named("store.postgres")}
}

// Factory adapts New to repository.Factory
func Factory(logger *zap.Logger) repository.Store {
	return New(logger)
}

// Name returns the backend identifier
func (s *Store) Name() string {
	return Name
}

// Configure connects with exponential backoff, bounded by the configured
// connect timeout, and applies the embedded migrations.
func (s *Store) Configure(ctx context.Context, cfg config.StoreConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres dsn is empty", repository.ErrConfigure)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("%w: parse dsn: %v", repository.ErrConfigure, err)
	}

	pool, err := s.connectWithRetry(ctx, poolCfg, cfg.ConnectTimeout.Duration())
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrConfigure, err)
	}

	if err := runMigrations(pool); err != nil {
		pool.Close()
		return fmt.Errorf("%w: %v", repository.ErrConfigure, err)
	}

	s.pool = pool
	s.logger.Info("PostgreSQL store ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
	)
	return nil
}

func (s *Store) connectWithRetry(ctx context.Context, poolCfg *pgxpool.Config, maxElapsed time.Duration) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	if maxElapsed <= 0 {
		maxElapsed = config.DefaultConnectTimeout
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxElapsedTime = maxElapsed

	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			s.logger.Warn("Failed to connect to PostgreSQL, will retry", zap.Error(err))
			return err
		}
		pool = p
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("connect after retries: %w", err)
	}
	return pool, nil
}

// runMigrations applies the embedded schema migrations
func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SetStreams inserts the open RTSP streams, skipping any whose
// (address, port) is already stored so earlier results are kept.
func (s *Store) SetStreams(ctx context.Context, streams []domain.Stream) error {
	if s.pool == nil {
		return errors.New("store not configured")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	batch := &pgx.Batch{}
	for _, stream := range domain.Dedupe(streams) {
		if !stream.IsOpenRTSP() {
			continue
		}
		batch.Queue(`
			INSERT INTO streams (`+streamColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (address, port) DO NOTHING
		`, streamArgs(stream)...)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert streams: %w", err)
	}

	s.logger.Debug("Streams stored", zap.Int("queued", batch.Len()), zap.Int("received", len(streams)))
	return nil
}

// UpdateStream replaces the stored stream sharing the same key
func (s *Store) UpdateStream(ctx context.Context, stream domain.Stream) error {
	if s.pool == nil {
		return errors.New("store not configured")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.pool.Exec(ctx, `
		UPDATE streams SET
			username = $3, password = $4, route = $5, service_name = $6, product = $7,
			protocol = $8, state = $9, ids_found = $10, path_found = $11, thumbnail_path = $12,
			updated_at = NOW()
		WHERE address = $1 AND port = $2
	`, streamArgs(stream)...)
	if err != nil {
		return fmt.Errorf("update stream %s: %w", stream.Key(), err)
	}
	return nil
}

// GetStreams returns the open RTSP streams
func (s *Store) GetStreams(ctx context.Context) ([]domain.Stream, error) {
	return s.query(ctx, `
		SELECT `+streamColumns+` FROM streams
		WHERE service_name = $1 AND state = $2
		ORDER BY id
	`, domain.ServiceRTSP, domain.StateOpen)
}

// GetValidStreams returns the streams with credentials and route found
func (s *Store) GetValidStreams(ctx context.Context) ([]domain.Stream, error) {
	return s.query(ctx, `
		SELECT `+streamColumns+` FROM streams
		WHERE service_name = $1 AND state = $2 AND ids_found AND path_found
		ORDER BY id
	`, domain.ServiceRTSP, domain.StateOpen)
}

// HasChanged reports whether the stored copy of snapshot differs from it.
// A stream that is no longer stored counts as changed.
func (s *Store) HasChanged(ctx context.Context, snapshot domain.Stream) (bool, error) {
	if s.pool == nil {
		return false, errors.New("store not configured")
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE address = $1 AND port = $2
	`, snapshot.Address, int32(snapshot.Port))
	stored, err := scanStream(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query stream %s: %w", snapshot.Key(), err)
	}
	return repository.Resolved(snapshot, stored), nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]domain.Stream, error) {
	if s.pool == nil {
		return nil, errors.New("store not configured")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	var streams []domain.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, stream)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating streams: %w", err)
	}
	return streams, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// scanStream reads one row in streamColumns order
func scanStream(row pgx.Row) (domain.Stream, error) {
	var (
		stream domain.Stream
		port   int32
	)
	err := row.Scan(
		&stream.Address, &port, &stream.Username, &stream.Password, &stream.Route,
		&stream.ServiceName, &stream.Product, &stream.Protocol, &stream.State,
		&stream.IDsFound, &stream.PathFound, &stream.ThumbnailPath,
	)
	stream.Port = uint16(port)
	return stream, err
}

// streamArgs returns the write arguments in streamColumns order
func streamArgs(s domain.Stream) []any {
	return []any{
		s.Address, int32(s.Port), s.Username, s.Password, s.Route,
		s.ServiceName, s.Product, s.Protocol, s.State,
		s.IDsFound, s.PathFound, s.ThumbnailPath,
	}
}
