// Package sqlite implements a file-backed stream store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"camscout/internal/config"
	"camscout/internal/domain"
	"camscout/internal/repository"
)

// Name is the backend identifier
const Name = "sqlite"

// Store implements repository.Store using SQLite
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	logger  *zap.Logger
}

// New creates an unconfigured SQLite store
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger.Named("store.sqlite")}
}

// Factory adapts New to repository.Factory
func Factory(logger *zap.Logger) repository.Store {
	return New(logger)
}

// Name returns the backend identifier
func (s *Store) Name() string {
	return Name
}

// Configure opens the database file and creates the schema if absent
func (s *Store) Configure(ctx context.Context, cfg config.StoreConfig) error {
	if cfg.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite path is empty", repository.ErrConfigure)
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("%w: open database: %v", repository.ErrConfigure, err)
	}
	// One connection keeps ":memory:" databases shared and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: connect: %v", repository.ErrConfigure, err)
	}

	s.db = db
	if err := s.migrate(ctx); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("%w: migrate database: %v", repository.ErrConfigure, err)
	}

	s.logger.Info("SQLite store ready", zap.String("path", cfg.SQLitePath))
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS streams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		port INTEGER NOT NULL,
		username TEXT,
		password TEXT,
		route TEXT,
		service_name TEXT NOT NULL DEFAULT '',
		product TEXT,
		protocol TEXT,
		state TEXT NOT NULL DEFAULT 'closed',
		ids_found INTEGER NOT NULL DEFAULT 0,
		path_found INTEGER NOT NULL DEFAULT 0,
		thumbnail_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (address, port)
	);

	CREATE INDEX IF NOT EXISTS idx_streams_state ON streams(service_name, state);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SetStreams inserts the open RTSP streams, skipping any whose
// (address, port) is already stored so earlier results are kept.
func (s *Store) SetStreams(ctx context.Context, streams []domain.Stream) error {
	if s.db == nil {
		return errors.New("store not configured")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO streams (`+streamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address, port) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, stream := range domain.Dedupe(streams) {
		if !stream.IsOpenRTSP() {
			continue
		}
		res, err := stmt.ExecContext(ctx, streamInsertArgs(stream)...)
		if err != nil {
			return fmt.Errorf("insert stream %s: %w", stream.Key(), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("Streams stored", zap.Int("inserted", inserted), zap.Int("received", len(streams)))
	return nil
}

// UpdateStream replaces the stored stream sharing the same key
func (s *Store) UpdateStream(ctx context.Context, stream domain.Stream) error {
	if s.db == nil {
		return errors.New("store not configured")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE streams SET
			username = ?, password = ?, route = ?, service_name = ?, product = ?,
			protocol = ?, state = ?, ids_found = ?, path_found = ?, thumbnail_path = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE address = ? AND port = ?
	`,
		stringToNull(stream.Username), stringToNull(stream.Password), stringToNull(stream.Route),
		stream.ServiceName, stringToNull(stream.Product), stringToNull(stream.Protocol),
		stream.State, stream.IDsFound, stream.PathFound, stringToNull(stream.ThumbnailPath),
		stream.Address, int64(stream.Port),
	)
	if err != nil {
		return fmt.Errorf("update stream %s: %w", stream.Key(), err)
	}
	return nil
}

// GetStreams returns the open RTSP streams
func (s *Store) GetStreams(ctx context.Context) ([]domain.Stream, error) {
	return s.query(ctx, `
		SELECT `+streamColumns+` FROM streams
		WHERE service_name = ? AND state = ?
		ORDER BY id
	`, domain.ServiceRTSP, domain.StateOpen)
}

// GetValidStreams returns the streams with credentials and route found
func (s *Store) GetValidStreams(ctx context.Context) ([]domain.Stream, error) {
	return s.query(ctx, `
		SELECT `+streamColumns+` FROM streams
		WHERE service_name = ? AND state = ? AND ids_found = 1 AND path_found = 1
		ORDER BY id
	`, domain.ServiceRTSP, domain.StateOpen)
}

// HasChanged reports whether the stored copy of snapshot differs from it.
// A stream that is no longer stored counts as changed.
func (s *Store) HasChanged(ctx context.Context, snapshot domain.Stream) (bool, error) {
	if s.db == nil {
		return false, errors.New("store not configured")
	}

	var row streamRow
	err := s.db.QueryRowContext(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE address = ? AND port = ?
	`, snapshot.Address, int64(snapshot.Port)).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query stream %s: %w", snapshot.Key(), err)
	}
	return repository.Resolved(snapshot, row.toDomain()), nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]domain.Stream, error) {
	if s.db == nil {
		return nil, errors.New("store not configured")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	var streams []domain.Stream
	for rows.Next() {
		var row streamRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating streams: %w", err)
	}
	return streams, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
