package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"quotechart/internal/config"
)

var (
	// ErrNotConfigured indicates the store has no open backend.
	ErrNotConfigured = errors.New("storage: store not configured")
	// ErrStoreNotFound indicates the SQLite file does not exist.
	ErrStoreNotFound = errors.New("storage: quote store not found")
)

const defaultConnectTimeout = 10 * time.Second

// Store is a read-only handle on the quote store. Exactly one of db or pool
// is set.
type Store struct {
	db   *sql.DB
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL when cfg.DSN is set and to the SQLite file at
// cfg.Path otherwise. The connection is verified before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if cfg.DSN != "" {
		pool, err := openPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Store{pool: pool}, nil
	}

	db, err := openSQLite(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database.path is empty", ErrStoreNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("stat sqlite file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrStoreNotFound, path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma query_only: %w", err)
	}

	// Ping alone does not read the header, so a corrupt file would pass.
	var objects int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master;").Scan(&objects); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read sqlite schema: %w", err)
	}

	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	poolConfig.MaxConns = 1
	poolConfig.MinConns = 0
	poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Backend names the driver in use.
func (s *Store) Backend() string {
	switch {
	case s == nil:
		return "none"
	case s.pool != nil:
		return "postgres"
	case s.db != nil:
		return "sqlite"
	default:
		return "none"
	}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.pool != nil {
		s.pool.Close()
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
