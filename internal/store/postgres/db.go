package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
)

const (
	// DefaultQueryTimeout is applied to individual queries to prevent
	// runaway SQL from holding connections indefinitely.
	DefaultQueryTimeout = 30 * time.Second

	// LongQueryTimeout is used for heavier operations such as migrations
	// and full-table audit scans.
	LongQueryTimeout = 5 * time.Minute
)

type DB struct {
	*sql.DB
}

type Config struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	StatementTimeoutMS int
}

func New(cfg Config) (*DB, error) {
	connURL := cfg.URL
	if cfg.StatementTimeoutMS > 0 {
		connURL = applyStatementTimeout(connURL, cfg.StatementTimeoutMS)
	}

	pool, err := sql.Open("postgres", connURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	tunePool(pool, cfg)

	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{pool}, nil
}

func tunePool(pool *sql.DB, cfg Config) {
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	idle := cfg.ConnMaxIdleTime
	if idle <= 0 {
		idle = 2 * time.Minute
	}
	pool.SetConnMaxIdleTime(idle)
}

// applyStatementTimeout rewrites the connection URL so every pooled
// connection starts with the given statement_timeout, not just one session.
func applyStatementTimeout(connURL string, timeoutMS int) string {
	u, err := url.Parse(connURL)
	if err != nil || u.Scheme == "" {
		// Not URL-shaped; leave it alone rather than corrupt a DSN.
		return connURL
	}
	q := u.Query()
	q.Set("options", fmt.Sprintf("-c statement_timeout=%d", timeoutMS))
	u.RawQuery = q.Encode()
	return u.String()
}

// RunMigrations applies every *.up.sql file under dir in name order,
// recording each one in schema_migrations so reruns are no-ops.
func (db *DB) RunMigrations(dir string) error {
	if err := db.ensureMigrationTable(); err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		version := filepath.Base(path)
		applied, err := db.migrationApplied(version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := db.applyMigration(path, version); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) ensureMigrationTable() error {
	_, err := db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (db *DB) migrationApplied(version string) (bool, error) {
	var applied bool
	err := db.QueryRowContext(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return applied, nil
}

func (db *DB) applyMigration(path, version string) error {
	ddl, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	slog.Info("migration starting", "version", version)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), LongQueryTimeout)
	defer cancel()

	// A bounded lock_timeout keeps a blocked migration from wedging boot.
	if _, err := db.ExecContext(ctx, "SET lock_timeout = '10s'"); err != nil {
		return fmt.Errorf("set lock_timeout for migration %s: %w", version, err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("exec migration %s: %w", version, err)
	}

	if _, err := db.ExecContext(context.Background(),
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}

	slog.Info("migration completed", "version", version, "elapsed", time.Since(start).String())
	return nil
}
