package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is an access-time index for cache slots. It maps a fingerprint to the
// instant it was last written or revalidated, replacing file mtimes as the
// LRU clock when the filesystem timestamps are too coarse.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the index at path and applies pending migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Touch records at as the last access instant of fingerprint.
func (d *DB) Touch(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO slots (fingerprint, last_access) VALUES (?, ?) ON CONFLICT(fingerprint) DO UPDATE SET last_access = excluded.last_access",
		fingerprint, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to touch %s: %w", fingerprint, err)
	}
	return nil
}

// LastAccess returns every indexed fingerprint with its last access instant.
func (d *DB) LastAccess(ctx context.Context) (map[string]time.Time, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT fingerprint, last_access FROM slots")
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			fp string
			ns int64
		)
		if err := rows.Scan(&fp, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		out[fp] = time.Unix(0, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return out, nil
}

// Forget drops fingerprint from the index. Missing entries are not an error.
func (d *DB) Forget(ctx context.Context, fingerprint string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM slots WHERE fingerprint = ?", fingerprint); err != nil {
		return fmt.Errorf("failed to forget %s: %w", fingerprint, err)
	}
	return nil
}
