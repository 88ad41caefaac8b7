// Package sqlite provides a SQLite-backed build library.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/mephi42/gopob/internal/platform/errors"
	"github.com/mephi42/gopob/internal/platform/timeouts"
	sqlitemigrate "github.com/mephi42/gopob/internal/platform/storage/sqlitemigrate"
	"github.com/mephi42/gopob/internal/services/library/storage"
	"github.com/mephi42/gopob/internal/services/library/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists builds in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite build library and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=%d&_synchronous=NORMAL",
		cleanPath, timeouts.SQLiteBusy.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put inserts or replaces one build.
func (s *Store) Put(ctx context.Context, build storage.StoredBuild) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name := strings.TrimSpace(build.Name)
	if name == "" {
		return fmt.Errorf("build name is required")
	}
	if len(build.XML) == 0 {
		return fmt.Errorf("build xml is required")
	}
	updatedAt := build.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO builds (name, xml, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   xml = excluded.xml,
		   updated_at = excluded.updated_at`,
		name,
		build.XML,
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put build: %w", err)
	}
	return nil
}

// Get returns one build by name.
func (s *Store) Get(ctx context.Context, name string) (storage.StoredBuild, error) {
	if err := ctx.Err(); err != nil {
		return storage.StoredBuild{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StoredBuild{}, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.StoredBuild{}, fmt.Errorf("build name is required")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT name, xml, updated_at
		   FROM builds
		  WHERE name = ?`,
		name,
	)
	var build storage.StoredBuild
	var updatedAt int64
	if err := row.Scan(&build.Name, &build.XML, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StoredBuild{}, notFound(name)
		}
		return storage.StoredBuild{}, fmt.Errorf("get build: %w", err)
	}
	build.UpdatedAt = fromMillis(updatedAt)
	return build, nil
}

// List returns build names and timestamps ordered by name.
func (s *Store) List(ctx context.Context) ([]storage.StoredBuild, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT name, updated_at
		   FROM builds
		  ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	builds := []storage.StoredBuild{}
	for rows.Next() {
		var build storage.StoredBuild
		var updatedAt int64
		if err := rows.Scan(&build.Name, &updatedAt); err != nil {
			return nil, fmt.Errorf("list builds: %w", err)
		}
		build.UpdatedAt = fromMillis(updatedAt)
		builds = append(builds, build)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	return builds, nil
}

// Delete removes one build by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM builds WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	if affected == 0 {
		return notFound(name)
	}
	return nil
}

func notFound(name string) error {
	return apperrors.WrapWithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("build %q not found", name),
		map[string]string{"build": name}, storage.ErrNotFound)
}

var _ storage.BuildStore = (*Store)(nil)
