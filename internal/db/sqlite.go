package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO)
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open opens (or creates) the SQLite database with pragmatic defaults for
// a single-process background-worker application: WAL journaling, foreign
// keys on, a generous busy timeout so concurrent worker ticks never fail
// outright on SQLITE_BUSY, and a single connection (SQLite's own
// recommendation for a writer-heavy single-process workload).
//
// Adapted from the teacher's db/schema.go Open.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := path +
		"?_pragma=foreign_keys(ON)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxIdleTime(0)
	sqlDB.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return sqlDB, nil
}

// ApplyMigrations runs every embedded *.sql migration in lexicographic
// order, each in its own transaction. Idempotent because every statement
// uses IF NOT EXISTS / INSERT ... ON CONFLICT.
//
// Adapted from the teacher's db/schema.go ApplyMigrations (that version
// read a directory from disk; this one reads an embedded FS so the binary
// stays single-file deployable).
func ApplyMigrations(ctx context.Context, sqlDB *sql.DB) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		files = append(files, "migrations/"+e.Name())
	}
	if len(files) == 0 {
		return errors.New("no migrations embedded")
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, readErr := migrationFS.ReadFile(f)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", f, readErr)
		}

		tx, beginErr := sqlDB.BeginTx(ctx, nil)
		if beginErr != nil {
			return fmt.Errorf("begin tx for %s: %w", f, beginErr)
		}
		if _, execErr := tx.ExecContext(ctx, string(sqlBytes)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec %s: %w", f, execErr)
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("commit %s: %w", f, commitErr)
		}
	}
	return nil
}
