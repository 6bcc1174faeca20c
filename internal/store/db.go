package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultDBPath returns $NUAGENT_DATABASE or ~/.nuagent/memory.db, per §6.5.
func DefaultDBPath() (string, error) {
	if path := os.Getenv("NUAGENT_DATABASE"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".nuagent", "memory.db"), nil
}

// Open opens or creates the embedded database at dbPath with WAL-mode
// pragmas tuned for a single-process, many-goroutine writer.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := configure(ctx, db, dbPath == ":memory:"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return db, nil
}

func configure(ctx context.Context, db *sqlx.DB, inMemory bool) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=1000",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	// A single shared connection serializes writers at the database/sql
	// level: concurrent callers queue for that one connection instead of
	// multiple pooled connections fighting over SQLite's single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// In-memory databases fall back to "memory" journal mode regardless
	// of the PRAGMA request, so WAL verification only applies to
	// on-disk databases.
	if inMemory {
		return nil
	}

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if !strings.EqualFold(journalMode, "wal") {
		return errors.Errorf("WAL mode not enabled, got %s", journalMode)
	}

	return nil
}
