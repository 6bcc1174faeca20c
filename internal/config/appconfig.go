// Package config provides two distinct configuration surfaces, per
// SPEC_FULL.md's AMBIENT STACK section:
//
//   - Store (this file) is the text-keyed, database-backed AppConfig
//     table (§3, §4.8) — typed accessors over values the running
//     process itself can rewrite (worker enable/verbosity, batch size,
//     rate limit, `/model` swaps).
//   - Bootstrap (bootstrap.go) is the process-startup configuration
//     read once via viper/cobra, grounded on the teacher's
//     cmd/kodelet/main.go init().
package config

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrParse is returned when a typed accessor can't parse a stored value.
var ErrParse = errors.New("config parse error")

// Store is the typed AppConfig accessor (§3, §4.8).
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an already-migrated database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Get returns the raw text value for key, and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM app_config WHERE key = ?`, key)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "failed to read config")
	}
	return value, true, nil
}

// Set issues an UPSERT with CURRENT_TIMESTAMP (§4.8).
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return errors.Wrap(err, "failed to write config")
}

// Bool parses a stored value as a case-insensitive "true"/"false";
// any other text is a parse error (§4.8) rather than a silent default.
func (s *Store) Bool(ctx context.Context, key string, defaultValue bool) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return defaultValue, nil
	}
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errors.Wrapf(ErrParse, "config %q: expected true/false, got %q", key, raw)
	}
}

// Int parses a stored value as a base-10 integer.
func (s *Store) Int(ctx context.Context, key string, defaultValue int64) (int64, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "config %q: expected integer, got %q", key, raw)
	}
	return v, nil
}

// Float parses a stored value as a float64.
func (s *Store) Float(ctx context.Context, key string, defaultValue float64) (float64, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "config %q: expected float, got %q", key, raw)
	}
	return v, nil
}

// SetBool stores a bool as its canonical lower-case text form.
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	if value {
		return s.Set(ctx, key, "true")
	}
	return s.Set(ctx, key, "false")
}

func isNoRows(err error) bool {
	return errors.Is(errors.Cause(err), sql.ErrNoRows)
}
