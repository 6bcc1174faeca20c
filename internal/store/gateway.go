// Package store implements the Store Gateway (§4.1): transactional CRUD
// over conversations, exchanges, and messages; the worker counter; the
// embedding upsert surface; and the read-only query escape hatch tools
// are allowed to use. It is grounded on the teacher's
// pkg/conversations/sqlite package — sqlx over modernc.org/sqlite, the
// same UPSERT-for-idempotence idiom, and the same
// "defer tx.Rollback()" transaction shape, generalized into the
// higher-order transaction(func) helper DESIGN NOTES §9 calls for.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mgreenly/nuagent/internal/logger"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx, letting every
// Gateway operation run either standalone or inside a transaction
// without duplicating its SQL.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Gateway is the Store Gateway. One Gateway wraps one *sqlx.DB; callers
// needing per-goroutine isolation should open their own Gateway against
// the same dbPath (see internal/store.Open), mirroring the teacher's
// per-thread connection convention (DESIGN NOTES §9).
type Gateway struct {
	db *sqlx.DB
}

// New wraps an already-open database handle.
func New(db *sqlx.DB) *Gateway {
	return &Gateway{db: db}
}

// NewWithMigrations opens dbPath and applies migrations before returning.
func NewWithMigrations(ctx context.Context, dbPath string, migrations []Migration) (*Gateway, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if err := NewMigrationRunner(db).Run(ctx, migrations); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return New(db), nil
}

// Close releases the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Tx is a Gateway bound to one open transaction. Every Gateway
// operation is also a Tx method (both satisfy the same querier), so
// orchestrator code calls the identical methods whether or not it's
// inside WithTx.
type Tx struct {
	tx *sqlx.Tx
}

// WithTx opens one transaction, runs fn, and commits on success or
// rolls back on any error/panic — the "transaction(func)" helper of
// DESIGN NOTES §9. A panic inside fn is caught, the transaction rolled
// back, and the panic re-raised so the caller's own recover() (if any)
// still observes it; this is what P1 (atomicity) requires for
// mid-turn cancellation or exceptions.
func (g *Gateway) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	sqlTx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	tx := &Tx{tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.G(ctx).WithError(rbErr).Error("failed to roll back transaction after panic")
			}
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.G(ctx).WithError(rbErr).Error("failed to roll back transaction")
		}
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Rollback explicitly aborts the transaction (used by cancellation
// paths that want to roll back without returning an error from fn).
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "failed to roll back transaction")
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
