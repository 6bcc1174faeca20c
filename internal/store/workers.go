package store

import "context"

// IncrementWorkers bumps the active_workers gauge used by the TUI to
// detect idle (§3 invariant 5). Stored in app_config alongside
// runtime-tunable settings since it is, itself, a single mutable value
// read by multiple concurrent goroutines.
func (g *Gateway) IncrementWorkers(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE app_config SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT), updated_at = CURRENT_TIMESTAMP
		WHERE key = 'active_workers'
	`)
	return StoreErrorf(err, "failed to increment active_workers")
}

// DecrementWorkers clamps the gauge at 0 (§3 invariant 5) — every
// increment must be paired with exactly one decrement on every code
// path (Open Question iv), but the clamp protects the invariant even
// if a caller's bookkeeping slips.
func (g *Gateway) DecrementWorkers(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE app_config
		SET value = CAST(MAX(CAST(value AS INTEGER) - 1, 0) AS TEXT), updated_at = CURRENT_TIMESTAMP
		WHERE key = 'active_workers'
	`)
	return StoreErrorf(err, "failed to decrement active_workers")
}

// WorkersIdle reports whether active_workers == 0.
func (g *Gateway) WorkersIdle(ctx context.Context) (bool, error) {
	var v int64
	err := g.db.GetContext(ctx, &v, `SELECT CAST(value AS INTEGER) FROM app_config WHERE key = 'active_workers'`)
	if err != nil {
		return false, StoreErrorf(err, "failed to read active_workers")
	}
	return v == 0, nil
}
