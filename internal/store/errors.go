package store

import "github.com/pkg/errors"

// Sentinel error kinds per §7. Callers use errors.Is/errors.Cause from
// github.com/pkg/errors to recover the kind from a wrapped error.
var (
	// ErrInvalidArgument marks a caller-side programming mistake (bad id, empty field).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStore marks a SQL-level failure; the caller's transaction must roll back.
	ErrStore = errors.New("store error")
	// ErrNotFound marks a lookup that found no matching row.
	ErrNotFound = errors.New("not found")
)

// InvalidArgument wraps ErrInvalidArgument with a message.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// StoreErrorf wraps ErrStore with a message.
func StoreErrorf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(errors.Wrap(err, ErrStore.Error()), format, args...)
}
