// Package syncerr holds the shared error taxonomy for the sync engines and the
// ERP adapter. A tiny package of its own so both sides can classify errors
// without importing each other.
package syncerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection marks the ERP or a store as unreachable, including timeouts.
	ErrConnection = errors.New("connection error")
	// ErrDatabase marks a read/write failure against the operational store.
	ErrDatabase = errors.New("database error")
	// ErrValidation marks a malformed record or a missing required join key.
	ErrValidation = errors.New("validation error")
	// ErrSyncConfig marks a missing table/column mapping needed to build a query.
	ErrSyncConfig = errors.New("sync configuration error")
)

// Wrap classifies err under kind with an operation prefix. errors.Is against
// the sentinel keeps working on the result.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}

// Kind reports which sentinel err is classified under, or nil.
func Kind(err error) error {
	switch {
	case errors.Is(err, ErrSyncConfig):
		return ErrSyncConfig
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrConnection):
		return ErrConnection
	case errors.Is(err, ErrDatabase):
		return ErrDatabase
	default:
		return nil
	}
}
