// Package store defines the ledger persistence interface. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing).
//
// The one concurrency primitive the rest of the system depends on is
// ConditionalPut: a write commits only if the caller's expected revision
// still matches the stored revision. Racing writers for the same user
// serialize at that boundary; no in-process locks are needed above it.
package store

import (
	"context"
	"errors"

	"github.com/hafeefas/investment-simulator/internal/model"
)

var (
	// ErrLedgerNotFound is returned when no ledger exists for a user.
	ErrLedgerNotFound = errors.New("store: ledger not found")

	// ErrLedgerExists is returned when creating a ledger for a user that
	// already has one.
	ErrLedgerExists = errors.New("store: ledger already exists")

	// ErrRevisionConflict is returned by ConditionalPut when the stored
	// revision no longer matches the expected one. The caller must re-read
	// and recompute.
	ErrRevisionConflict = errors.New("store: revision conflict")
)

// Store is the ledger persistence interface. One document per user, written
// atomically: balance, holdings, and transaction history commit together.
type Store interface {
	// Get returns the current ledger for a user. The returned value is
	// private to the caller; mutating it does not affect stored state.
	Get(ctx context.Context, userID string) (*model.Ledger, error)

	// Create persists a fresh ledger. Fails with ErrLedgerExists if the
	// user already has one.
	Create(ctx context.Context, l *model.Ledger) error

	// ConditionalPut replaces the stored ledger iff the stored revision
	// equals expectedRevision. The ledger's own Revision field carries the
	// new value. Fails with ErrRevisionConflict on mismatch and with
	// ErrLedgerNotFound if no document exists.
	ConditionalPut(ctx context.Context, l *model.Ledger, expectedRevision int64) error
}
