// Package ledger defines the persistence collaborator for transactions.
package ledger

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

// MaxSyncAttempts is how many failed mirror syncs a row gets before it is left alone.
const MaxSyncAttempts = 5

// ErrNotFound is returned when no transaction has the requested ID.
var ErrNotFound = errors.New("transaction not found")

// Ports for outbound adapters.
type (
	// Store is implemented by every backend.
	Store interface {
		// List returns the owner's transactions, most recent first.
		List(ctx context.Context, owner string) ([]core.Transaction, error)
		// Create stores a validated transaction and returns its new ID.
		Create(ctx context.Context, n core.NewTransaction) (id string, err error)
		Update(ctx context.Context, id string, p core.TransactionPatch) error
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (core.Transaction, error)
	}

	// SyncTracker is implemented by backends that remember which rows reached the mirror.
	SyncTracker interface {
		PendingSync(ctx context.Context, limit int) ([]PendingSync, error)
		MarkSynced(ctx context.Context, id string, version int64) error
		MarkSyncError(ctx context.Context, id string) error
	}

	// Versioned is implemented by backends that bump a version on every write.
	Versioned interface {
		Version(ctx context.Context, id string) (int64, error)
	}

	// Pinger reports backend liveness for readiness checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// PendingSync is the minimal data needed to enqueue a mirror sync.
type PendingSync struct {
	ID        string
	Version   int64
	UpdatedAt time.Time
}
