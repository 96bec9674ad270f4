package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/ledger"
	"fintrack/internal/sheets"
)

// Store is the persistence the worker needs: rows, their versions and sync bookkeeping.
type Store interface {
	ledger.Store
	ledger.SyncTracker
	ledger.Versioned
}

// SyncWorker mirrors stored transactions into the spreadsheet.
type SyncWorker struct {
	store     Store
	mirror    sheets.TransactionMirror
	batchSize int
}

func NewSyncWorker(store Store, mirror sheets.TransactionMirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// Handlers returns the AMQP callbacks backed by w.
func (w *SyncWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		Sync:   w.HandleSyncMessage,
		Delete: w.HandleDeleteMessage,
	}
}

// HandleSyncMessage mirrors the transaction named by msg. Messages older than the
// stored version are skipped, since a newer message is already on its way.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	current, err := w.store.Version(ctx, msg.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		// deleted after the message was published
		return w.remove(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get transaction version: %w", err)
	}
	if msg.Version > 0 && msg.Version < current {
		slog.InfoContext(ctx, "Skipping stale sync message",
			"id", msg.ID,
			"version", msg.Version,
			"current_version", current)
		return nil
	}

	return w.syncTransaction(ctx, msg.ID, current)
}

// HandleDeleteMessage drops a deleted transaction from the mirror.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.TransactionDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message",
		"id", msg.ID,
		"owner", msg.Owner)
	return w.remove(ctx, msg.ID)
}

// ProcessPending syncs up to one batch of rows whose latest version has not
// reached the mirror. It recovers from lost or dropped messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	synced, failed, err := w.reconcile(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if synced+failed > 0 {
		slog.InfoContext(ctx, "Processed pending transactions",
			"synced", synced,
			"errors", failed)
	}
	return nil
}

// StartupSyncCheck runs a larger reconciliation pass when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.reconcile(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) reconcile(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.syncTransaction(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending transaction", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// syncTransaction writes the current row and records version as mirrored. The
// version is read before the row, so the recorded version is never ahead of
// what was written.
func (w *SyncWorker) syncTransaction(ctx context.Context, id string, version int64) error {
	t, err := w.store.Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return w.remove(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	if err := w.mirror.Upsert(ctx, t); err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert to mirror: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id, version); err != nil {
		// the row is in the mirror; the next pass rewrites it harmlessly
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", id,
		"version", version,
		"owner", t.Owner,
		"amount_cents", t.Amount.Cents)
	return nil
}

func (w *SyncWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Removed transaction from mirror", "id", id)
	return nil
}
