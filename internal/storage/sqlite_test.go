package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTx(owner string, month time.Month, day int, desc string) core.NewTransaction {
	return core.NewTransaction{
		Owner:       owner,
		Date:        core.NewDate(2024, month, day),
		Description: desc,
		Amount:      core.Money{Cents: 1234},
		Type:        core.Expense,
	}
}

func TestSQLiteRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, err := repo.Create(ctx, sampleTx("ana@example.com", time.January, 5, "Groceries"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, _ := repo.Create(ctx, sampleTx("ana@example.com", time.March, 1, "Rent"))
	c, _ := repo.Create(ctx, sampleTx("ana@example.com", time.January, 5, "Pharmacy"))
	_, _ = repo.Create(ctx, sampleTx("bob@example.com", time.June, 1, "Other"))

	list, err := repo.List(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{b, a, c}
	if len(list) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("row %d: expected %s, got %s", i, id, list[i].ID)
		}
	}

	got, err := repo.Get(ctx, a)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 1234 || got.Date.String() != "2024-01-05" || got.Type != core.Expense {
		t.Fatalf("unexpected row %+v", got)
	}

	income := core.Income
	if err := repo.Update(ctx, a, core.TransactionPatch{Type: &income}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := repo.Get(ctx, a); got.Type != core.Income || got.Description != "Groceries" {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.Delete(ctx, b); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, b); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, b); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	empty := ""
	if err := repo.Update(ctx, "missing", core.TransactionPatch{Description: &empty}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing row, got %v", err)
	}
	if err := repo.Update(ctx, a, core.TransactionPatch{Description: &empty}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestSQLiteRepositorySyncTracking(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, sampleTx("ana@example.com", time.May, 2, "Gym"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != id || pending[0].Version != 1 {
		t.Fatalf("unexpected pending %+v err=%v", pending, err)
	}

	if err := repo.MarkSynced(ctx, id, 1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if pending, _ := repo.PendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %+v", pending)
	}

	desc := "Gym membership"
	if err := repo.Update(ctx, id, core.TransactionPatch{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	v, err := repo.Version(ctx, id)
	if err != nil || v != 2 {
		t.Fatalf("expected version 2, got %d err=%v", v, err)
	}
	// A late ack for version 1 must not hide version 2.
	_ = repo.MarkSynced(ctx, id, 1)
	if pending, _ := repo.PendingSync(ctx, 10); len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("expected version 2 pending, got %+v", pending)
	}

	for i := 0; i < ledger.MaxSyncAttempts; i++ {
		if err := repo.MarkSyncError(ctx, id); err != nil {
			t.Fatalf("mark sync error: %v", err)
		}
	}
	if pending, _ := repo.PendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected row to stop retrying, got %+v", pending)
	}

	if _, err := repo.Version(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
