// Package storage persists transactions in SQLite and tracks which rows
// still need to reach the spreadsheet mirror.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const timeLayout = time.RFC3339Nano

var (
	_ ledger.Store       = (*SQLiteRepository)(nil)
	_ ledger.SyncTracker = (*SQLiteRepository)(nil)
	_ ledger.Versioned   = (*SQLiteRepository)(nil)
	_ ledger.Pinger      = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and migrates it.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectColumns = `id, owner, date, description, amount_cents, type`

// List returns the owner's transactions, newest date first, insertion order within a day.
func (r *SQLiteRepository) List(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE owner = ? ORDER BY date DESC, rowid ASC`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, n core.NewTransaction) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	t := n.WithID(uuid.NewString())
	now := r.now().UTC().Format(timeLayout)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner, date, description, amount_cents, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.Date.String(), t.Description, t.Amount.Cents, string(t.Type), now, now)
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t.ID, nil
}

// Update applies p inside a transaction and bumps the row version.
func (r *SQLiteRepository) Update(ctx context.Context, id string, p core.TransactionPatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := scanTransaction(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return err
	}
	updated, err := p.Apply(current)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, description = ?, amount_cents = ?, type = ?,
		    version = version + 1, sync_errors = 0, updated_at = ?
		WHERE id = ?`,
		updated.Date.String(), updated.Description, updated.Amount.Cents, string(updated.Type),
		r.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ?`, id))
}

func (r *SQLiteRepository) Version(ctx context.Context, id string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM transactions WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// PendingSync returns rows whose latest version has not reached the mirror, oldest change first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]ledger.PendingSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, updated_at FROM transactions
		WHERE synced_version < version AND sync_errors < ?
		ORDER BY updated_at ASC
		LIMIT ?`, ledger.MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.PendingSync
	for rows.Next() {
		var (
			p       ledger.PendingSync
			updated string
		)
		if err := rows.Scan(&p.ID, &p.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records that version reached the mirror. Older versions never overwrite newer ones.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET synced_version = ?, sync_errors = 0
		WHERE id = ? AND synced_version < ?`, version, id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_errors = sync_errors + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		date, kind string
	)
	err := row.Scan(&t.ID, &t.Owner, &date, &t.Description, &t.Amount.Cents, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("stored transaction %s: %w", t.ID, err)
	}
	t.Type = core.TransactionType(strings.ToLower(kind))
	return t, nil
}
