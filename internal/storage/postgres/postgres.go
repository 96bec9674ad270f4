// Package postgres stores transactions in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var (
	_ ledger.Store       = (*Repository)(nil)
	_ ledger.SyncTracker = (*Repository)(nil)
	_ ledger.Versioned   = (*Repository)(nil)
	_ ledger.Pinger      = (*Repository)(nil)
)

type Repository struct {
	pool *pgxpool.Pool
}

// Open migrates the database and connects a pool to it.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const selectColumns = `id::text, owner, date, description, amount_cents, type`

func (r *Repository) List(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE owner = $1 ORDER BY date DESC, seq ASC`,
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

func (r *Repository) Create(ctx context.Context, n core.NewTransaction) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	t := n.WithID(uuid.NewString())
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (id, owner, date, description, amount_cents, type)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Owner, t.Date.Time, t.Description, t.Amount.Cents, string(t.Type))
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved to PostgreSQL",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t.ID, nil
}

func (r *Repository) Update(ctx context.Context, id string, p core.TransactionPatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return ledger.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := scanTransaction(tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return err
	}
	updated, err := p.Apply(current)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE transactions
		SET date = $2, description = $3, amount_cents = $4, type = $5,
		    version = version + 1, sync_errors = 0, updated_at = now()
		WHERE id = $1`,
		id, updated.Date.Time, updated.Description, updated.Amount.Cents, string(updated.Type))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ledger.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	// A malformed UUID cannot exist; answer without a cast error from the server.
	if _, err := uuid.Parse(id); err != nil {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *Repository) Version(ctx context.Context, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, ledger.ErrNotFound
	}
	var v int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM transactions WHERE id = $1`, id).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ledger.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func (r *Repository) PendingSync(ctx context.Context, limit int) ([]ledger.PendingSync, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, version, updated_at FROM transactions
		WHERE synced_version < version AND sync_errors < $1
		ORDER BY updated_at ASC
		LIMIT $2`, ledger.MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.PendingSync
	for rows.Next() {
		var p ledger.PendingSync
		if err := rows.Scan(&p.ID, &p.Version, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transactions SET synced_version = $2, sync_errors = 0
		WHERE id = $1 AND synced_version < $2`, id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

func (r *Repository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions SET sync_errors = sync_errors + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t    core.Transaction
		date time.Time
		kind string
	)
	err := row.Scan(&t.ID, &t.Owner, &date, &t.Description, &t.Amount.Cents, &kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Date = core.DateOf(date)
	t.Type = core.TransactionType(kind)
	return t, nil
}
