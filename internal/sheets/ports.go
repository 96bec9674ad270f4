// Package sheets defines the spreadsheet mirror that receives every stored transaction.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// TransactionMirror keeps one row per transaction.
type TransactionMirror interface {
	// Upsert writes t, replacing the row with the same ID when present.
	Upsert(ctx context.Context, t core.Transaction) error
	// Remove drops the row for id. Removing a missing row is not an error.
	Remove(ctx context.Context, id string) error
}

// Header is the first row of the mirror sheet.
var Header = []any{"ID", "Date", "Type", "Description", "Amount", "Owner"}

// Row renders t in Header order. The amount is written as a plain decimal so the
// sheet can sum it.
func Row(t core.Transaction) []any {
	return []any{t.ID, t.Date.String(), string(t.Type), t.Description, t.Amount.String(), t.Owner}
}
