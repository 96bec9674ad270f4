package backend

import (
	"context"

	"fintrack/internal/config"
	"fintrack/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the store instance and its cleanup function.
type StoreResult struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Memory specific; empty starts with no transactions
	MemorySeedFile string

	// Publisher; empty AMQPURL disables mirror notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror, worker only
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = config.BackendMemory
	SQLiteBackend   BackendType = config.BackendSQLite
	PostgresBackend BackendType = config.BackendPostgres
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Shared reports whether separate processes see the same data through bt.
func (bt BackendType) Shared() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}
