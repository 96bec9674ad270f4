// Package backend builds the store, publisher and mirror selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/services"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/storage/postgres"
	"fintrack/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryStore(config), nil
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case PostgresBackend:
		return f.createPostgresStore(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryStore(config Config) *StoreResult {
	var store *memory.Store
	if config.MemorySeedFile != "" {
		store = memory.NewFromFile(config.MemorySeedFile)
	} else {
		store = memory.New()
	}

	f.logger.Info("Initialized memory backend",
		"seed_file", config.MemorySeedFile,
		"transactions", store.Len())

	return &StoreResult{Store: store, Cleanup: func() error { return nil }}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &StoreResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresStore(ctx context.Context, config Config) (*StoreResult, error) {
	repo, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")
	return &StoreResult{Store: repo, Cleanup: repo.Close}, nil
}

// CreateWorkerStore creates a store that also tracks mirror sync state.
func (f *DefaultFactory) CreateWorkerStore(ctx context.Context, config Config) (worker.Store, CleanupFunc, error) {
	if !config.Type.Shared() {
		return nil, nil, fmt.Errorf("backend %q cannot be shared with the sync worker", config.Type)
	}
	res, err := f.CreateStore(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	store, ok := res.Store.(worker.Store)
	if !ok {
		_ = res.Cleanup()
		return nil, nil, fmt.Errorf("backend %q does not track sync state", config.Type)
	}
	return store, res.Cleanup, nil
}

// NewPublisher connects the mirror publisher. It returns a nil Publisher when
// AMQP is not configured or the broker is unreachable, so writes still succeed.
func (f *DefaultFactory) NewPublisher(config Config) services.Publisher {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, mirror notifications disabled")
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// NewConsumer connects the AMQP client the worker consumes from.
func (f *DefaultFactory) NewConsumer(config Config) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		return nil, errors.New("AMQP URL is required")
	}
	return amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
}

// NewMirror creates the Google Sheets mirror and makes sure its header row exists.
func (f *DefaultFactory) NewMirror(ctx context.Context, config Config) (*gsheet.Client, error) {
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare Google Sheets header: %w", err)
	}
	f.logger.Info("Initialized Google Sheets mirror",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return client, nil
}
