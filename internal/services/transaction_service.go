package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const (
	listCacheSize = 1000
	listCacheTTL  = 5 * time.Minute
)

// Publisher announces writes to the mirror worker.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
	PublishTransactionDelete(ctx context.Context, id, owner string) error
}

// Dashboard is the data behind the summary screen for one month of one year.
type Dashboard struct {
	Year      int
	Month     time.Month // 0 means the whole year
	Summary   core.Summary
	Breakdown []core.ChartSlice
	Monthly   []core.MonthTotals
	Years     []int
}

// TransactionService scopes every operation to the session owner, caches each
// owner's list and notifies the mirror after writes.
type TransactionService struct {
	store     ledger.Store
	publisher Publisher
	lists     *cache.LRUCache[[]core.Transaction]
	now       func() time.Time

	// generations counts writes per owner; a list fetched before a write is not cached.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewTransactionService(store ledger.Store, publisher Publisher) *TransactionService {
	return &TransactionService{
		store:       store,
		publisher:   publisher,
		lists:       cache.NewLRUCache[[]core.Transaction](listCacheSize, listCacheTTL),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// ListCache exposes the list cache so it can be registered for cleanup and reported in metrics.
func (s *TransactionService) ListCache() *cache.LRUCache[[]core.Transaction] {
	return s.lists
}

func listKey(owner string) string {
	return "list:" + owner
}

// List returns every transaction of the session owner, most recent first.
func (s *TransactionService) List(ctx context.Context, sess auth.Session) ([]core.Transaction, error) {
	if cached, ok := s.lists.Get(listKey(sess.Email)); ok {
		return slices.Clone(cached), nil
	}
	gen := s.generation(sess.Email)
	txns, err := s.store.List(ctx, sess.Email)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	s.cacheList(sess.Email, gen, txns)
	return txns, nil
}

// View filters, sorts and summarizes the owner's transactions.
func (s *TransactionService) View(ctx context.Context, sess auth.Session, c core.Criteria) (core.View, error) {
	txns, err := s.List(ctx, sess)
	if err != nil {
		return core.View{}, err
	}
	return core.Apply(txns, c), nil
}

// Dashboard summarizes month of year. A zero year means the current year.
func (s *TransactionService) Dashboard(ctx context.Context, sess auth.Session, month time.Month, year int) (Dashboard, error) {
	txns, err := s.List(ctx, sess)
	if err != nil {
		return Dashboard{}, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	summary := core.Apply(txns, core.Criteria{Month: month, Year: year}).Summary
	return Dashboard{
		Year:      year,
		Month:     month,
		Summary:   summary,
		Breakdown: core.Breakdown(summary),
		Monthly:   core.MonthlySeries(txns, year),
		Years:     core.Years(txns),
	}, nil
}

// Years lists the distinct years with transactions, most recent first.
func (s *TransactionService) Years(ctx context.Context, sess auth.Session) ([]int, error) {
	txns, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	return core.Years(txns), nil
}

// Get returns one transaction. Transactions of other owners are reported as not found.
func (s *TransactionService) Get(ctx context.Context, sess auth.Session, id string) (core.Transaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if t.Owner != sess.Email {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", ledger.ErrNotFound)
	}
	return t, nil
}

// Create stores n for the session owner and announces it to the mirror.
func (s *TransactionService) Create(ctx context.Context, sess auth.Session, n core.NewTransaction) (core.Transaction, error) {
	n.Owner = sess.Email
	if err := n.Validate(); err != nil {
		return core.Transaction{}, err
	}
	id, err := s.store.Create(ctx, n)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.invalidate(sess.Email)

	t := n.WithID(id)
	s.publishSync(ctx, id, 1)
	return t, nil
}

// Update applies p to a transaction of the session owner.
func (s *TransactionService) Update(ctx context.Context, sess auth.Session, id string, p core.TransactionPatch) (core.Transaction, error) {
	if p.IsEmpty() {
		return core.Transaction{}, core.ErrEmptyPatch
	}
	if _, err := s.Get(ctx, sess, id); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Update(ctx, id, p); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.invalidate(sess.Email)

	updated, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("reload transaction: %w", err)
	}
	s.publishSync(ctx, id, s.version(ctx, id))
	return updated, nil
}

// Delete removes a transaction of the session owner.
func (s *TransactionService) Delete(ctx context.Context, sess auth.Session, id string) error {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(sess.Email)

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishTransactionDelete(ctx, id, sess.Email); err != nil {
		// the local delete stands; the orphaned sheet row is left for manual cleanup
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
	return nil
}

// Ping reports whether the store answers, for stores that support it.
func (s *TransactionService) Ping(ctx context.Context) error {
	if p, ok := s.store.(ledger.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *TransactionService) generation(owner string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[owner]
}

// cacheList stores txns unless a write for owner happened since gen was read.
func (s *TransactionService) cacheList(owner string, gen uint64, txns []core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[owner] != gen {
		return
	}
	s.lists.Set(listKey(owner), slices.Clone(txns))
}

func (s *TransactionService) invalidate(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[owner]++
	s.lists.Delete(listKey(owner))
}

func (s *TransactionService) version(ctx context.Context, id string) int64 {
	v, ok := s.store.(ledger.Versioned)
	if !ok {
		return 0
	}
	n, err := v.Version(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read transaction version", "id", id, "error", err)
		return 0
	}
	return n
}

func (s *TransactionService) publishSync(ctx context.Context, id string, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id,
			"version", version,
			"error", err)
	}
}

// Close releases the store and publisher when they hold resources.
func (s *TransactionService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
