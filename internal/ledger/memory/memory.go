package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var (
	_ ledger.Store  = (*Store)(nil)
	_ ledger.Pinger = (*Store)(nil)
)

// Store keeps transactions in process memory. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	items map[string]core.Transaction
	order []string // insertion order, used to keep same-day ties stable
}

func New() *Store {
	return &Store{items: make(map[string]core.Transaction)}
}

// NewFromFile seeds the store from a pipe-separated file with lines
// "owner|YYYY-MM-DD|type|amount|description". Blank lines and # comments are skipped,
// as are lines that do not validate.
func NewFromFile(path string) *Store {
	s := New()
	for _, n := range readSeed(path) {
		_, _ = s.Create(context.Background(), n)
	}
	return s
}

func (s *Store) List(_ context.Context, owner string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, id := range s.order {
		if t := s.items[id]; t.Owner == owner {
			out = append(out, t)
		}
	}
	core.SortByDateDesc(out)
	return out, nil
}

// Create stores the transaction and returns a random UUID.
func (s *Store) Create(_ context.Context, n core.NewTransaction) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = n.WithID(id)
	s.order = append(s.order, id)
	return id, nil
}

func (s *Store) Update(_ context.Context, id string, p core.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return ledger.ErrNotFound
	}
	updated, err := p.Apply(t)
	if err != nil {
		return err
	}
	s.items[id] = updated
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return t, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored transactions across all owners.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func readSeed(path string) []core.NewTransaction {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.NewTransaction
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		n, err := parseSeedLine(line)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func parseSeedLine(line string) (core.NewTransaction, error) {
	parts := strings.SplitN(line, "|", 5)
	if len(parts) != 5 {
		return core.NewTransaction{}, fmt.Errorf("seed line needs 5 fields, got %d", len(parts))
	}
	date, err := core.ParseDate(parts[1])
	if err != nil {
		return core.NewTransaction{}, err
	}
	typ, err := core.ParseTransactionType(parts[2])
	if err != nil {
		return core.NewTransaction{}, err
	}
	amount, err := core.ParseAmount(parts[3])
	if err != nil {
		return core.NewTransaction{}, err
	}
	return core.NewTransaction{
		Owner:       auth.NormalizeEmail(parts[0]), // matches session emails
		Date:        date,
		Type:        typ,
		Amount:      amount,
		Description: strings.TrimSpace(parts[4]),
	}, nil
}
