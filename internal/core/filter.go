package core

import (
	"slices"
	"strings"
	"time"
)

// TypeFilter selects transactions by type; the zero value and TypeAll match both.
type TypeFilter string

const (
	TypeAll     TypeFilter = "all"
	TypeIncome  TypeFilter = TypeFilter(Income)
	TypeExpense TypeFilter = TypeFilter(Expense)
)

// Criteria narrows the transactions shown. The zero value matches everything.
type Criteria struct {
	Query string     // case-insensitive substring of the description
	Type  TypeFilter // "", "all", "income" or "expense"
	Month time.Month // 0 means every month
	Year  int        // 0 means every year
}

// IsAll reports whether c matches every transaction.
func (c Criteria) IsAll() bool {
	return strings.TrimSpace(c.Query) == "" && c.Type.matchesAll() && c.Month == 0 && c.Year == 0
}

func (f TypeFilter) matchesAll() bool {
	return f == "" || f == TypeAll
}

// matcher is Criteria with the query lowered once.
type matcher struct {
	query string
	c     Criteria
}

func (c Criteria) matcher() matcher {
	return matcher{query: strings.ToLower(strings.TrimSpace(c.Query)), c: c}
}

func (m matcher) match(t Transaction) bool {
	if m.query != "" && !strings.Contains(strings.ToLower(t.Description), m.query) {
		return false
	}
	if !m.c.Type.matchesAll() && TransactionType(m.c.Type) != t.Type {
		return false
	}
	if m.c.Month != 0 || m.c.Year != 0 {
		// Unnormalized dates never satisfy a calendar predicate.
		if t.Date.IsZero() {
			return false
		}
		if m.c.Month != 0 && t.Date.Month() != m.c.Month {
			return false
		}
		if m.c.Year != 0 && t.Date.Year() != m.c.Year {
			return false
		}
	}
	return true
}

// Match reports whether t satisfies every predicate of c.
func (c Criteria) Match(t Transaction) bool {
	return c.matcher().match(t)
}

// Filter returns the transactions matching c, most recent first. Transactions on
// the same date keep their input order. txns is never modified.
func Filter(txns []Transaction, c Criteria) []Transaction {
	m := c.matcher()
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if m.match(t) {
			out = append(out, t)
		}
	}
	SortByDateDesc(out)
	return out
}

// SortByDateDesc orders txns in place, most recent first, keeping ties stable.
func SortByDateDesc(txns []Transaction) {
	slices.SortStableFunc(txns, func(a, b Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})
}

// Apply filters, sorts and summarizes txns.
func Apply(txns []Transaction, c Criteria) View {
	filtered := Filter(txns, c)
	return View{Transactions: filtered, Summary: Summarize(filtered)}
}

// Years returns the distinct years present in txns, most recent first.
func Years(txns []Transaction) []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, t := range txns {
		if t.Date.IsZero() {
			continue
		}
		y := t.Date.Year()
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	slices.Sort(years)
	slices.Reverse(years)
	return years
}
