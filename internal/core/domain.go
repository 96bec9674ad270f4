package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxDescriptionLength bounds a transaction description in bytes.
const MaxDescriptionLength = 200

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single dated monetary movement owned by one user.
	Transaction struct {
		ID          string
		Date        Date
		Description string
		Amount      Money
		Type        TransactionType
		Owner       string // user email
	}

	// NewTransaction is the create payload; the store assigns the ID.
	NewTransaction struct {
		Date        Date
		Description string
		Amount      Money
		Type        TransactionType
		Owner       string
	}

	// TransactionPatch carries the mutable fields of a transaction. Nil fields are left as-is.
	TransactionPatch struct {
		Date        *Date
		Description *string
		Amount      *Money
		Type        *TransactionType
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyOwner         = errors.New("empty owner")
	ErrEmptyPatch         = errors.New("patch has no fields")
)

// IsValid reports whether t is income or expense.
func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType normalizes user input ("Income", " expense ") into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the calendar month
func (d Date) Month() time.Month {
	return d.Time.Month()
}

// Year returns the calendar year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Owner) == "" {
		return ErrEmptyOwner
	}
	return nil
}

// Validate checks the payload the same way a stored Transaction is checked.
func (n NewTransaction) Validate() error {
	return n.WithID("").Validate()
}

// WithID returns the stored form of the payload.
func (n NewTransaction) WithID(id string) Transaction {
	return Transaction{
		ID:          id,
		Date:        n.Date,
		Description: strings.TrimSpace(n.Description),
		Amount:      n.Amount,
		Type:        n.Type,
		Owner:       strings.TrimSpace(n.Owner),
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil && p.Type == nil
}

// Apply returns a copy of t with the patch applied and validated. t is not modified.
func (p TransactionPatch) Apply(t Transaction) (Transaction, error) {
	if p.IsEmpty() {
		return t, ErrEmptyPatch
	}
	out := t
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Description != nil {
		out.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if err := out.Validate(); err != nil {
		return t, err
	}
	return out, nil
}
