// Package auth verifies credentials and tracks signed-in sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("no active session")
)

// Session identifies the signed-in user. Transactions are owned by Email.
type Session struct {
	Token     string
	Email     string
	CreatedAt time.Time
}

// CredentialVerifier checks an email/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) error
}

// StaticVerifier checks passwords against a fixed set of bcrypt hashes.
type StaticVerifier struct {
	hashes map[string][]byte
}

var _ CredentialVerifier = (*StaticVerifier)(nil)

// placeholderHash keeps unknown emails on the same bcrypt path as known ones.
var placeholderHash, _ = bcrypt.GenerateFromPassword([]byte("fintrack-placeholder"), bcrypt.MinCost)

// NewStaticVerifier parses "email:bcrypt-hash" entries. Emails are matched case-insensitively.
func NewStaticVerifier(entries []string) (*StaticVerifier, error) {
	v := &StaticVerifier{hashes: make(map[string][]byte, len(entries))}
	for i, entry := range entries {
		email, hash, ok := strings.Cut(strings.TrimSpace(entry), ":")
		email = NormalizeEmail(email)
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("user entry %d: expected email:bcrypt-hash", i+1)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("user entry %d (%s): %w", i+1, email, err)
		}
		v.hashes[email] = []byte(hash)
	}
	return v, nil
}

func (v *StaticVerifier) Verify(_ context.Context, email, password string) error {
	hash, ok := v.hashes[NormalizeEmail(email)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(placeholderHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Len returns the number of configured users.
func (v *StaticVerifier) Len() int {
	return len(v.hashes)
}

// NormalizeEmail lowercases and trims an email so it can be used as an owner key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
