package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/cache"
)

const maxSessions = 10000

// SessionStore keeps sessions in memory until they expire or are revoked.
type SessionStore struct {
	verifier CredentialVerifier
	sessions *cache.LRUCache[Session]
	now      func() time.Time
}

func NewSessionStore(verifier CredentialVerifier, ttl time.Duration) *SessionStore {
	return &SessionStore{
		verifier: verifier,
		sessions: cache.NewLRUCache[Session](maxSessions, ttl),
		now:      time.Now,
	}
}

// Cache exposes the backing cache so it can be registered for periodic cleanup.
func (s *SessionStore) Cache() *cache.LRUCache[Session] {
	return s.sessions
}

// Login verifies the credentials and opens a new session.
func (s *SessionStore) Login(ctx context.Context, email, password string) (Session, error) {
	if err := s.verifier.Verify(ctx, email, password); err != nil {
		slog.WarnContext(ctx, "Login rejected", "component", "auth")
		return Session{}, err
	}
	return s.Create(NormalizeEmail(email))
}

// Create opens a session for email without checking credentials.
func (s *SessionStore) Create(email string) (Session, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}
	sess := Session{Token: token.String(), Email: email, CreatedAt: s.now()}
	s.sessions.Set(sess.Token, sess)
	return sess, nil
}

// Lookup returns the session for token or ErrNoSession.
func (s *SessionStore) Lookup(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	sess, ok := s.sessions.Get(token)
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *SessionStore) Revoke(token string) {
	s.sessions.Delete(token)
}
