// Package auth provides the identity layer: who is signed in on this device.
package auth

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/id"
)

// Identity is the contract the sync layer consumes from the identity
// provider. At most one user is signed in at a time.
type Identity interface {
	// SignUp registers a new account and signs it in. Returns the new
	// user id.
	SignUp(ctx context.Context, username, email, password string) (string, error)
	// SignIn authenticates an existing account. Returns the user id.
	SignIn(ctx context.Context, email, password string) (string, error)
	// SignOut ends the current session.
	SignOut(ctx context.Context) error
	// CurrentUserID returns the signed-in user id, or false when signed out.
	CurrentUserID() (string, bool)
}

type account struct {
	userID       string
	username     string
	passwordHash string
}

// Session is an in-process Identity implementation. Account state lives for
// the lifetime of the process; it backs tests and local development, where
// no hosted identity provider is reachable.
type Session struct {
	mu          sync.Mutex
	accounts    map[string]account // keyed by lowercased email
	currentUser string
}

// NewSession creates an empty Session.
func NewSession() *Session {
	return &Session{
		accounts: make(map[string]account),
	}
}

// SignUp registers the account and signs it in.
func (s *Session) SignUp(ctx context.Context, username, email, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", apperrors.Validation(err.Error())
	}

	key := normalizeEmail(email)
	if key == "" {
		return "", apperrors.Validation("email cannot be empty")
	}
	if strings.TrimSpace(username) == "" {
		return "", apperrors.Validation("username cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accounts[key]; taken {
		return "", apperrors.AlreadyExists("an account with this email already exists")
	}

	acct := account{
		userID:       id.NewUUID(),
		username:     strings.TrimSpace(username),
		passwordHash: hash,
	}
	s.accounts[key] = acct
	s.currentUser = acct.userID
	return acct.userID, nil
}

// SignIn authenticates against a stored account.
func (s *Session) SignIn(ctx context.Context, email, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[normalizeEmail(email)]
	if !ok || !VerifyPassword(acct.passwordHash, password) {
		return "", apperrors.InvalidCredentials("wrong email or password")
	}

	s.currentUser = acct.userID
	return acct.userID, nil
}

// SignOut clears the current session. Signing out while signed out is a no-op.
func (s *Session) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = ""
	return nil
}

// CurrentUserID returns the signed-in user id.
func (s *Session) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUser, s.currentUser != ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
