package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchclub/couchclub-sync/internal/domain"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
	"github.com/couchclub/couchclub-sync/internal/remote"
	"github.com/couchclub/couchclub-sync/internal/store"
)

type signUpInput struct {
	Username string `validate:"required,min=2,max=40"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// SignUp registers a new account, publishes its profile document, and
// mirrors it locally. A failed profile write rolls the session back so the
// account is never half-created on this device.
func (c *Coordinator) SignUp(ctx context.Context, username, email, password string) (*domain.User, error) {
	in := signUpInput{Username: username, Email: email, Password: password}
	if err := c.validate.Validate(in); err != nil {
		return nil, err
	}

	userID, err := c.identity.SignUp(ctx, username, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	fields := map[string]any{
		"username": username,
		"devices":  []string{},
	}
	if err := c.remote.SetDocument(ctx, remote.CollectionUsers, userID, fields); err != nil {
		if signOutErr := c.identity.SignOut(ctx); signOutErr != nil {
			c.logger.Error("session rollback failed", slog.Any("error", signOutErr))
		}
		return nil, fmt.Errorf("publish user profile: %w", err)
	}

	user := &domain.User{ID: userID, Username: username}
	if err := c.store.Users.Create(ctx, user); err != nil {
		return nil, c.diverged("sign up", err)
	}

	c.logger.Info("user signed up", slog.String("user_id", userID))
	return user, nil
}

// SignIn authenticates and rebuilds the device's local state from the
// remote store.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	userID, err := c.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	user, err := c.EnsureUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if err := c.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore after sign in: %w", err)
	}

	c.logger.Info("user signed in", slog.String("user_id", userID))
	return user, nil
}

// SignOut cancels all listeners, wipes the local store, and ends the
// session. Nothing belonging to the previous user survives.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.listeners.Reset()

	if err := c.store.Reset(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if err := c.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	c.logger.Info("user signed out")
	return nil
}

// EnsureUser returns the local user record, creating a placeholder when the
// id is seen for the first time. The username backfills asynchronously from
// the remote profile, so senders of incoming messages render immediately.
func (c *Coordinator) EnsureUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := c.store.Users.Get(ctx, userID)
	if err == nil {
		if user.Placeholder() {
			go c.backfillUser(userID)
		}
		return user, nil
	}
	if !apperrors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("ensure user %s: %w", userID, err)
	}

	user = &domain.User{ID: userID}
	if err := c.store.Users.Create(ctx, user); err != nil && !apperrors.Is(err, store.ErrAlreadyExists) {
		return nil, fmt.Errorf("ensure user %s: %w", userID, err)
	}

	go c.backfillUser(userID)
	return user, nil
}

// backfillUser fetches the remote profile and fills in the placeholder's
// username. Failures are logged; the next EnsureUser retries.
func (c *Coordinator) backfillUser(userID string) {
	ctx := context.Background()

	doc, err := c.remote.GetDocument(ctx, remote.CollectionUsers, userID)
	if err != nil {
		c.logger.Warn("user profile backfill failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}
	username, ok := doc.String("username")
	if !ok || username == "" {
		return
	}

	user, err := c.store.Users.Get(ctx, userID)
	if err != nil {
		return
	}
	if !user.Placeholder() {
		return
	}
	user.Username = username
	if err := c.store.Users.Update(ctx, user); err != nil {
		c.logger.Warn("user profile backfill failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}
