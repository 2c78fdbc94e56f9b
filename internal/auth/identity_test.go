package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchclub/couchclub-sync/internal/auth"
	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
)

func TestSession_SignUpAndSignIn(t *testing.T) {
	s := auth.NewSession()
	ctx := context.Background()

	userID, err := s.SignUp(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	// Sign-up leaves the account signed in.
	current, ok := s.CurrentUserID()
	require.True(t, ok)
	require.Equal(t, userID, current)

	require.NoError(t, s.SignOut(ctx))
	_, ok = s.CurrentUserID()
	require.False(t, ok)

	// Email matching is case-insensitive.
	signedIn, err := s.SignIn(ctx, "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, userID, signedIn)
}

func TestSession_SignUp_DuplicateEmail(t *testing.T) {
	s := auth.NewSession()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = s.SignUp(ctx, "alice2", "alice@example.com", "other")
	require.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestSession_SignUp_Validation(t *testing.T) {
	s := auth.NewSession()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice", "alice@example.com", "")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = s.SignUp(ctx, "", "alice@example.com", "hunter22")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = s.SignUp(ctx, "alice", "   ", "hunter22")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSession_SignIn_WrongCredentials(t *testing.T) {
	s := auth.NewSession()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, s.SignOut(ctx))

	_, err = s.SignIn(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = s.SignIn(ctx, "nobody@example.com", "hunter22")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, ok := s.CurrentUserID()
	require.False(t, ok)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$")

	require.True(t, auth.VerifyPassword(hash, "hunter22"))
	require.False(t, auth.VerifyPassword(hash, "hunter23"))
	require.False(t, auth.VerifyPassword("garbage", "hunter22"))
}
