package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/couchclub/couchclub-sync/internal/errors"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := apperrors.NotFound("watchlist wl1 not found")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrConflict)

	// Matching survives fmt wrapping.
	wrapped := fmt.Errorf("delete watchlist: %w", err)
	assert.ErrorIs(t, wrapped, apperrors.ErrNotFound)
}

func TestError_WithCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := apperrors.ErrInternal.WithCause(cause)

	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDiverged_CarriesCause(t *testing.T) {
	cause := stderrors.New("badger: transaction conflict")
	err := apperrors.Diverged("add item: local mirror failed", cause)

	assert.ErrorIs(t, err, apperrors.ErrDiverged)
	assert.ErrorIs(t, err, cause)

	var domainErr *apperrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeDiverged, domainErr.Code)
}

func TestValidationWithDetails(t *testing.T) {
	err := apperrors.ValidationWithDetails("validation failed", map[string]string{
		"email": "must be a valid email address",
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var domainErr *apperrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "must be a valid email address", domainErr.Details["email"])
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := apperrors.Wrap(cause, apperrors.CodeInternal, "remote write failed")

	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "remote write failed: connection refused", err.Error())
}
