package store

import apperrors "github.com/couchclub/couchclub-sync/internal/errors"

// Sentinel errors. These carry domain error codes so callers can match them
// with errors.Is across package boundaries.
var (
	ErrNotFound      = apperrors.NotFound("record not found")
	ErrAlreadyExists = apperrors.AlreadyExists("record already exists")
)
