package domain

import "errors"

// Sync errors. Remote clients wrap one of these at the transport boundary so
// callers classify failures with errors.Is, never by message text.
var (
	ErrAuth          = errors.New("authentication failed")
	ErrNotFound      = errors.New("repository or branch not found")
	ErrConflict      = errors.New("document was modified concurrently")
	ErrNetwork       = errors.New("network error")
	ErrCodec         = errors.New("malformed document payload")
	ErrValidation    = errors.New("invalid document")
	ErrStorageFull   = errors.New("local storage is full")
	ErrNotConfigured = errors.New("remote sync not configured")
)

// Board errors.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrRequestNotFound   = errors.New("change request not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrEmptyActor        = errors.New("actor cannot be empty")
	ErrEmptyName         = errors.New("task name cannot be empty")
	ErrNoFieldsToUpdate  = errors.New("no fields to update")
	ErrEmptyDescription  = errors.New("description cannot be empty")
)

// ErrorKind returns a short tag for the sync error class of err,
// or "unexpected" if err is not one of the sync errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrCodec):
		return "codec"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrStorageFull):
		return "storage-full"
	case errors.Is(err, ErrNotConfigured):
		return "not-configured"
	default:
		return "unexpected"
	}
}

// IsTransient reports whether a failed remote operation is worth retrying later.
// Auth, not-found, codec and validation failures need user action first.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrAuth) &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrCodec) &&
		!errors.Is(err, ErrValidation)
}
