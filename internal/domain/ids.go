package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewEntityID returns a fresh id for a task, change request or history entry.
func NewEntityID() string {
	return uuid.NewString()
}

// NewOperationID returns a lexically sortable id for a pending operation.
func NewOperationID(at time.Time) string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String())
}
