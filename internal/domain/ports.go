package domain

import (
	"context"
	"time"
)

// RemoteDocumentClient is the thin boundary to the versioned remote store.
// Implementations never retry; they wrap ErrAuth, ErrNotFound, ErrConflict,
// ErrNetwork or ErrCodec so callers can classify failures.
type RemoteDocumentClient interface {
	// Probe verifies that the coordinates and credential resolve to an accessible repository.
	Probe(ctx context.Context) error

	// Read fetches the document. When the path does not exist yet it returns a
	// seed document and an empty token.
	Read(ctx context.Context) (*Document, VersionToken, error)

	// Write stores doc if token still matches the path's current version.
	// An empty token creates the path and conflicts if it already exists.
	Write(ctx context.Context, doc *Document, token VersionToken, message string) (VersionToken, error)
}

// RemoteFactory builds a remote client for a complete configuration.
type RemoteFactory func(cfg SyncConfig) (RemoteDocumentClient, error)

// LocalStore is durable client-side persistence. It holds no business logic.
// Write failures caused by a full disk wrap ErrStorageFull.
type LocalStore interface {
	// LoadDocument returns the last-known-good document, or nil if none was saved.
	LoadDocument() (*Document, error)

	// SaveDocument replaces the stored document.
	SaveDocument(doc *Document) error

	// LoadQueue returns the pending operations in FIFO order.
	LoadQueue() ([]PendingOperation, error)

	// SaveQueue replaces the pending operations.
	SaveQueue(ops []PendingOperation) error

	// LoadConfig returns the stored sync configuration, or nil if none was saved.
	LoadConfig() (*SyncConfig, error)

	// SaveConfig stores the sync configuration with the credential obfuscated.
	SaveConfig(cfg SyncConfig) error
}

// SyncEngine is the document lifecycle the use cases drive.
type SyncEngine interface {
	Load(ctx context.Context) (*Document, ConnectivityStatus, error)
	Document() *Document
	Status() ConnectivityStatus
	Queue() ([]PendingOperation, error)
	Save(ctx context.Context, doc *Document, message string) (SaveResult, error)
	Mutate(ctx context.Context, fn func(doc *Document) error, message string) (SaveResult, error)
	FlushQueue(ctx context.Context) (FlushResult, error)
	Reconfigure(cfg SyncConfig) error
}

// Logger writes operational log lines.
type Logger interface {
	Debug(category, msg string)
	Info(category, msg string)
	Warn(category, msg string)
	Error(category, msg string)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, string) {}
func (NopLogger) Info(string, string)  {}
func (NopLogger) Warn(string, string)  {}
func (NopLogger) Error(string, string) {}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
