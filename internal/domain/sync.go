package domain

import (
	"strings"
	"time"
)

// VersionToken identifies a remote revision of the document. Empty means
// "not yet created".
type VersionToken string

// SyncConfig holds the remote coordinates and credential.
type SyncConfig struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Branch     string `json:"branch"`
	Path       string `json:"path"`
	Credential string `json:"credential"`
}

// IsComplete returns true when every field is set. Partial configuration is
// treated as unconfigured.
func (c SyncConfig) IsComplete() bool {
	for _, v := range []string{c.Owner, c.Repo, c.Branch, c.Path, c.Credential} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// String returns the coordinates without the credential.
func (c SyncConfig) String() string {
	return c.Owner + "/" + c.Repo + "@" + c.Branch + ":" + c.Path
}

// PendingOperation is a locally queued write awaiting remote delivery.
// Fields are ordered to minimize memory padding.
type PendingOperation struct {
	EnqueuedAt time.Time    `json:"enqueuedAt"`
	Document   *Document    `json:"document"`
	ID         string       `json:"id"`
	Summary    string       `json:"summary"`
	BaseToken  VersionToken `json:"baseToken,omitempty"` // token the snapshot was derived from
	Held       bool         `json:"held,omitempty"`      // accepted while auth-blocked; released by reconfiguration
}

// SyncState is the engine lifecycle state.
type SyncState string

const (
	StateUnloaded  SyncState = "unloaded"
	StateLoading   SyncState = "loading"
	StateSynced    SyncState = "synced"
	StateLocalOnly SyncState = "local-only"
	StateError     SyncState = "error"
)

// ConnectivityStatus describes the engine's view of the remote.
type ConnectivityStatus struct {
	Err         error // Last remote failure (nil when synced or unconfigured)
	State       SyncState
	Message     string // User-facing description
	QueueLength int
	AuthBlocked bool // Syncing is blocked until the credential is reconfigured
}

// SaveStatus tags the outcome of a save from the caller's point of view.
// Every tag means the document was accepted locally.
type SaveStatus string

const (
	SaveSuccess  SaveStatus = "synced"   // durably written to the remote
	SaveQueued   SaveStatus = "queued"   // queued for a later sync
	SaveConflict SaveStatus = "conflict" // the merge retry also conflicted; the operation is queued like SaveQueued
	SaveLocal    SaveStatus = "local"    // held locally; sync is auth-blocked until reconfigured
)

// SaveResult is returned by a save. Document is the content now current on
// this client, which is the merged document after a resolved conflict.
type SaveResult struct {
	Document *Document
	Err      error // Remote failure that caused a non-success status
	Status   SaveStatus
}

// FlushResult reports a queue flush.
type FlushResult struct {
	Err       error // Failure that stopped the flush
	Processed int
	Remaining int
}
