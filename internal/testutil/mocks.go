// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/runoshun/boardsync/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.NowTime = m.NowTime.Add(d)
}

// WriteCall records one call to MockRemote.Write.
type WriteCall struct {
	Document *domain.Document
	Token    domain.VersionToken
	Message  string
}

// MockRemote is an in-memory versioned document store implementing
// domain.RemoteDocumentClient. Tokens are "v1", "v2", ... in write order.
// Fields are ordered to minimize memory padding.
type MockRemote struct {
	Doc        *domain.Document // Current remote document (nil = path missing)
	ProbeErr   error            // Returned by every Probe
	ReadErr    error            // Returned by every Read
	WriteErr   error            // Returned by every Write
	WriteErrs  []error          // Returned by successive Writes before WriteErr applies (nil entries pass)
	OnWrite    func(call WriteCall)
	Writes     []WriteCall
	Token      domain.VersionToken
	ProbeCalls int
	ReadCalls  int
	rev        int
	mu         sync.Mutex
}

var _ domain.RemoteDocumentClient = (*MockRemote)(nil)

// NewMockRemote creates an empty remote.
func NewMockRemote() *MockRemote {
	return &MockRemote{}
}

// Put replaces the remote document as another client would and returns the new token.
func (m *MockRemote) Put(doc *domain.Document) domain.VersionToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Doc = doc.Clone()
	return m.bump()
}

// Current returns a copy of the remote document and its token.
func (m *MockRemote) Current() (*domain.Document, domain.VersionToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Doc == nil {
		return nil, m.Token
	}
	return m.Doc.Clone(), m.Token
}

func (m *MockRemote) bump() domain.VersionToken {
	m.rev++
	m.Token = domain.VersionToken(fmt.Sprintf("v%d", m.rev))
	return m.Token
}

// Probe returns ProbeErr.
func (m *MockRemote) Probe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProbeCalls++
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	return m.ProbeErr
}

// Read returns the current document, or a seed with an empty token when missing.
func (m *MockRemote) Read(ctx context.Context) (*domain.Document, domain.VersionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCalls++
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	if m.ReadErr != nil {
		return nil, "", m.ReadErr
	}
	if m.Doc == nil {
		return domain.NewSeedDocument(time.Time{}, nil), "", nil
	}
	return m.Doc.Clone(), m.Token, nil
}

// Write stores doc if token matches the current token.
func (m *MockRemote) Write(ctx context.Context, doc *domain.Document, token domain.VersionToken, message string) (domain.VersionToken, error) {
	m.mu.Lock()
	call := WriteCall{Document: doc.Clone(), Token: token, Message: message}
	m.Writes = append(m.Writes, call)
	hook := m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	if len(m.WriteErrs) > 0 {
		err := m.WriteErrs[0]
		m.WriteErrs = m.WriteErrs[1:]
		if err != nil {
			return "", err
		}
	} else if m.WriteErr != nil {
		return "", m.WriteErr
	}
	current := m.Token
	if m.Doc == nil {
		current = ""
	}
	if token != current {
		return "", fmt.Errorf("%w: token %q is stale (current %q)", domain.ErrConflict, token, current)
	}
	m.Doc = doc.Clone()
	return m.bump(), nil
}

// WriteMessages returns the messages of all recorded writes.
func (m *MockRemote) WriteMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]string, 0, len(m.Writes))
	for _, w := range m.Writes {
		msgs = append(msgs, w.Message)
	}
	return msgs
}

// Factory returns a domain.RemoteFactory that always yields m and records
// the configurations it was called with.
func (m *MockRemote) Factory(configs *[]domain.SyncConfig) domain.RemoteFactory {
	return func(cfg domain.SyncConfig) (domain.RemoteDocumentClient, error) {
		if configs != nil {
			*configs = append(*configs, cfg)
		}
		return m, nil
	}
}

// MockLocalStore is an in-memory domain.LocalStore.
// Fields are ordered to minimize memory padding.
type MockLocalStore struct {
	Doc          *domain.Document
	Config       *domain.SyncConfig
	SaveDocErr   error
	SaveQueueErr error
	LoadErr      error
	Queue        []domain.PendingOperation
	SaveDocCalls int
	mu           sync.Mutex
}

var _ domain.LocalStore = (*MockLocalStore)(nil)

// NewMockLocalStore creates an empty store.
func NewMockLocalStore() *MockLocalStore {
	return &MockLocalStore{}
}

func (m *MockLocalStore) LoadDocument() (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Doc == nil {
		return nil, nil
	}
	return m.Doc.Clone(), nil
}

func (m *MockLocalStore) SaveDocument(doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveDocCalls++
	if m.SaveDocErr != nil {
		return m.SaveDocErr
	}
	m.Doc = doc.Clone()
	return nil
}

func (m *MockLocalStore) LoadQueue() ([]domain.PendingOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return cloneQueue(m.Queue), nil
}

func (m *MockLocalStore) SaveQueue(ops []domain.PendingOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveQueueErr != nil {
		return m.SaveQueueErr
	}
	m.Queue = cloneQueue(ops)
	return nil
}

func (m *MockLocalStore) LoadConfig() (*domain.SyncConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Config == nil {
		return nil, nil
	}
	cfg := *m.Config
	return &cfg, nil
}

func (m *MockLocalStore) SaveConfig(cfg domain.SyncConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Config = &cfg
	return nil
}

// QueueSummaries returns the summaries of the stored queue in order.
func (m *MockLocalStore) QueueSummaries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Queue))
	for _, op := range m.Queue {
		out = append(out, op.Summary)
	}
	return out
}

func cloneQueue(ops []domain.PendingOperation) []domain.PendingOperation {
	out := slices.Clone(ops)
	if out == nil {
		out = []domain.PendingOperation{}
	}
	for i := range out {
		out[i].Document = out[i].Document.Clone()
	}
	return out
}

// CompleteConfig returns a fully populated sync configuration.
func CompleteConfig() domain.SyncConfig {
	return domain.SyncConfig{
		Owner:      "acme",
		Repo:       "board",
		Branch:     "main",
		Path:       "data/board.json",
		Credential: "token",
	}
}
