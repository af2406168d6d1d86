// Package jsonstore provides a JSON file-based implementation of domain.LocalStore.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/infra/crypto"
)

// storeData represents the JSON file structure.
// Fields are ordered to minimize memory padding.
type storeData struct {
	Document *domain.Document          `json:"document"`
	Config   *domain.SyncConfig        `json:"config,omitempty"` // credential obfuscated
	Queue    []domain.PendingOperation `json:"queue"`
}

// Store implements domain.LocalStore using a single JSON file.
type Store struct {
	obfuscator *crypto.Obfuscator
	path       string
	lockPath   string
}

// New creates a new Store for the given file path.
// The file does not need to exist; it will be created on first write.
func New(path string) *Store {
	return &Store{
		obfuscator: crypto.Default(),
		path:       path,
		lockPath:   path + ".lock",
	}
}

// LoadDocument returns the stored document, or nil if none was saved.
func (s *Store) LoadDocument() (*domain.Document, error) {
	var doc *domain.Document
	err := s.withLock(func(data *storeData) error {
		doc = data.Document
		return nil
	})
	if doc != nil {
		doc.Normalize()
	}
	return doc, err
}

// SaveDocument replaces the stored document.
func (s *Store) SaveDocument(doc *domain.Document) error {
	return s.withLockWrite(func(data *storeData) error {
		data.Document = doc
		return nil
	})
}

// LoadQueue returns the pending operations in FIFO order.
func (s *Store) LoadQueue() ([]domain.PendingOperation, error) {
	var ops []domain.PendingOperation
	err := s.withLock(func(data *storeData) error {
		ops = data.Queue
		return nil
	})
	if ops == nil {
		ops = []domain.PendingOperation{} // Return empty slice, not nil
	}
	return ops, err
}

// SaveQueue replaces the pending operations.
func (s *Store) SaveQueue(ops []domain.PendingOperation) error {
	return s.withLockWrite(func(data *storeData) error {
		data.Queue = ops
		return nil
	})
}

// LoadConfig returns the stored sync configuration, or nil if none was saved.
func (s *Store) LoadConfig() (*domain.SyncConfig, error) {
	var cfg *domain.SyncConfig
	err := s.withLock(func(data *storeData) error {
		if data.Config == nil {
			return nil
		}
		c := *data.Config
		credential, err := s.obfuscator.Reveal(c.Credential)
		if err != nil {
			return fmt.Errorf("reveal credential: %w", err)
		}
		c.Credential = credential
		cfg = &c
		return nil
	})
	return cfg, err
}

// SaveConfig stores the sync configuration with the credential obfuscated.
func (s *Store) SaveConfig(cfg domain.SyncConfig) error {
	hidden, err := s.obfuscator.Obscure(cfg.Credential)
	if err != nil {
		return fmt.Errorf("obscure credential: %w", err)
	}
	cfg.Credential = hidden
	return s.withLockWrite(func(data *storeData) error {
		data.Config = &cfg
		return nil
	})
}

// withLock executes fn with a shared (read) lock.
func (s *Store) withLock(fn func(*storeData) error) error {
	lock, err := s.acquireLock(syscall.LOCK_SH)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	data, err := s.read()
	if err != nil {
		return err
	}

	return fn(data)
}

// withLockWrite executes fn with an exclusive (write) lock and writes the result.
func (s *Store) withLockWrite(fn func(*storeData) error) error {
	lock, err := s.acquireLock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)

	data, err := s.read()
	if err != nil {
		return err
	}

	if err := fn(data); err != nil {
		return err
	}

	return s.write(data)
}

func (s *Store) acquireLock(lockType int) (*os.File, error) {
	// Ensure lock file directory exists
	dir := filepath.Dir(s.lockPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return lock, nil
}

func (s *Store) releaseLock(lock *os.File) {
	_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
	_ = lock.Close()
}

// read returns empty data when the file does not exist yet.
func (s *Store) read() (*storeData, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &storeData{}, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var data storeData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}

	return &data, nil
}

func (s *Store) write(data *storeData) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store data: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", classify(err))
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up
		return fmt.Errorf("rename temp file: %w", classify(err))
	}

	return nil
}

// classify marks out-of-space and quota failures as domain.ErrStorageFull.
func classify(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %v", domain.ErrStorageFull, err)
	}
	return err
}

// Ensure Store implements LocalStore.
var _ domain.LocalStore = (*Store)(nil)
