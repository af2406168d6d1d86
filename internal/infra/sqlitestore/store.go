// Package sqlitestore provides a SQLite implementation of domain.LocalStore.
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/infra/crypto"
)

const (
	keyDocument = "document"
	keyConfig   = "config"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS queue (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT NOT NULL UNIQUE,
	payload BLOB NOT NULL
);`

// Store implements domain.LocalStore on a SQLite database file.
type Store struct {
	db         *sql.DB
	obfuscator *crypto.Obfuscator
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db, obfuscator: crypto.Default()}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadDocument returns the stored document, or nil if none was saved.
func (s *Store) LoadDocument() (*domain.Document, error) {
	var doc domain.Document
	found, err := s.getJSON(keyDocument, &doc)
	if err != nil || !found {
		return nil, err
	}
	doc.Normalize()
	return &doc, nil
}

// SaveDocument replaces the stored document.
func (s *Store) SaveDocument(doc *domain.Document) error {
	return s.putJSON(keyDocument, doc)
}

// LoadQueue returns the pending operations in FIFO order.
func (s *Store) LoadQueue() ([]domain.PendingOperation, error) {
	rows, err := s.db.Query(`SELECT payload FROM queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ops := []domain.PendingOperation{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		var op domain.PendingOperation
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("decode queue entry: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// SaveQueue replaces the pending operations in a single transaction.
func (s *Store) SaveQueue(ops []domain.PendingOperation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM queue`); err != nil {
		return fmt.Errorf("clear queue: %w", classify(err))
	}
	for _, op := range ops {
		payload, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("encode queue entry: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO queue (id, payload) VALUES (?, ?)`, op.ID, payload); err != nil {
			return fmt.Errorf("insert queue entry: %w", classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit queue: %w", classify(err))
	}
	return nil
}

// LoadConfig returns the stored sync configuration, or nil if none was saved.
func (s *Store) LoadConfig() (*domain.SyncConfig, error) {
	var cfg domain.SyncConfig
	found, err := s.getJSON(keyConfig, &cfg)
	if err != nil || !found {
		return nil, err
	}
	credential, err := s.obfuscator.Reveal(cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("reveal credential: %w", err)
	}
	cfg.Credential = credential
	return &cfg, nil
}

// SaveConfig stores the sync configuration with the credential obfuscated.
func (s *Store) SaveConfig(cfg domain.SyncConfig) error {
	hidden, err := s.obfuscator.Obscure(cfg.Credential)
	if err != nil {
		return fmt.Errorf("obscure credential: %w", err)
	}
	cfg.Credential = hidden
	return s.putJSON(keyConfig, cfg)
}

func (s *Store) getJSON(key string, out any) (bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, classify(err))
	}
	return nil
}

// classify marks SQLITE_FULL failures as domain.ErrStorageFull.
func classify(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%w: %v", domain.ErrStorageFull, err)
	}
	return err
}

// Ensure Store implements LocalStore.
var _ domain.LocalStore = (*Store)(nil)
