// Package gitstore provides a versioned content store on Git plumbing and a
// remote document client backed by it.
package gitstore

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/runoshun/boardsync/internal/domain"
)

// Store keeps files on branches of a Git repository without a worktree.
//
// Every Put is one commit on refs/heads/<branch>. The version of a file is
// the hash of its blob at the branch head, so a writer holding a stale hash
// is rejected with domain.ErrConflict.
type Store struct {
	repo   *git.Repository
	now    func() time.Time
	author string
	mu     sync.Mutex
}

// Open opens an existing repository.
func Open(path string) (*Store, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: repository %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open git repository: %w", err)
	}
	return NewWithRepo(repo), nil
}

// Init creates a bare repository at path, or opens it if it already exists.
func Init(path string) (*Store, error) {
	repo, err := git.PlainInit(path, true)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("init git repository: %w", err)
	}
	return NewWithRepo(repo), nil
}

// NewWithRepo creates a Store with an existing repository instance.
func NewWithRepo(repo *git.Repository) *Store {
	return &Store{
		repo:   repo,
		now:    time.Now,
		author: "boardsync",
	}
}

func branchRef(branch string) plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(branch)
}

// Get returns the content of path on branch and its blob hash.
// A missing branch or file wraps domain.ErrNotFound.
func (s *Store) Get(branch, path string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.repo.Reference(branchRef(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, "", fmt.Errorf("%w: branch %s", domain.ErrNotFound, branch)
		}
		return nil, "", fmt.Errorf("resolve branch: %w", err)
	}

	file, err := s.fileAt(ref.Hash(), path)
	if err != nil {
		return nil, "", err
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, "", fmt.Errorf("read blob: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read blob data: %w", err)
	}
	return data, file.Hash.String(), nil
}

// fileAt returns the file at path in the tree of commit.
func (s *Store) fileAt(commitHash plumbing.Hash, path string) (*object.File, error) {
	commit, err := s.repo.CommitObject(commitHash)
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	file, err := tree.File(cleanPath(path))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// Put commits data at path on branch if the file's current blob hash equals
// expected. An empty expected creates the file (and the branch if needed)
// and conflicts if the file already exists. Returns the new blob hash.
func (s *Store) Put(branch, path string, data []byte, expected, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(cleanPath(path), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrValidation)
	}

	oldRef, err := s.repo.Reference(branchRef(branch), true)
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("resolve branch: %w", err)
	}

	var (
		parents  []plumbing.Hash
		baseTree *object.Tree
		current  string
	)
	if oldRef != nil {
		commit, err := s.repo.CommitObject(oldRef.Hash())
		if err != nil {
			return "", fmt.Errorf("get commit: %w", err)
		}
		parents = []plumbing.Hash{commit.Hash}
		if baseTree, err = commit.Tree(); err != nil {
			return "", fmt.Errorf("get tree: %w", err)
		}
		file, err := s.fileAt(commit.Hash, path)
		switch {
		case err == nil:
			current = file.Hash.String()
		case !errors.Is(err, domain.ErrNotFound):
			return "", err
		}
	}
	if current != expected {
		return "", fmt.Errorf("%w: %s is at %q, expected %q", domain.ErrConflict, path, current, expected)
	}

	blobHash, err := s.writeBlob(data)
	if err != nil {
		return "", err
	}
	treeHash, err := s.upsertTree(baseTree, parts, blobHash)
	if err != nil {
		return "", err
	}
	commitHash, err := s.writeCommit(treeHash, parents, message)
	if err != nil {
		return "", err
	}

	newRef := plumbing.NewHashReference(branchRef(branch), commitHash)
	if err := s.repo.Storer.CheckAndSetReference(newRef, oldRef); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return "", fmt.Errorf("%w: branch %s moved", domain.ErrConflict, branch)
		}
		return "", fmt.Errorf("update branch: %w", err)
	}
	return blobHash.String(), nil
}

// Revision is one commit touching the store.
type Revision struct {
	When    time.Time
	Hash    string
	Message string
}

// Log returns up to limit commits on branch, newest first.
func (s *Store) Log(branch string, limit int) ([]Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.repo.Reference(branchRef(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve branch: %w", err)
	}
	iter, err := s.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	defer iter.Close()

	var revs []Revision
	for limit <= 0 || len(revs) < limit {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		revs = append(revs, Revision{Hash: c.Hash.String(), Message: strings.TrimSpace(c.Message), When: c.Author.When})
	}
	return revs, nil
}

// writeBlob writes data to a blob and returns the hash.
func (s *Store) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create blob writer: %w", err)
	}
	if _, writeErr := writer.Write(data); writeErr != nil {
		_ = writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", writeErr)
	}
	_ = writer.Close()

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// upsertTree returns the hash of tree with parts pointing at blob.
// Intermediate directories are created as needed. tree may be nil.
func (s *Store) upsertTree(tree *object.Tree, parts []string, blob plumbing.Hash) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	if tree != nil {
		entries = slices.Clone(tree.Entries)
	}

	name := parts[0]
	idx := slices.IndexFunc(entries, func(e object.TreeEntry) bool { return e.Name == name })

	entry := object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blob}
	if len(parts) > 1 {
		var sub *object.Tree
		if idx >= 0 && entries[idx].Mode == filemode.Dir {
			t, err := s.repo.TreeObject(entries[idx].Hash)
			if err != nil {
				return plumbing.ZeroHash, fmt.Errorf("get subtree %s: %w", name, err)
			}
			sub = t
		}
		subHash, err := s.upsertTree(sub, parts[1:], blob)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entry = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: subHash}
	}

	if idx >= 0 {
		entries[idx] = entry
	} else {
		entries = append(entries, entry)
	}

	// Git orders tree entries as if directory names ended in "/".
	sortKey := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	slices.SortFunc(entries, func(a, b object.TreeEntry) int {
		return strings.Compare(sortKey(a), sortKey(b))
	})

	newTree := &object.Tree{Entries: entries}
	obj := s.repo.Storer.NewEncodedObject()
	if err := newTree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store tree: %w", err)
	}
	return hash, nil
}

func (s *Store) writeCommit(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error) {
	sig := object.Signature{Name: s.author, Email: s.author + "@localhost", When: s.now()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store commit: %w", err)
	}
	return hash, nil
}

func cleanPath(path string) string {
	return strings.Trim(path, "/")
}
