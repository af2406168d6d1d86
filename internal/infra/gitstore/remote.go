package gitstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/runoshun/boardsync/internal/codec"
	"github.com/runoshun/boardsync/internal/domain"
)

// Remote is a RemoteDocumentClient over a repository on the local
// filesystem at <root>/<owner>/<repo>. The credential is not checked.
type Remote struct {
	store *Store
	seed  func() *domain.Document
	root  string
	cfg   domain.SyncConfig
	mu    sync.Mutex
}

var _ domain.RemoteDocumentClient = (*Remote)(nil)

// NewRemote creates a remote for cfg under root. The repository is opened
// lazily so a missing repository surfaces as domain.ErrNotFound from Probe.
func NewRemote(root string, cfg domain.SyncConfig, seed func() *domain.Document) *Remote {
	return &Remote{root: root, cfg: cfg, seed: seed}
}

// RepoPath returns the repository directory for owner/repo under root.
func RepoPath(root, owner, repo string) string {
	return filepath.Join(root, filepath.Base(owner), filepath.Base(repo))
}

func (r *Remote) open(ctx context.Context) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		return r.store, nil
	}
	s, err := Open(RepoPath(r.root, r.cfg.Owner, r.cfg.Repo))
	if err != nil {
		return nil, err
	}
	r.store = s
	return s, nil
}

// Probe checks that the repository exists.
func (r *Remote) Probe(ctx context.Context) error {
	_, err := r.open(ctx)
	return err
}

// Read returns the document at the configured branch and path.
func (r *Remote) Read(ctx context.Context) (*domain.Document, domain.VersionToken, error) {
	s, err := r.open(ctx)
	if err != nil {
		return nil, "", err
	}
	data, hash, err := s.Get(r.cfg.Branch, r.cfg.Path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && r.seed != nil {
			return r.seed(), "", nil
		}
		return nil, "", err
	}
	doc, err := codec.Unmarshal(data)
	if err != nil {
		return nil, "", err
	}
	return doc, domain.VersionToken(hash), nil
}

// Write commits doc if token is still current.
func (r *Remote) Write(ctx context.Context, doc *domain.Document, token domain.VersionToken, message string) (domain.VersionToken, error) {
	s, err := r.open(ctx)
	if err != nil {
		return "", err
	}
	data, err := codec.Marshal(doc)
	if err != nil {
		return "", err
	}
	hash, err := s.Put(r.cfg.Branch, r.cfg.Path, data, string(token), message)
	if err != nil {
		return "", err
	}
	return domain.VersionToken(hash), nil
}
