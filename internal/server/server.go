// Package server is a development contents API that serves board documents
// out of local git repositories. The remote client talks to it exactly as it
// talks to a hosted repository.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/infra/gitstore"
)

const logCategory = "server"

// Config for the HTTP handler.
type Config struct {
	Logger domain.Logger
	Root   string   // Directory holding one bare repository per owner/repo
	Repos  []string // owner/repo pairs created at startup
	Auth   AuthConfig
}

type apiErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// apiError is the error envelope written for every failure.
type apiError struct {
	status int
	apiErrorBody
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, apiErrorBody: apiErrorBody{Message: message, Status: status}}
}

// handleError maps store errors onto contents API statuses.
func handleError(err error) huma.StatusError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "Not Found")
	case errors.Is(err, domain.ErrConflict):
		return newAPIError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCodec), errors.Is(err, domain.ErrValidation):
		return newAPIError(http.StatusBadRequest, err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "internal error")
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// repos caches opened repositories by owner/repo.
type repos struct {
	open map[string]*gitstore.Store
	root string
	mu   sync.Mutex
}

func (r *repos) get(owner, repo string) (*gitstore.Store, error) {
	key := owner + "/" + repo
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.open[key]; ok {
		return s, nil
	}
	s, err := gitstore.Open(gitstore.RepoPath(r.root, owner, repo))
	if err != nil {
		return nil, err
	}
	r.open[key] = s
	return s, nil
}

func (r *repos) init(owner, repo string) error {
	s, err := gitstore.Init(gitstore.RepoPath(r.root, owner, repo))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.open[owner+"/"+repo] = s
	r.mu.Unlock()
	return nil
}

// New returns an HTTP handler exposing the contents API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = domain.NopLogger{}
	}
	store := &repos{root: cfg.Root, open: make(map[string]*gitstore.Store)}
	for _, full := range cfg.Repos {
		owner, repo, ok := splitRepo(full)
		if !ok {
			return nil, fmt.Errorf("%w: repository must be owner/repo, got %q", domain.ErrValidation, full)
		}
		if err := store.init(owner, repo); err != nil {
			return nil, fmt.Errorf("init %s: %w", full, err)
		}
		cfg.Logger.Info(logCategory, "serving "+full)
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, _ ...error) huma.StatusError {
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(cfg.Auth))

	hcfg := huma.DefaultConfig("boardsync contents API", "1.0.0")
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerHealth(api)
	registerRepository(api, store)
	registerCommits(api, store)
	registerContents(router, store, cfg.Logger)

	return router, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type repoPath struct {
	Owner string `path:"owner"`
	Repo  string `path:"repo"`
}

// RepositoryResponse is the probe payload.
type RepositoryResponse struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

func registerRepository(api huma.API, store *repos) {
	huma.Register(api, huma.Operation{
		OperationID: "get-repository",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}",
		Summary:     "Get repository",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *repoPath) (*struct {
		Body RepositoryResponse `json:"body"`
	}, error) {
		if _, err := store.get(input.Owner, input.Repo); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RepositoryResponse `json:"body"`
		}{Body: RepositoryResponse{FullName: input.Owner + "/" + input.Repo, DefaultBranch: "main"}}, nil
	})
}

// CommitResponse is one entry of the commit listing.
type CommitResponse struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Date    string `json:"date"`
}

func registerCommits(api huma.API, store *repos) {
	huma.Register(api, huma.Operation{
		OperationID: "list-commits",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/commits",
		Summary:     "List commits on a branch",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Owner   string `path:"owner"`
		Repo    string `path:"repo"`
		Branch  string `query:"sha" default:"main"`
		PerPage int    `query:"per_page" default:"30" minimum:"1" maximum:"100"`
	}) (*struct {
		Body []CommitResponse `json:"body"`
	}, error) {
		s, err := store.get(input.Owner, input.Repo)
		if err != nil {
			return nil, handleError(err)
		}
		revs, err := s.Log(input.Branch, input.PerPage)
		if err != nil {
			return nil, handleError(err)
		}
		commits := make([]CommitResponse, 0, len(revs))
		for _, r := range revs {
			commits = append(commits, CommitResponse{SHA: r.Hash, Message: r.Message, Date: r.When.UTC().Format("2006-01-02T15:04:05Z")})
		}
		return &struct {
			Body []CommitResponse `json:"body"`
		}{Body: commits}, nil
	})
}

// splitRepo parses an owner/repo pair.
func splitRepo(full string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}
