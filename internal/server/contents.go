package server

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/runoshun/boardsync/internal/codec"
	"github.com/runoshun/boardsync/internal/domain"
)

// lineWidth matches the wrapping hosted contents APIs apply to base64 bodies.
const lineWidth = 60

type contentBody struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha"`
}

type putResult struct {
	Content struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
}

// registerContents mounts the file endpoints on the router directly because
// file paths span several segments.
func registerContents(router chi.Router, store *repos, logger domain.Logger) {
	router.Get("/repos/{owner}/{repo}/contents/*", func(w http.ResponseWriter, r *http.Request) {
		s, err := store.get(chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		file := filePath(r)
		branch := r.URL.Query().Get("ref")
		if branch == "" {
			branch = "main"
		}
		data, sha, err := s.Get(branch, file)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		respondJSON(w, http.StatusOK, contentBody{
			Type:     "file",
			Encoding: "base64",
			Path:     file,
			SHA:      sha,
			Content:  wrapLines(string(codec.Wrap(data)), lineWidth),
		})
	})

	router.Put("/repos/{owner}/{repo}/contents/*", func(w http.ResponseWriter, r *http.Request) {
		owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
		s, err := store.get(owner, repo)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		var body putBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "invalid JSON body"))
			return
		}
		if strings.TrimSpace(body.Message) == "" {
			respondStatusError(w, newAPIError(http.StatusUnprocessableEntity, "message is required"))
			return
		}
		data, err := codec.Unwrap([]byte(body.Content))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		if body.Branch == "" {
			body.Branch = "main"
		}
		file := filePath(r)
		sha, err := s.Put(body.Branch, file, data, body.SHA, body.Message)
		if err != nil {
			logger.Warn(logCategory, "rejected write to "+owner+"/"+repo+":"+file+": "+err.Error())
			respondStatusError(w, handleError(err))
			return
		}
		logger.Info(logCategory, "wrote "+owner+"/"+repo+"@"+body.Branch+":"+file+" "+sha)

		status := http.StatusOK
		if body.SHA == "" {
			status = http.StatusCreated
		}
		var res putResult
		res.Content.Path, res.Content.SHA = file, sha
		respondJSON(w, status, res)
	})
}

func filePath(r *http.Request) string {
	return strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
}

func wrapLines(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}
