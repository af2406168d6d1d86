package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/infra/contentapi"
)

var boardCfg = domain.SyncConfig{
	Owner:      "acme",
	Repo:       "board",
	Branch:     "main",
	Path:       "data/board.json",
	Credential: "dev-token",
}

func newTestServer(t *testing.T, auth AuthConfig) *httptest.Server {
	t.Helper()
	handler, err := New(Config{Root: t.TempDir(), Repos: []string{"acme/board"}, Auth: auth})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server, cfg domain.SyncConfig) *contentapi.Client {
	return contentapi.New(srv.URL, cfg, 5*time.Second, func() *domain.Document {
		return domain.NewSeedDocument(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), nil)
	})
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Tokens: []string{"dev-token"}})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Probe(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})

	require.NoError(t, newClient(srv, boardCfg).Probe(context.Background()))

	missing := boardCfg
	missing.Repo = "other"
	assert.ErrorIs(t, newClient(srv, missing).Probe(context.Background()), domain.ErrNotFound)
}

func TestServer_ReadWriteRoundTrip(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Tokens: []string{"dev-token"}})
	client := newClient(srv, boardCfg)
	ctx := context.Background()

	doc, token, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "missing file reads as seed")
	assert.Empty(t, doc.Tasks)

	doc.Tasks = append(doc.Tasks, domain.Task{ID: "t1", Name: "議事録まとめ", PlanStatus: domain.PlanTodo, ActualStatus: domain.StatusTodo, Priority: domain.PriorityNormal})
	token, err = client.Write(ctx, doc, "", "Add task")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, readToken, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, readToken)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "議事録まとめ", got.Tasks[0].Name)

	_, err = client.Write(ctx, doc, "", "create again")
	assert.ErrorIs(t, err, domain.ErrConflict)

	got.Tasks[0].Name = "renamed"
	next, err := client.Write(ctx, got, readToken, "Rename")
	require.NoError(t, err)
	assert.NotEqual(t, token, next)

	_, err = client.Write(ctx, got, readToken, "stale")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestServer_RejectsBadCredential(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Tokens: []string{"dev-token"}})

	wrong := boardCfg
	wrong.Credential = "nope"
	assert.ErrorIs(t, newClient(srv, wrong).Probe(context.Background()), domain.ErrAuth)
}

func TestServer_AcceptsMintedJWT(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "s3cret"})
	now := time.Now()

	token, err := MintToken("s3cret", "alice", time.Hour, now)
	require.NoError(t, err)
	cfg := boardCfg
	cfg.Credential = token
	assert.NoError(t, newClient(srv, cfg).Probe(context.Background()))

	forged, err := MintToken("other", "alice", time.Hour, now)
	require.NoError(t, err)
	cfg.Credential = forged
	assert.ErrorIs(t, newClient(srv, cfg).Probe(context.Background()), domain.ErrAuth)

	expired, err := MintToken("s3cret", "alice", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	cfg.Credential = expired
	assert.ErrorIs(t, newClient(srv, cfg).Probe(context.Background()), domain.ErrAuth)
}

func TestMintToken_RequiresSecret(t *testing.T) {
	_, err := MintToken(" ", "alice", 0, time.Now())
	assert.Error(t, err)
}

func TestServer_ListCommits(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := newClient(srv, boardCfg)
	ctx := context.Background()

	doc, _, err := client.Read(ctx)
	require.NoError(t, err)
	token, err := client.Write(ctx, doc, "", "first")
	require.NoError(t, err)
	_, err = client.Write(ctx, doc, token, "second")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/repos/acme/board/commits?sha=main&per_page=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var commits []CommitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&commits))
	require.Len(t, commits, 2)
	assert.Equal(t, "second", commits[0].Message)
	assert.Equal(t, "first", commits[1].Message)
}

func TestServer_PutValidation(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"no message", `{"content":"e30="}`, http.StatusUnprocessableEntity},
		{"bad base64", `{"message":"m","content":"!!"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPut, srv.URL+"/repos/acme/board/contents/board.json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestNew_RejectsBadRepo(t *testing.T) {
	_, err := New(Config{Root: t.TempDir(), Repos: []string{"no-slash"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestWrapLines(t *testing.T) {
	assert.Equal(t, "abc\ndef\ng", wrapLines("abcdefg", 3))
	assert.Equal(t, "abc", wrapLines("abc", 3))
}
