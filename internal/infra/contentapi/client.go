// Package contentapi implements the remote document client over a
// repository contents REST API (GitHub-compatible).
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/runoshun/boardsync/internal/codec"
	"github.com/runoshun/boardsync/internal/domain"
)

// Client reads and writes the board document through the contents API.
// It never retries.
type Client struct {
	HTTPClient *http.Client
	Seed       func() *domain.Document // Returned by Read when the path does not exist yet
	BaseURL    string
	cfg        domain.SyncConfig
	Timeout    time.Duration
}

var _ domain.RemoteDocumentClient = (*Client)(nil)

// New creates a client for the given coordinates.
func New(baseURL string, cfg domain.SyncConfig, timeout time.Duration, seed func() *domain.Document) *Client {
	return &Client{
		BaseURL: baseURL,
		cfg:     cfg,
		Timeout: timeout,
		Seed:    seed,
	}
}

// APIError wraps non-2xx responses. It unwraps to the domain error kind.
type APIError struct {
	Kind       error
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: status=%d body=%s", e.Kind, e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// contentResponse is the subset of the contents payload the client uses.
type contentResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// Probe checks that the repository exists and the credential can see it.
func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.repoPath(), nil, nil)
}

// Read fetches and decodes the document at the configured path.
func (c *Client) Read(ctx context.Context) (*domain.Document, domain.VersionToken, error) {
	endpoint := c.contentsPath() + "?ref=" + url.QueryEscape(c.cfg.Branch)
	var resp contentResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if errors.Is(err, domain.ErrNotFound) && c.Seed != nil {
			return c.Seed(), "", nil
		}
		return nil, "", err
	}
	if resp.Encoding != "" && resp.Encoding != "base64" {
		return nil, "", fmt.Errorf("%w: unsupported content encoding %q", domain.ErrCodec, resp.Encoding)
	}
	doc, err := codec.Decode([]byte(resp.Content))
	if err != nil {
		return nil, "", err
	}
	return doc, domain.VersionToken(resp.SHA), nil
}

// Write stores doc guarded by token and returns the new token.
func (c *Client) Write(ctx context.Context, doc *domain.Document, token domain.VersionToken, message string) (domain.VersionToken, error) {
	content, err := codec.Encode(doc)
	if err != nil {
		return "", err
	}
	body := putRequest{
		Message: message,
		Content: string(content),
		Branch:  c.cfg.Branch,
		SHA:     string(token),
	}
	var resp putResponse
	if err := c.do(ctx, http.MethodPut, c.contentsPath(), body, &resp); err != nil {
		return "", err
	}
	if resp.Content.SHA == "" {
		return "", fmt.Errorf("%w: write response carries no version token", domain.ErrCodec)
	}
	return domain.VersionToken(resp.Content.SHA), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrCodec, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Credential)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Kind: statusKind(resp.StatusCode), StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
		}
		return fmt.Errorf("%w: decode response: %w", domain.ErrCodec, err)
	}
	return nil
}

// statusKind maps an HTTP status to a domain error kind.
func statusKind(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrAuth
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusConflict || code == http.StatusUnprocessableEntity || code == http.StatusPreconditionFailed:
		return domain.ErrConflict
	default:
		// 5xx, 429 and anything unexpected are treated as transient.
		return domain.ErrNetwork
	}
}

func (c *Client) repoPath() string {
	return fmt.Sprintf("/repos/%s/%s", url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo))
}

func (c *Client) contentsPath() string {
	segments := strings.Split(strings.Trim(c.cfg.Path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.repoPath() + "/contents/" + strings.Join(segments, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
