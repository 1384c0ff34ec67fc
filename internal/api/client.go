// Package api is a typed client for the document service REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"notespace/client/internal/auth"
	"notespace/client/internal/session"
)

// refreshWindow is how close to expiry an access token is refreshed before
// use.
const refreshWindow = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	tokens  session.Store
	logger  *slog.Logger
	now     func() time.Time

	refreshMu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, tokens session.Store, opts ...Option) *Client {
	if tokens == nil {
		tokens = session.NewMemoryStore(session.Tokens{})
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessToken returns a usable access token, refreshing it first when it is
// about to expire. An empty token means the client is signed out.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	tokens, err := c.tokens.Load(ctx)
	if errors.Is(err, session.ErrNoTokens) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if tokens.Refresh != "" && auth.ExpiresWithin(tokens.Access, refreshWindow, c.now()) {
		if refreshed, err := c.refresh(ctx, tokens.Access); err == nil {
			return refreshed, nil
		}
	}
	return tokens.Access, nil
}

// refresh exchanges the refresh token for a new access token. stale is the
// access token the caller saw; if another caller already replaced it, the
// new one is returned without a second exchange.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tokens, err := c.tokens.Load(ctx)
	if err != nil {
		return "", err
	}
	if tokens.Access != stale && tokens.Access != "" {
		return tokens.Access, nil
	}
	if tokens.Refresh == "" {
		return "", &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "no refresh token"}
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	req := request{method: http.MethodPost, path: "/token/refresh/", body: map[string]string{"refresh": tokens.Refresh}, anonymous: true}
	if err := c.send(ctx, req, "", &out); err != nil {
		c.logger.Warn("token refresh failed, signing out", "error", err)
		_ = c.tokens.Clear(ctx)
		return "", fmt.Errorf("refresh token: %w", err)
	}
	tokens.Access = out.Access
	if out.Refresh != "" {
		tokens.Refresh = out.Refresh
	}
	if err := c.tokens.Save(ctx, tokens); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	return tokens.Access, nil
}

type request struct {
	method    string
	path      string
	body      any
	anonymous bool
}

// do sends an authenticated request. A 401 triggers one token refresh and a
// single replay.
func (c *Client) do(ctx context.Context, req request, out any) error {
	token := ""
	if !req.anonymous {
		var err error
		if token, err = c.AccessToken(ctx); err != nil {
			return err
		}
	}
	err := c.send(ctx, req, token, out)
	if req.anonymous || !IsUnauthorized(err) {
		return err
	}
	refreshed, refreshErr := c.refresh(ctx, token)
	if refreshErr != nil {
		return err
	}
	return c.send(ctx, req, refreshed, out)
}

func (c *Client) send(ctx context.Context, req request, token string, out any) error {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	return c.exchange(httpReq, token, out)
}

func (c *Client) exchange(httpReq *http.Request, token string, out any) error {
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", httpReq.Method, httpReq.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", httpReq.Method, httpReq.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", httpReq.Method, httpReq.URL.Path, err)
	}
	return nil
}
