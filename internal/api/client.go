package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

// Platform API paths consumed by the session layer.
const (
	loginPath       = "/api/login"
	logoutPath      = "/api/logout"
	refreshPath     = "/api/refresh-token"
	currentUserPath = "/api/current-user"
)

const defaultTimeout = 30 * time.Second

// SessionRefresher is the slice of the session manager the refresh
// interceptor needs: attempt one refresh, or clear the session when the
// refresh is exhausted.
type SessionRefresher interface {
	RefreshToken(ctx context.Context) bool
	Clear()
}

// Config carries the settings for constructing a Client.
type Config struct {
	// BaseURL is the platform API origin, e.g. "https://api.learnsphere.io".
	BaseURL string
	// Timeout bounds every request including a post-refresh retry.
	// Defaults to 30s. A timeout surfaces as a network error, never as a
	// credential rejection.
	Timeout time.Duration
	// JarPath, when non-empty, persists the cookie jar there so a restarted
	// process keeps its server-set session cookies.
	JarPath string
}

// Client is a platform API client with credential-carrying transport and a
// single-flight token-refresh interceptor. Each Client owns its cookie jar
// and interceptor state; independent instances never share refresh state.
type Client struct {
	hc   *http.Client
	base *url.URL
	jar  *Jar
	rt   *refreshTransport
	log  zerolog.Logger
}

// New constructs a Client. The refresh interceptor stays dormant until
// AttachSession wires in a session manager.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	jar, err := NewJar(cfg.JarPath, base)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rt := &refreshTransport{
		base: http.DefaultTransport,
		jar:  jar,
		log:  log,
	}

	return &Client{
		hc: &http.Client{
			Transport: rt,
			Jar:       jar,
			Timeout:   timeout,
		},
		base: base,
		jar:  jar,
		rt:   rt,
		log:  log,
	}, nil
}

// AttachSession enables the 401-refresh-retry interceptor. Requests issued
// before this is called see no refresh handling.
func (c *Client) AttachSession(s SessionRefresher) {
	c.rt.attach(s)
}

// Jar exposes the client's cookie jar, which doubles as the "looks logged in"
// hint for the bootstrapper.
func (c *Client) Jar() *Jar {
	return c.jar
}

// GetJSON performs an authenticated GET and decodes the enveloped response
// into out. Application calls made through here participate in the refresh
// interceptor.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON performs an authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s %s: decode body: %w", method, path, err)
		}
	}
	return nil
}

// errorMessage extracts the server's message from an error body, tolerating
// both {"message": ...} and {"error": ...} envelopes.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
