// Package ago is a client for the ArcGIS Online REST API covering the
// operations the wildlife pipelines need: feature layer queries, edits,
// attachments, related records, and layer truncation.
package ago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	tokenPath   = "/sharing/rest/generateToken"
	contentPath = "/sharing/rest/content/items/"

	// invalidTokenCode is returned inside a 200 response when the token has
	// expired or been revoked.
	invalidTokenCode = 498
)

// Config holds the connection settings for a Client.
type Config struct {
	// PortalURL is the portal root, e.g. https://governmentofbc.maps.arcgis.com
	PortalURL string
	Username  string
	Password  string
	// TokenExpiry is the requested token lifetime.
	TokenExpiry time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is an authenticated ArcGIS Online connection. It is safe for
// concurrent use; the token is refreshed lazily.
type Client struct {
	portalURL   string
	username    string
	password    string
	tokenExpiry time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

// NewClient creates a client. No network call is made until the first
// request needs a token.
func NewClient(cfg Config) (*Client, error) {
	if cfg.PortalURL == "" {
		return nil, fmt.Errorf("portal URL required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 2 * time.Hour
	}
	return &Client{
		portalURL:   strings.TrimSuffix(strings.TrimSuffix(cfg.PortalURL, "/home"), "/"),
		username:    cfg.Username,
		password:    cfg.Password,
		tokenExpiry: expiry,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// apiError is the error envelope AGO embeds in otherwise successful
// responses.
type apiError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// Error is a failure reported by the AGO REST API.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ago: %s (code %d)", e.Message, e.Code)
}

// ensureToken returns a valid token, generating one if the cached token is
// missing or about to expire.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpires) > time.Minute {
		return c.token, nil
	}
	return c.generateTokenLocked(ctx)
}

// invalidateToken drops the cached token so the next request regenerates it.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) generateTokenLocked(ctx context.Context) (string, error) {
	form := url.Values{
		"username":   {c.username},
		"password":   {c.password},
		"referer":    {c.portalURL},
		"expiration": {fmt.Sprintf("%d", int(c.tokenExpiry.Minutes()))},
		"f":          {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.portalURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Token   string    `json:"token"`
		Expires int64     `json:"expires"`
		Error   *apiError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.Error != nil {
		return "", &Error{Code: result.Error.Code, Message: result.Error.Message}
	}
	if result.Token == "" {
		return "", fmt.Errorf("token response missing token")
	}

	c.token = result.Token
	c.tokenExpires = time.UnixMilli(result.Expires)
	c.logger.Debug("Generated AGO token",
		"user", c.username,
		"expires", c.tokenExpires.Format(time.RFC3339))
	return c.token, nil
}

// request issues an authenticated request against an absolute AGO endpoint
// and decodes the JSON response into out. GET requests carry params in the
// query string, POST requests as a form body. Transient transport and server
// errors are retried with exponential backoff; an invalid-token error is
// retried once after regenerating the token.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	refreshed := false

	operation := func() error {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		values := url.Values{}
		for k, v := range params {
			values[k] = v
		}
		values.Set("f", "json")
		values.Set("token", token)

		var req *http.Request
		if method == http.MethodGet {
			req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+values.Encode(), nil)
		} else {
			req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
			if req != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		var envelope struct {
			Error *apiError `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if envelope.Error != nil {
			if envelope.Error.Code == invalidTokenCode && !refreshed {
				refreshed = true
				c.invalidateToken()
				return fmt.Errorf("token rejected, refreshing")
			}
			return backoff.Permanent(&Error{Code: envelope.Error.Code, Message: envelope.Error.Message})
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}

// get issues an authenticated GET, decoding into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.request(ctx, http.MethodGet, endpoint, params, out)
}

// post issues an authenticated form POST, decoding into out.
func (c *Client) post(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.request(ctx, http.MethodPost, endpoint, params, out)
}
