// Package peer calls the collaborating service that owns per-user data.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultResource = "properties"

	tokenIssuer = "identity-service"
	tokenTTL    = time.Minute

	maxErrorBody = 4 << 10
)

// Client issues the cascade DELETE against the peer service. Each call is a
// single attempt; retries belong to the reconciler.
type Client struct {
	baseURL    string
	resource   string
	secret     []byte
	httpClient *http.Client
	now        func() time.Time
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithResource sets the peer collection path segment. Defaults to
// "properties".
func WithResource(resource string) Option {
	return func(c *Client) {
		if r := strings.Trim(strings.TrimSpace(resource), "/"); r != "" {
			c.resource = r
		}
	}
}

// WithServiceSecret signs every request with a short-lived HS256 token.
func WithServiceSecret(secret string) Option {
	return func(c *Client) {
		if secret != "" {
			c.secret = []byte(secret)
		}
	}
}

// WithTimeout bounds each peer request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client for the peer reachable at base.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty peer base url")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid peer base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid peer base url %q: scheme must be http or https", base)
	}

	c := &Client{
		baseURL:    trimmed,
		resource:   defaultResource,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ ports.PeerDeletionClient = (*Client)(nil)

// DeleteUserData removes everything the peer holds for userID. Any non-2xx
// answer or transport failure is returned as a *domain.PeerError.
func (c *Client) DeleteUserData(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/%s/user/%s", c.baseURL, c.resource, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return &domain.PeerError{Detail: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	if len(c.secret) > 0 {
		token, err := c.serviceToken(userID)
		if err != nil {
			return &domain.PeerError{Detail: fmt.Sprintf("sign service token: %v", err)}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.PeerError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	detail := extractError(io.LimitReader(resp.Body, maxErrorBody))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &domain.PeerError{Status: resp.StatusCode, Detail: detail}
}

func (c *Client) serviceToken(userID string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if msg := strings.TrimSpace(payload.Error); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(data))
}
