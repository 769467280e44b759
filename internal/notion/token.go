package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrNotConnected means no usable Notion credential is available.
var ErrNotConnected = errors.New("notion not connected")

// Token is an access token and its expiry. A zero Expiry never expires.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

func (t Token) valid(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || now.Add(skew).Before(t.Expiry)
}

// TokenSource supplies Notion access tokens.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// StaticToken is a long-lived integration token.
type StaticToken string

// Token returns the static token.
func (s StaticToken) Token(ctx context.Context) (Token, error) {
	if s == "" {
		return Token{}, ErrNotConnected
	}
	return Token{AccessToken: string(s)}, nil
}

// ConnectorSource fetches short-lived tokens from a connector endpoint that
// returns {"access_token": "...", "expires_at": "<RFC3339>"}.
type ConnectorSource struct {
	URL        string
	AuthToken  string
	HTTPClient *http.Client
}

type connectorResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	Settings    *struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   string `json:"expires_at"`
		OAuth       *struct {
			Credentials struct {
				AccessToken string `json:"access_token"`
			} `json:"credentials"`
		} `json:"oauth"`
	} `json:"settings"`
}

// Token fetches a fresh token from the connector.
func (c *ConnectorSource) Token(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Token{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("%w: connector returned status %d", ErrNotConnected, resp.StatusCode)
	}

	var body connectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}

	tok := Token{AccessToken: body.AccessToken}
	expires := body.ExpiresAt
	if s := body.Settings; s != nil {
		if tok.AccessToken == "" {
			tok.AccessToken = s.AccessToken
		}
		if tok.AccessToken == "" && s.OAuth != nil {
			tok.AccessToken = s.OAuth.Credentials.AccessToken
		}
		if expires == "" {
			expires = s.ExpiresAt
		}
	}
	if tok.AccessToken == "" {
		return Token{}, ErrNotConnected
	}
	if expires != "" {
		if tok.Expiry, err = time.Parse(time.RFC3339, expires); err != nil {
			return Token{}, fmt.Errorf("parse expiry: %w", err)
		}
	}
	return tok, nil
}

// CachedTokenSource reuses a token until shortly before it expires.
type CachedTokenSource struct {
	src  TokenSource
	skew time.Duration
	now  func() time.Time

	mu  sync.Mutex
	tok Token
}

// NewCachedTokenSource wraps src with a cache.
func NewCachedTokenSource(src TokenSource) *CachedTokenSource {
	return &CachedTokenSource{src: src, skew: 30 * time.Second, now: time.Now}
}

// Token returns the cached token or fetches a new one.
func (c *CachedTokenSource) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok.valid(c.now(), c.skew) {
		return c.tok, nil
	}
	tok, err := c.src.Token(ctx)
	if err != nil {
		return Token{}, err
	}
	c.tok = tok
	return tok, nil
}
