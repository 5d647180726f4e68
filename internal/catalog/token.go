package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"shelfsync/internal/ratelimit"
	"shelfsync/internal/services"
)

// DefaultTokenLeeway is subtracted from a token's lifetime so requests never
// race its expiry.
const DefaultTokenLeeway = 60 * time.Second

// Token is an access token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenFetcher obtains a fresh token.
type TokenFetcher func(ctx context.Context) (Token, error)

// TokenSource hands out cached bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops the cached token so the next call refreshes it.
	Invalidate()
}

// StaticToken is a long-lived token such as an integration secret.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", services.Wrap(services.ErrAuth, "token", "static", "token is empty", nil)
	}
	return string(t), nil
}

// Invalidate implements TokenSource. Static tokens cannot be refreshed.
func (StaticToken) Invalidate() {}

// CachedTokenSource caches a token for its validity window and collapses
// concurrent refreshes into a single fetch.
type CachedTokenSource struct {
	fetch  TokenFetcher
	leeway time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	token Token
	group singleflight.Group
}

// NewCachedTokenSource wraps fetch with caching.
func NewCachedTokenSource(fetch TokenFetcher, leeway time.Duration) *CachedTokenSource {
	if leeway < 0 {
		leeway = 0
	}
	return &CachedTokenSource{fetch: fetch, leeway: leeway, now: time.Now}
}

// Token returns a cached token or fetches a new one.
func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}
	v, err, _ := s.group.Do("token", func() (any, error) {
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		fresh, err := s.fetch(ctx)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.token = fresh
		s.mu.Unlock()
		return fresh.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate forgets the cached token.
func (s *CachedTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = Token{}
	s.mu.Unlock()
}

func (s *CachedTokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.Value == "" {
		return "", false
	}
	if !s.token.ExpiresAt.IsZero() && !s.now().Add(s.leeway).Before(s.token.ExpiresAt) {
		return "", false
	}
	return s.token.Value, true
}

// AuthStyle selects where client credentials travel.
type AuthStyle int

const (
	// AuthInBody sends client_id and client_secret as form fields (Twitch).
	AuthInBody AuthStyle = iota
	// AuthInHeader sends HTTP basic auth (Spotify).
	AuthInHeader
)

// ClientCredentials performs the OAuth2 client-credentials grant.
type ClientCredentials struct {
	Provider     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Style        AuthStyle
	HTTPClient   *http.Client
	Limiter      *ratelimit.Limiter
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Fetch requests a new token. Rejected credentials are reported as ErrAuth.
func (c ClientCredentials) Fetch(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if c.Style == AuthInBody {
		form.Set("client_id", c.ClientID)
		form.Set("client_secret", c.ClientSecret)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.Style == AuthInHeader {
		req.SetBasicAuth(c.ClientID, c.ClientSecret)
	}

	c.Limiter.Acquire(ctx)
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Token{}, services.Wrap(services.ErrTransient, c.Provider, "token", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Token{}, services.Wrap(services.ErrAuth, c.Provider, "token", "credentials rejected", &StatusError{StatusCode: resp.StatusCode, Latency: latency})
	case resp.StatusCode != http.StatusOK:
		return Token{}, services.Wrap(services.ErrTransient, c.Provider, "token", "", &StatusError{StatusCode: resp.StatusCode, Latency: latency})
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Token{}, services.Wrap(services.ErrAuth, c.Provider, "token", "decode token response", err)
	}
	if payload.AccessToken == "" {
		return Token{}, services.Wrap(services.ErrAuth, c.Provider, "token", "empty access token", nil)
	}
	tok := Token{Value: payload.AccessToken}
	if payload.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return tok, nil
}
