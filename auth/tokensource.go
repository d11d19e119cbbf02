// Package auth obtains and refreshes bearer tokens for the dataspace identity
// provider (an OAuth2 client-credentials / refresh-token exchange).
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config is the identity bundle consumed once at startup.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Validate reports whether the bundle is usable.
func (c Config) Validate() error {
	if c.TokenURL == "" {
		return errors.New("auth: token URL is required")
	}
	if _, err := url.Parse(c.TokenURL); err != nil {
		return fmt.Errorf("auth: invalid token URL: %w", err)
	}
	if c.ClientID == "" {
		return errors.New("auth: client id is required")
	}
	return nil
}

// ErrInvalidCredentials is returned when the identity provider rejects the
// client id/secret or a refresh token that should still be valid.
var ErrInvalidCredentials = errors.New("auth: identity provider rejected credentials")

// DefaultExpiryMargin is how long before nominal expiry a token is treated as
// stale, so it cannot expire mid-flight.
const DefaultExpiryMargin = 30 * time.Second

// TokenSource supplies bearer tokens for authenticated requests.
type TokenSource interface {
	// Token returns a token valid for at least the configured expiry margin,
	// refreshing synchronously when needed.
	Token(ctx context.Context) (string, error)
	// Invalidate marks the given token as dead (e.g., rejected server-side
	// before its local expiry) so the next Token call refreshes.
	Invalidate(token string)
}

// Static returns a TokenSource that always yields the given pre-issued token.
func Static(token string) TokenSource {
	return staticTokenSource(token)
}

type staticTokenSource string

func (s staticTokenSource) Token(context.Context) (string, error) { return string(s), nil }
func (s staticTokenSource) Invalidate(string)                     {}

// Option configures a ClientCredentialsSource.
type Option func(*ClientCredentialsSource)

// WithHTTPClient injects the HTTP client used for token endpoint calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *ClientCredentialsSource) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// WithExpiryMargin overrides the stale-token safety margin.
func WithExpiryMargin(margin time.Duration) Option {
	return func(s *ClientCredentialsSource) {
		if margin > 0 {
			s.margin = margin
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ClientCredentialsSource) {
		if now != nil {
			s.now = now
		}
	}
}

// ClientCredentialsSource exchanges client credentials for bearer tokens and
// keeps them fresh. The held credential is mutated only on successful refresh;
// a replaced token is never handed out again. Concurrent callers share one
// in-flight refresh rather than racing to overwrite each other.
type ClientCredentialsSource struct {
	cfg        Config
	httpClient *http.Client
	margin     time.Duration
	now        func() time.Time

	group singleflight.Group

	mu               sync.Mutex
	accessToken      string
	refreshToken     string
	expiresAt        time.Time
	refreshExpiresAt time.Time
}

// NewClientCredentials constructs a ClientCredentialsSource for the given bundle.
func NewClientCredentials(cfg Config, opts ...Option) (*ClientCredentialsSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &ClientCredentialsSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		margin:     DefaultExpiryMargin,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token implements TokenSource.
func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.usable() {
		token := s.accessToken
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	token, err, _ := s.group.Do("token", func() (any, error) {
		// Another caller may have finished a refresh between the check above
		// and entering the group.
		s.mu.Lock()
		if s.usable() {
			token := s.accessToken
			s.mu.Unlock()
			return token, nil
		}
		s.mu.Unlock()
		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Invalidate implements TokenSource. Only the currently held token is
// invalidated, so a caller holding a stale copy cannot kill a fresh one.
func (s *ClientCredentialsSource) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != "" && token == s.accessToken {
		s.expiresAt = time.Time{}
	}
}

func (s *ClientCredentialsSource) usable() bool {
	return s.accessToken != "" && s.now().Add(s.margin).Before(s.expiresAt)
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// refresh performs one grant exchange. It is not retried here: a rejected
// secret retried in a loop can trigger provider-side lockout, so failures
// surface immediately and only the injected HTTP client's transport-level
// behavior applies.
func (s *ClientCredentialsSource) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	refreshToken := s.refreshToken
	refreshUsable := refreshToken != "" && s.now().Add(s.margin).Before(s.refreshExpiresAt)
	s.mu.Unlock()

	if refreshUsable {
		token, err := s.exchange(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {s.cfg.ClientID},
			"refresh_token": {refreshToken},
		})
		if err == nil {
			return token, nil
		}
		// A dead refresh token is recoverable with a full re-authentication;
		// anything else (network, provider outage) is not.
		if !errors.Is(err, ErrInvalidCredentials) {
			return "", err
		}
	}

	form := url.Values{
		"grant_type": {"client_credentials"},
		"client_id":  {s.cfg.ClientID},
	}
	if s.cfg.ClientSecret != "" {
		form.Set("client_secret", s.cfg.ClientSecret)
	}
	return s.exchange(ctx, form)
}

func (s *ClientCredentialsSource) exchange(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: status=%d %s", ErrInvalidCredentials, resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		return "", fmt.Errorf("auth: token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("auth: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("auth: token response missing access_token")
	}

	acquired := s.now()
	s.mu.Lock()
	s.accessToken = tr.AccessToken
	s.expiresAt = acquired.Add(time.Duration(tr.ExpiresIn) * time.Second)
	if tr.RefreshToken != "" {
		s.refreshToken = tr.RefreshToken
		s.refreshExpiresAt = acquired.Add(time.Duration(tr.RefreshExpiresIn) * time.Second)
	}
	s.mu.Unlock()

	return tr.AccessToken, nil
}
