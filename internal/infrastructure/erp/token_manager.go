package erp

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

	"github.com/erp/reconciler/internal/domain/integration"
	"go.uber.org/zap"
)

// TokenSource yields bearer tokens for ERP calls
type TokenSource interface {
	// ValidToken returns an access token that is not within the expiry buffer
	ValidToken(ctx context.Context) (string, error)
	// Refresh forces a refresh-token grant unless the stored token already
	// differs from stale, in which case the stored token is returned.
	Refresh(ctx context.Context, stale string) (string, error)
	// Reset drops cached credentials so the next call reads the store
	Reset()
}

// TokenManager caches the Bling credentials for one run and rotates them
// through the refresh-token grant. Other processes share the stored row, so
// the row is re-read before every refresh. A missing row is reported as
// ErrPlatformNotConfigured; every other failure wraps ErrTokenRefreshFailed.
type TokenManager struct {
	config     *BlingConfig
	repo       integration.CredentialRepository
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	creds *integration.OAuthCredentials
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithClock overrides the time source
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// WithTokenHTTPClient overrides the HTTP client used for the token grant
func WithTokenHTTPClient(c *http.Client) TokenManagerOption {
	return func(m *TokenManager) { m.httpClient = c }
}

// NewTokenManager creates a token manager for the Bling provider row
func NewTokenManager(cfg *BlingConfig, repo integration.CredentialRepository, logger *zap.Logger, opts ...TokenManagerOption) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &TokenManager{
		config:     cfg,
		repo:       repo,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidToken implements TokenSource
func (m *TokenManager) ValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creds == nil || m.expiring() {
		if err := m.loadLocked(ctx); err != nil {
			return "", err
		}
	}
	if !m.expiring() {
		return m.creds.AccessToken, nil
	}
	return m.refreshLocked(ctx)
}

// Refresh implements TokenSource
func (m *TokenManager) Refresh(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		return "", err
	}
	if stale != "" && m.creds.AccessToken != "" && m.creds.AccessToken != stale && !m.expiring() {
		return m.creds.AccessToken, nil
	}
	return m.refreshLocked(ctx)
}

// Reset implements TokenSource
func (m *TokenManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
}

func (m *TokenManager) expiring() bool {
	return m.creds.ExpiresWithin(m.now(), m.config.TokenExpiryBuffer)
}

// loadLocked replaces the cached credentials with the stored row
func (m *TokenManager) loadLocked(ctx context.Context) error {
	creds, err := m.repo.FindByProvider(ctx, integration.ProviderBling)
	if err != nil {
		if errors.Is(err, integration.ErrCredentialsNotFound) {
			return fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, err)
		}
		return fmt.Errorf("%w: load credentials: %w", integration.ErrTokenRefreshFailed, err)
	}
	m.creds = creds
	return nil
}

func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	if m.creds.RefreshToken == "" {
		return "", fmt.Errorf("%w: %w: refresh token is empty",
			integration.ErrTokenRefreshFailed, integration.ErrCredentialsIncomplete)
	}

	tok, err := m.exchange(ctx, m.creds.RefreshToken)
	if err != nil {
		m.logger.Error("Bling token refresh failed", zap.Error(err))
		return "", err
	}

	rotated := *m.creds
	rotated.Rotate(tok.AccessToken, tok.RefreshToken, time.Duration(tok.ExpiresIn)*time.Second, m.now())
	if err := m.repo.SaveTokens(ctx, &rotated); err != nil {
		return "", fmt.Errorf("%w: persist rotated tokens: %w", integration.ErrTokenRefreshFailed, err)
	}
	m.creds = &rotated

	m.logger.Info("Bling access token refreshed", zap.Time("expires_at", rotated.ExpiresAt))
	return rotated.AccessToken, nil
}

func (m *TokenManager) exchange(ctx context.Context, refreshToken string) (*BlingTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", integration.ErrTokenRefreshFailed, err)
	}
	req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrTokenRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlingResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", integration.ErrTokenRefreshFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", integration.ErrTokenRefreshFailed, resp.StatusCode, msg)
	}

	var tok BlingTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", integration.ErrTokenRefreshFailed, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access token", integration.ErrTokenRefreshFailed)
	}
	return &tok, nil
}

var _ TokenSource = (*TokenManager)(nil)
