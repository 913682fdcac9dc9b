package integration

import (
	"context"
	"time"
)

// ProviderBling identifies the Bling ERP credential row
const ProviderBling = "bling"

// OAuthCredentials holds the rotating token pair for one ERP provider
type OAuthCredentials struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token is expired or will expire within buffer
func (c *OAuthCredentials) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-buffer))
}

// Rotate applies a refresh response. An empty refresh token keeps the current one.
func (c *OAuthCredentials) Rotate(accessToken, refreshToken string, expiresIn time.Duration, now time.Time) {
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.ExpiresAt = now.Add(expiresIn)
	c.UpdatedAt = now
}

// CredentialRepository persists OAuth credentials
type CredentialRepository interface {
	// FindByProvider returns ErrCredentialsNotFound when no row exists
	FindByProvider(ctx context.Context, provider string) (*OAuthCredentials, error)
	// SaveTokens stores the access token, refresh token and expiry
	SaveTokens(ctx context.Context, creds *OAuthCredentials) error
}
