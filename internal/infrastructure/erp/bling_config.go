// Package erp implements the Bling v3 ERP gateway: OAuth token rotation,
// authenticated GET calls with single-shot 401/429 recovery, and decoding of
// order and NF-e payloads.
package erp

import (
	"errors"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/config"
)

const (
	// BlingProductionAPIURL is the Bling v3 REST base URL
	BlingProductionAPIURL = "https://www.bling.com.br/Api/v3"

	// maxBlingResponseSize limits the response body size to prevent memory exhaustion
	maxBlingResponseSize = 10 * 1024 * 1024
)

// Errors for Bling configuration
var (
	ErrBlingConfigMissingBaseURL      = errors.New("bling: API base URL is required")
	ErrBlingConfigMissingClientID     = errors.New("bling: client ID is required")
	ErrBlingConfigMissingClientSecret = errors.New("bling: client secret is required")
	ErrBlingConfigInvalidRate         = errors.New("bling: requests per second must be positive")
)

// BlingConfig holds configuration for the Bling API integration
type BlingConfig struct {
	// APIBaseURL is the base URL for resource endpoints
	APIBaseURL string
	// TokenURL is the OAuth token endpoint; defaults to APIBaseURL + /oauth/token
	TokenURL string
	// ClientID and ClientSecret build the Basic auth header of the refresh grant
	ClientID     string
	ClientSecret string
	// Timeout bounds each HTTP round trip
	Timeout time.Duration
	// RequestsPerSecond paces outgoing calls
	RequestsPerSecond float64
	// RateLimitBackoff is the fixed sleep before the single retry after HTTP 429
	RateLimitBackoff time.Duration
	// TokenExpiryBuffer treats a token as expired this long before its expiry
	TokenExpiryBuffer time.Duration
}

// NewBlingConfig creates a configuration with production defaults
func NewBlingConfig(clientID, clientSecret string) *BlingConfig {
	return &BlingConfig{
		APIBaseURL:        BlingProductionAPIURL,
		ClientID:          clientID,
		ClientSecret:      clientSecret,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 3,
		RateLimitBackoff:  time.Second,
		TokenExpiryBuffer: 5 * time.Minute,
	}
}

// BlingConfigFromERP maps the application ERP section onto a BlingConfig
func BlingConfigFromERP(cfg *config.ERPConfig) *BlingConfig {
	c := NewBlingConfig(cfg.ClientID, cfg.ClientSecret)
	if cfg.APIBaseURL != "" {
		c.APIBaseURL = cfg.APIBaseURL
	}
	c.TokenURL = cfg.TokenURL
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.RequestsPerSecond > 0 {
		c.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.RateLimitBackoff > 0 {
		c.RateLimitBackoff = cfg.RateLimitBackoff
	}
	if cfg.TokenExpiryBuffer > 0 {
		c.TokenExpiryBuffer = cfg.TokenExpiryBuffer
	}
	return c
}

// Validate validates the Bling configuration
func (c *BlingConfig) Validate() error {
	if c.APIBaseURL == "" {
		return ErrBlingConfigMissingBaseURL
	}
	if c.ClientID == "" {
		return ErrBlingConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrBlingConfigMissingClientSecret
	}
	if c.RequestsPerSecond <= 0 {
		return ErrBlingConfigInvalidRate
	}
	return nil
}

// TokenEndpoint returns the OAuth token URL
func (c *BlingConfig) TokenEndpoint() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return strings.TrimRight(c.APIBaseURL, "/") + "/oauth/token"
}

// ResourceURL joins the base URL and a relative endpoint
func (c *BlingConfig) ResourceURL(endpoint string) string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
