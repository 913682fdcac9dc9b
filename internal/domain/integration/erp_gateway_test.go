package integration

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrPlatformNotFound},
		{http.StatusUnauthorized, ErrPlatformAuthFailed},
		{http.StatusForbidden, ErrPlatformRequestFailed},
		{http.StatusTooManyRequests, ErrPlatformRateLimited},
		{http.StatusInternalServerError, ErrPlatformRequestFailed},
		{http.StatusBadRequest, ErrPlatformRequestFailed},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("bling: %w", &APIError{Endpoint: "/nfe/1", StatusCode: tt.status})
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			assert.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "/pedidos/vendas/1: HTTP 500", (&APIError{Endpoint: "/pedidos/vendas/1", StatusCode: 500}).Error())
	assert.Equal(t, "/nfe/2: HTTP 400: bad id", (&APIError{Endpoint: "/nfe/2", StatusCode: 400, Message: "bad id"}).Error())
}

func TestIsRunFatal(t *testing.T) {
	assert.True(t, IsRunFatal(fmt.Errorf("x: %w", ErrTokenRefreshFailed)))
	assert.True(t, IsRunFatal(ErrPlatformAuthFailed))
	assert.True(t, IsRunFatal(ErrPlatformNotConfigured))
	assert.False(t, IsRunFatal(&APIError{Endpoint: "/nfe/1", StatusCode: 500}))
	assert.False(t, IsRunFatal(ErrPlatformNotFound))
	assert.False(t, IsRunFatal(&APIError{Endpoint: "/pedidos/vendas/1", StatusCode: 403}))
}

func TestERPInvoice_Authorized(t *testing.T) {
	assert.True(t, (&ERPInvoice{StatusCode: InvoiceStatusAuthorized}).Authorized())
	assert.False(t, (&ERPInvoice{StatusCode: 1}).Authorized())
	assert.False(t, (&ERPInvoice{}).Authorized())
	assert.False(t, (&ERPInvoice{StatusCode: 6}).Authorized())
}

func TestOAuthCredentials_ExpiresWithin(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	buffer := 5 * time.Minute

	tests := []struct {
		name      string
		token     string
		expiresAt time.Time
		want      bool
	}{
		{"well before expiry", "tok", now.Add(time.Hour), false},
		{"inside buffer", "tok", now.Add(4 * time.Minute), true},
		{"exactly at buffer edge", "tok", now.Add(5 * time.Minute), true},
		{"just outside buffer", "tok", now.Add(5*time.Minute + time.Second), false},
		{"already expired", "tok", now.Add(-time.Minute), true},
		{"no access token", "", now.Add(time.Hour), true},
		{"no expiry", "tok", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &OAuthCredentials{AccessToken: tt.token, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, c.ExpiresWithin(now, buffer))
		})
	}
}

func TestOAuthCredentials_Rotate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rotates refresh token", func(t *testing.T) {
		c := &OAuthCredentials{AccessToken: "old", RefreshToken: "old-rt"}
		c.Rotate("new", "new-rt", 6*time.Hour, now)
		assert.Equal(t, "new", c.AccessToken)
		assert.Equal(t, "new-rt", c.RefreshToken)
		assert.Equal(t, now.Add(6*time.Hour), c.ExpiresAt)
	})

	t.Run("keeps refresh token when omitted", func(t *testing.T) {
		c := &OAuthCredentials{AccessToken: "old", RefreshToken: "old-rt"}
		c.Rotate("new", "", time.Hour, now)
		assert.Equal(t, "old-rt", c.RefreshToken)
	})
}
