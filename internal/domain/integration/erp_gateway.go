package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ---------------------------------------------------------------------------
// ERP Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrPlatformNotFound        = errors.New("integration: platform resource not found")

	ErrTokenRefreshFailed    = errors.New("integration: token refresh failed")
	ErrCredentialsNotFound   = errors.New("integration: credentials not found")
	ErrCredentialsIncomplete = errors.New("integration: credentials incomplete")
)

// IsRunFatal reports whether err must abort a reconciliation run instead of
// being recorded against a single item.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrTokenRefreshFailed) ||
		errors.Is(err, ErrPlatformAuthFailed) ||
		errors.Is(err, ErrPlatformNotConfigured)
}

// ---------------------------------------------------------------------------
// APIError
// ---------------------------------------------------------------------------

// APIError is a non-2xx ERP response carrying the endpoint and status
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
}

// Unwrap maps the status code to an integration sentinel. Only 401 is an
// authentication failure; 403 is a per-resource refusal.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrPlatformNotFound
	case http.StatusUnauthorized:
		return ErrPlatformAuthFailed
	case http.StatusTooManyRequests:
		return ErrPlatformRateLimited
	default:
		return ErrPlatformRequestFailed
	}
}

// ---------------------------------------------------------------------------
// ERP value objects
// ---------------------------------------------------------------------------

// InvoiceStatusAuthorized is the only NF-e status whose document may be linked
const InvoiceStatusAuthorized = 5

// ERPOrder is the part of an ERP sales order the resolver needs
type ERPOrder struct {
	ID     string
	Number string
	// InvoiceID is empty when the order payload carries no fiscal invoice reference
	InvoiceID string
}

// ERPInvoice is the part of an ERP fiscal invoice the resolver needs
type ERPInvoice struct {
	ID           string
	StatusCode   int
	DocumentLink string
	Number       string
}

// Authorized returns true only for the authorized status code
func (i *ERPInvoice) Authorized() bool {
	return i.StatusCode == InvoiceStatusAuthorized
}

// ---------------------------------------------------------------------------
// ERPGateway port
// ---------------------------------------------------------------------------

// ERPGateway reads orders and invoices from the external ERP.
// Implementations refresh credentials and absorb rate limiting transparently.
type ERPGateway interface {
	// GetOrder fetches a sales order by its ERP identifier
	GetOrder(ctx context.Context, erpOrderID string) (*ERPOrder, error)
	// GetInvoice fetches a fiscal invoice by its ERP identifier
	GetInvoice(ctx context.Context, invoiceID string) (*ERPInvoice, error)
}

// RunScoped is implemented by gateways that hold state which must not
// outlive a single reconciliation run
type RunScoped interface {
	// BeginRun discards state cached by earlier runs
	BeginRun()
}
