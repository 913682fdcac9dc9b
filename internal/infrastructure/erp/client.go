package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/erp/reconciler/internal/domain/integration"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/erp/reconciler/erp"

// RequestObserver receives one observation per HTTP round trip
type RequestObserver interface {
	ObserveERPRequest(endpoint, status string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveERPRequest(string, string, time.Duration) {}

// Client performs authenticated GET calls against Bling. A 401 triggers one
// token refresh and one retry; a 429 triggers one fixed sleep and one retry.
type Client struct {
	config     *BlingConfig
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   RequestObserver
	tracer     trace.Tracer
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRequestObserver records per-request metrics
func WithRequestObserver(o RequestObserver) ClientOption {
	return func(cl *Client) {
		if o != nil {
			cl.observer = o
		}
	}
}

// WithSleep overrides the backoff sleep
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(cl *Client) { cl.sleep = fn }
}

// WithLimiter overrides the outgoing rate limiter
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(cl *Client) { cl.limiter = l }
}

// NewClient creates a Bling client
func NewClient(cfg *BlingConfig, tokens TokenSource, log *zap.Logger, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		config:     cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		observer:   nopObserver{},
		tracer:     otel.Tracer(tracerName),
		logger:     log,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get calls endpoint (relative to the API base URL) and returns the raw body.
// Non-2xx responses surface as *integration.APIError.
func (c *Client) Get(ctx context.Context, endpoint string) ([]byte, error) {
	label := endpointLabel(endpoint)
	ctx, span := c.tracer.Start(ctx, "erp.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodGet,
			attribute.String("erp.endpoint", label),
		),
	)
	defer span.End()

	body, status, err := c.get(ctx, endpoint, label)
	if status != 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint, label string) ([]byte, int, error) {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	var refreshed, backedOff bool
	for {
		status, body, err := c.do(ctx, endpoint, label, token)
		if err != nil {
			return nil, status, err
		}

		switch {
		case status == http.StatusUnauthorized && !refreshed:
			refreshed = true
			c.log(ctx).Warn("Bling returned 401, refreshing token", zap.String("endpoint", label))
			token, err = c.tokens.Refresh(ctx, token)
			if err != nil {
				return nil, status, err
			}
			continue
		case status == http.StatusTooManyRequests && !backedOff:
			backedOff = true
			c.log(ctx).Warn("Bling rate limited, backing off",
				zap.String("endpoint", label),
				zap.Duration("backoff", c.config.RateLimitBackoff),
			)
			if err := c.sleep(ctx, c.config.RateLimitBackoff); err != nil {
				return nil, status, err
			}
			continue
		case status >= 200 && status < 300:
			return body, status, nil
		}

		return nil, status, &integration.APIError{
			Endpoint:   endpoint,
			StatusCode: status,
			Message:    errorMessage(body),
		}
	}
}

func (c *Client) do(ctx context.Context, endpoint, label, token string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", integration.ErrPlatformUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.ResourceURL(endpoint), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("bling: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observer.ObserveERPRequest(label, "error", time.Since(start))
		return 0, nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlingResponseSize))
	c.observer.ObserveERPRequest(label, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("bling: failed to read response: %w", err)
	}

	c.log(ctx).Debug("Bling request",
		zap.String("endpoint", label),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.StatusCode, body, nil
}

// BeginRun implements integration.RunScoped. Credentials cached by an
// earlier run are dropped so the stored row is read again.
func (c *Client) BeginRun() {
	c.tokens.Reset()
}

// GetOrder implements integration.ERPGateway
func (c *Client) GetOrder(ctx context.Context, erpOrderID string) (*integration.ERPOrder, error) {
	body, err := c.Get(ctx, "pedidos/vendas/"+erpOrderID)
	if err != nil {
		return nil, err
	}

	var resp BlingOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: order %s: %v", integration.ErrPlatformInvalidResponse, erpOrderID, err)
	}
	order := resp.ToOrder()
	if order.ID == "" {
		order.ID = erpOrderID
	}
	return order, nil
}

// GetInvoice implements integration.ERPGateway
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*integration.ERPInvoice, error) {
	body, err := c.Get(ctx, "nfe/"+invoiceID)
	if err != nil {
		return nil, err
	}

	var resp BlingInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: invoice %s: %v", integration.ErrPlatformInvalidResponse, invoiceID, err)
	}
	invoice := resp.ToInvoice()
	if invoice.ID == "" {
		invoice.ID = invoiceID
	}
	return invoice, nil
}

// log returns the client logger tagged with the run ID carried by ctx
func (c *Client) log(ctx context.Context) *zap.Logger {
	if id := logger.GetRunID(ctx); id != "" {
		return c.logger.With(zap.String("run_id", id))
	}
	return c.logger
}

// endpointLabel drops numeric path segments so metric labels stay bounded
func endpointLabel(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || strings.IndexFunc(p, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ integration.ERPGateway = (*Client)(nil)
