// Package razorpay is a minimal Razorpay Orders API client.
package razorpay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/breaker"
	"github.com/xenking/railmeal/internal/domain/payment"
)

// DefaultBaseURL is the public Razorpay API root.
const DefaultBaseURL = "https://api.razorpay.com/v1"

const maxResponseBytes = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	Breaker   breaker.Config
	Logger    *zap.Logger
	// Transport overrides the base round tripper. It is still wrapped with
	// otelhttp.
	Transport http.RoundTripper
}

// Client creates gateway orders and verifies payment signatures.
type Client struct {
	http      *http.Client
	baseURL   string
	keyID     string
	keySecret string
	cb        *gobreaker.CircuitBreaker[*payment.Intent]
}

var _ payment.Gateway = (*Client)(nil)
var _ payment.Verifier = (*Client)(nil)

// New returns a Client. KeyID and KeySecret are required.
func New(opts Options) (*Client, error) {
	if opts.KeyID == "" || opts.KeySecret == "" {
		return nil, errors.New("razorpay: key id and key secret are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
		cb:        breaker.New[*payment.Intent]("razorpay", opts.Breaker, opts.Logger, isSuccessful),
	}, nil
}

// KeyID returns the public key id the checkout widget is opened with.
func (c *Client) KeyID() string {
	return c.keyID
}

// Breaker exposes the gateway circuit for health reporting.
func (c *Client) Breaker() *gobreaker.CircuitBreaker[*payment.Intent] {
	return c.cb
}

// APIError is an error response from the Razorpay API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
	return e.Description
}

// isSuccessful reports whether err leaves the breaker alone. Transport
// failures and server errors count against it; client errors and
// cancellations do not.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}

// CreateOrder creates a gateway order for the given amount in minor units.
func (c *Client) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Intent, error) {
	body := encodeOrderRequest(req)
	intent, err := c.cb.Execute(func() (*payment.Intent, error) {
		return c.createOrder(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(err, "razorpay unavailable")
	}
	return intent, err
}

func (c *Client) createOrder(ctx context.Context, body []byte) (*payment.Intent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, data)
	}

	intent, err := decodeOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return intent, nil
}
