// Package backend is the HTTP client for the RailMeal REST backend that owns
// orders, reviews and wallets.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/breaker"
)

const (
	maxResponseBytes     = 4 << 20
	idempotencyKeyHeader = "Idempotency-Key"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Breaker   breaker.Config
	Logger    *zap.Logger
	Transport http.RoundTripper
}

// Client talks to the backend on behalf of the caller whose bearer token is
// on the request context.
type Client struct {
	http    *http.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// New returns a Client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("backend: base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, errors.Wrap(err, "backend: parse base url")
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
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cb: breaker.New[[]byte]("backend", opts.Breaker, opts.Logger, func(err error) bool {
			return err == nil || !errors.Is(err, apperr.ErrRemoteUnavailable)
		}),
	}, nil
}

// Breaker exposes the backend circuit for health reporting.
func (c *Client) Breaker() *gobreaker.CircuitBreaker[[]byte] {
	return c.cb
}

type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	idempotencyKey string
}

// do executes req and returns the raw response body. Failures are mapped to
// the apperr taxonomy or *APIError.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	data, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperr.Remote(errors.Wrap(err, "backend"))
	}
	return data, err
}

// call executes req and decodes the response into out when out is non-nil.
func (c *Client) call(ctx context.Context, req request, out any) error {
	data, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", req.method, req.path)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(idempotencyKeyHeader, req.idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperr.Remote(errors.Wrapf(err, "%s %s", req.method, req.path))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Remote(errors.Wrap(err, "read response"))
	}

	if resp.StatusCode < http.StatusBadRequest {
		return data, nil
	}

	msg := errorMessage(data)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(apperr.ErrNotFound, "%s %s", req.method, req.path)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(apperr.ErrUnauthenticated, "%s %s", req.method, req.path)
	case resp.StatusCode >= http.StatusInternalServerError:
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, apperr.RemoteMessage("backend: " + msg)
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
}
