// Package api is the typed client for the storefront REST backend. Every failure it returns is
// an *apierr.RequestError (no response), an *apierr.BackendError (non-success status) or an
// *apierr.DecodeError (success status with a body that could not be decoded).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tvdermeer/3dprint-website/internal/apierr"
	"github.com/tvdermeer/3dprint-website/internal/metrics"
	"github.com/tvdermeer/3dprint-website/pkg/circuitbreaker"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

const (
	maxErrorBody    = 64 << 10
	maxResponseBody = 8 << 20
)

type Config struct {
	BaseURL string
	// Timeout bounds each request. Zero leaves requests unbounded; the caller's context still applies.
	Timeout time.Duration
	// Breaker, when set, fails calls fast while the backend keeps failing.
	Breaker *circuitbreaker.Breaker
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *circuitbreaker.Breaker
	log        *logger.Logger
	metrics    *metrics.Metrics
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		breaker:    cfg.Breaker,
		log:        logger.OrNop(cfg.Logger),
		metrics:    cfg.Metrics,
	}
}

// request describes one backend call. At most one of body and form is set.
type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	token   string
	body    any
	form    url.Values
	headers map[string]string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	start := time.Now()
	err := c.send(ctx, r, out)

	outcome := "ok"
	switch {
	case apierr.IsRequest(err):
		outcome = "request_error"
	case apierr.IsDecode(err):
		outcome = "decode_error"
	case err != nil:
		outcome = "backend_error"
	}
	c.metrics.ObserveAPI(r.op, outcome, time.Since(start))

	if err != nil {
		c.log.WithContext(ctx).Debug("backend call failed",
			"op", r.op,
			"method", r.method,
			"path", r.path,
			"error", err,
		)
	}
	return err
}

func (c *Client) send(ctx context.Context, r request, out any) error {
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	contentType := ""
	switch {
	case r.form != nil:
		bodyReader = strings.NewReader(r.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.body != nil:
		jsonBody, err := json.Marshal(r.body)
		if err != nil {
			return &apierr.RequestError{Op: r.op, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		bodyReader = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, bodyReader)
	if err != nil {
		return &apierr.RequestError{Op: r.op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.roundTrip(req)
	if err != nil {
		return &apierr.RequestError{Op: r.op, Err: err}
	}
	return decodeResponse(r.op, resp, out)
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}
	return c.breaker.Do(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
}

// decodeResponse turns a non-success status into a BackendError and otherwise decodes the JSON
// body into out (nil discards it). A success body that cannot be read or decoded is a
// DecodeError, never a RequestError: the backend answered and may have acted.
func decodeResponse(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apierr.BackendError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &apierr.DecodeError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apierr.DecodeError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// IsBreakerOpen reports whether err was produced without calling the backend because the
// circuit breaker is open.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}
