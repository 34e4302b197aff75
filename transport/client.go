// Package transport delivers signed payloads to the downstream endpoint and
// classifies what came back.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/goliatone/go-auth-relay/core"
)

const (
	defaultRetryWaitMin = 250 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
	defaultUserAgent    = "go-auth-relay"
)

// ClientConfig tunes a Client. Zero values fall back to the relay defaults.
type ClientConfig struct {
	HTTPClient           *http.Client
	Timeout              time.Duration
	MaxRetries           int
	RetryWaitMin         time.Duration
	RetryWaitMax         time.Duration
	MaxResponseBodyBytes int64
	UserAgent            string
	DefaultHeaders       map[string]string
}

// ConfigFromCore maps the relay config onto a ClientConfig.
func ConfigFromCore(cfg core.Config) ClientConfig {
	return ClientConfig{
		Timeout:              cfg.Timeout,
		MaxRetries:           cfg.Retry.MaxRetries,
		RetryWaitMin:         cfg.Retry.WaitMin,
		RetryWaitMax:         cfg.Retry.WaitMax,
		MaxResponseBodyBytes: cfg.MaxResponseBodyBytes,
		UserAgent:            strings.TrimSpace(cfg.ServiceName),
	}
}

// Client POSTs signed payloads. It is safe for concurrent use; each Deliver
// call owns its request, response and deadline.
type Client struct {
	cfg   ClientConfig
	retry *retryablehttp.Client
}

func NewClient(cfg ClientConfig) *Client {
	cfg.HTTPClient = deliveryHTTPClient(cfg.HTTPClient)
	if cfg.Timeout <= 0 {
		cfg.Timeout = core.DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = defaultRetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = defaultRetryWaitMax
	}
	if cfg.MaxResponseBodyBytes <= 0 {
		cfg.MaxResponseBodyBytes = core.DefaultMaxResponseBodyBytes
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}

	client := &Client{cfg: cfg}
	client.retry = &retryablehttp.Client{
		HTTPClient:   cfg.HTTPClient,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		RetryMax:     cfg.MaxRetries,
		CheckRetry:   client.checkRetry,
		Backoff:      cappedBackoff,
		ErrorHandler: func(resp *http.Response, err error, _ int) (*http.Response, error) {
			return resp, err
		},
	}
	return client
}

// deliveryHTTPClient copies base, or a pooled cleanhttp client when base is
// nil. A 3xx is returned as the response instead of being followed, and
// CloseIdleConnections, which retryablehttp calls whenever it gives up, is
// hidden from the shared connection pool.
func deliveryHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = cleanhttp.DefaultPooledClient()
	}
	client := *base
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	transport := client.Transport
	if transport == nil {
		transport = cleanhttp.DefaultPooledTransport()
	}
	if _, ok := transport.(sharedTransport); !ok {
		transport = sharedTransport{RoundTripper: transport}
	}
	client.Transport = transport
	return &client
}

// sharedTransport exposes only RoundTrip, so http.Client.CloseIdleConnections
// is a no-op on it.
type sharedTransport struct {
	http.RoundTripper
}

// FromConfig is a core.DelivererFactory.
func FromConfig(cfg core.Config) (core.Deliverer, error) {
	return NewClient(ConfigFromCore(cfg)), nil
}

// Deliver POSTs req.Payload to targetURL and classifies the response. The
// timeout bounds the whole exchange including retries and the body read.
// Deliver never returns an error; failures are reported in the outcome.
func (c *Client) Deliver(ctx context.Context, targetURL string, req core.SignedRequest, opts core.DeliveryOptions) core.DeliveryOutcome {
	if c == nil || c.retry == nil {
		return core.TransportFailure(transportError(
			"transport: client is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		), false)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	deliverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := retryablehttp.NewRequest(http.MethodPost, strings.TrimSpace(targetURL), req.Payload)
	if err != nil {
		return core.TransportFailure(transportWrapError(
			err,
			goerrors.CategoryValidation,
			"transport: create http request",
			http.StatusInternalServerError,
			map[string]any{"url": strings.TrimSpace(targetURL)},
		), false)
	}
	httpReq = httpReq.WithContext(deliverCtx)
	c.applyHeaders(httpReq.Header, req, opts)

	httpRes, err := c.retry.Do(httpReq)
	if err != nil {
		if httpRes != nil {
			_ = httpRes.Body.Close()
		}
		return c.transportFailure(deliverCtx, err, "transport: execute http request", targetURL)
	}
	defer httpRes.Body.Close()

	limit := c.cfg.MaxResponseBodyBytes
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return c.transportFailure(deliverCtx, err, "transport: read response body", targetURL)
	}
	oversized := int64(len(body)) > limit
	if oversized {
		body = body[:limit]
	}

	if httpRes.StatusCode < http.StatusOK || httpRes.StatusCode >= http.StatusMultipleChoices {
		return core.Rejected(httpRes.StatusCode, body)
	}
	if oversized {
		return core.MalformedResponse(httpRes.StatusCode, body, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode, "response_limit_b": limit},
		))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.MalformedResponse(httpRes.StatusCode, body, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode response body",
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode},
		))
	}
	return core.Delivered(httpRes.StatusCode, body, decoded)
}

func (c *Client) applyHeaders(header http.Header, req core.SignedRequest, opts core.DeliveryOptions) {
	for key, value := range c.cfg.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	for key, value := range opts.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", c.cfg.UserAgent)

	signatureHeader := strings.TrimSpace(opts.SignatureHeader)
	if signatureHeader == "" {
		signatureHeader = core.DefaultSignatureHeader
	}
	header.Set(signatureHeader, req.Signature)

	if name := strings.TrimSpace(opts.DeliveryIDHeader); name != "" && req.DeliveryID != "" {
		header.Set(name, req.DeliveryID)
	}
}

func (c *Client) transportFailure(ctx context.Context, err error, message string, targetURL string) core.DeliveryOutcome {
	timeout := isTimeout(ctx, err)
	code := http.StatusBadGateway
	if timeout {
		code = http.StatusGatewayTimeout
	}
	return core.TransportFailure(transportWrapError(
		err,
		goerrors.CategoryExternal,
		message,
		code,
		map[string]any{"url": strings.TrimSpace(targetURL), "timeout": timeout},
	), timeout)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// checkRetry retries connection errors, 429 and 5xx responses as long as a
// full backoff wait still ends before the delivery deadline. Otherwise the
// last response or error is handed back as is, so a 503 seen near the
// deadline is reported as Rejected rather than as a timeout.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	retryable := err != nil ||
		(resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError))
	if !retryable {
		return false, nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= c.cfg.RetryWaitMax {
		return false, nil
	}
	return true, nil
}

// cappedBackoff is retryablehttp.DefaultBackoff bounded by waitMax, including
// waits taken from a Retry-After header.
func cappedBackoff(waitMin, waitMax time.Duration, attemptNum int, resp *http.Response) time.Duration {
	wait := retryablehttp.DefaultBackoff(waitMin, waitMax, attemptNum, resp)
	if wait > waitMax {
		return waitMax
	}
	return wait
}

var (
	_ core.Deliverer        = (*Client)(nil)
	_ core.DelivererFactory = FromConfig
)
