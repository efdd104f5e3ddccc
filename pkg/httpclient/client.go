// Package httpclient provides a resilient HTTP client with circuit breaker,
// automatic retries, and transparent decompression.
//
// The client wraps the standard http.Client and adds the features the
// inference adapters need:
//   - Circuit breaker so a down service fails fast instead of stalling callers
//   - Automatic retries with exponential backoff for transient failures
//   - Transparent decompression (gzip, deflate, brotli)
//   - Structured request/response logging
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Common errors returned by the client.
var (
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")
)

// Default configuration values.
const (
	DefaultTimeout              = 30 * time.Second
	DefaultRetryAttempts        = 3
	DefaultRetryDelay           = 1 * time.Second
	DefaultRetryMaxDelay        = 30 * time.Second
	DefaultCircuitThreshold     = 5
	DefaultCircuitTimeout       = 30 * time.Second
	DefaultCircuitHalfOpenMax   = 1
	DefaultBackoffMultiplier    = 2.0
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
	DefaultUserAgentHeader      = "cliparr-httpclient/1.0"
)

// HTTP header constants.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is the overall request timeout.
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts after the first try.
	// Zero means a single attempt; callers whose request bodies do not
	// replay (POST with a consumed reader) must keep this at zero.
	RetryAttempts int

	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration

	// RetryMaxDelay caps the exponential backoff delay.
	RetryMaxDelay time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// CircuitThreshold is the number of consecutive failures before the
	// circuit opens.
	CircuitThreshold int

	// CircuitTimeout is how long the circuit stays open before probing.
	CircuitTimeout time.Duration

	// CircuitHalfOpenMax is the max requests allowed in half-open state.
	CircuitHalfOpenMax int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Logger is the structured logger for request/response logging.
	Logger *slog.Logger

	// DisableDecompression turns off automatic response decompression.
	DisableDecompression bool

	// MaxResponseSize is the maximum allowed response body size in bytes,
	// applied AFTER decompression. Zero disables the limit.
	MaxResponseSize int64

	// BaseClient is the underlying http.Client. If nil, a default client
	// with Timeout is created.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:            DefaultTimeout,
		RetryAttempts:      DefaultRetryAttempts,
		RetryDelay:         DefaultRetryDelay,
		RetryMaxDelay:      DefaultRetryMaxDelay,
		BackoffMultiplier:  DefaultBackoffMultiplier,
		CircuitThreshold:   DefaultCircuitThreshold,
		CircuitTimeout:     DefaultCircuitTimeout,
		CircuitHalfOpenMax: DefaultCircuitHalfOpenMax,
		UserAgent:          DefaultUserAgentHeader,
		Logger:             slog.Default(),
	}
}

// Client is a resilient HTTP client with circuit breaker and retry support.
type Client struct {
	config  Config
	client  *http.Client
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// New creates a client with the given configuration, filling unset
// retry knobs with defaults.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	}

	base := cfg.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config:  cfg,
		client:  base,
		breaker: NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout, cfg.CircuitHalfOpenMax),
		logger:  cfg.Logger,
	}
}

// Do executes the request with circuit breaker protection and automatic
// retries for transient failures.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes the request under the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	c.setDefaultHeaders(req)

	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("url", req.URL.String()),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(time.Duration(float64(delay)*c.config.BackoffMultiplier), c.config.RetryMaxDelay)
		}

		resp, final, err := c.try(ctx, req, attempt)
		if final {
			return resp, err
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
	}
	return nil, ErrMaxRetries
}

// try performs one attempt. final means the outcome goes back to the
// caller as-is instead of feeding another retry.
func (c *Client) try(ctx context.Context, req *http.Request, attempt int) (resp *http.Response, final bool, err error) {
	if !c.breaker.Allow() {
		c.logger.Warn("circuit breaker open, skipping request",
			slog.String("url", req.URL.String()),
			slog.String("state", c.breaker.State().String()),
		)
		return nil, false, ErrCircuitOpen
	}

	start := time.Now()
	resp, err = c.client.Do(req.WithContext(ctx))
	duration := time.Since(start)

	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Warn("request failed",
			slog.String("url", req.URL.String()),
			slog.String("method", req.Method),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
		)

		// Context errors are final.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, true, err
		}
		return nil, false, err
	}

	if isRetryableStatus(resp.StatusCode) {
		c.breaker.RecordFailure()
		c.logger.Warn("retryable status code",
			slog.String("url", req.URL.String()),
			slog.String("method", req.Method),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", duration),
			slog.Int("attempt", attempt),
		)
		resp.Body.Close()
		return nil, false, fmt.Errorf("retryable status code: %d", resp.StatusCode)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.breaker.RecordSuccess()
	} else {
		// Non-2xx trips the breaker but is not retried; the caller
		// decides what the status means.
		c.breaker.RecordFailure()
	}

	c.logger.Debug("request completed",
		slog.String("url", req.URL.String()),
		slog.String("method", req.Method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.Int64("content_length", resp.ContentLength),
	)

	return c.wrapBody(resp), true, nil
}

func (c *Client) setDefaultHeaders(req *http.Request) {
	if c.config.UserAgent != "" && req.Header.Get(HeaderUserAgent) == "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if !c.config.DisableDecompression && req.Header.Get(HeaderAcceptEncoding) == "" {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}
}

// wrapBody layers decompression and the size cap over the response body.
// The cap applies after decompression so a small compressed payload
// cannot expand past it.
func (c *Client) wrapBody(resp *http.Response) *http.Response {
	if !c.config.DisableDecompression {
		resp.Body = decompress(resp.Header.Get(HeaderContentEncoding), resp.Body, c.logger)
	}
	if c.config.MaxResponseSize > 0 {
		resp.Body = &capReader{reader: resp.Body, closer: resp.Body, remaining: c.config.MaxResponseSize}
	}
	return resp
}

// Get performs a GET request to the specified URL.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// CircuitState returns the current state of the circuit breaker.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// ResetCircuit resets the circuit breaker to closed state.
func (c *Client) ResetCircuit() {
	c.breaker.Reset()
}

// StandardClient returns a *http.Client that routes through this
// resilient client, for code that only accepts an http.Client.
func (c *Client) StandardClient() *http.Client {
	return &http.Client{
		Transport: &resilientTransport{client: c},
		Timeout:   c.config.Timeout,
	}
}

type resilientTransport struct {
	client *Client
}

func (t *resilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

var _ http.RoundTripper = (*resilientTransport)(nil)

// decompress wraps the body with the decoder the Content-Encoding
// header names. Unknown encodings and decoder failures fall back to the
// raw body.
func decompress(encoding string, body io.ReadCloser, logger *slog.Logger) io.ReadCloser {
	switch strings.ToLower(encoding) {
	case "":
		return body
	case EncodingGzip:
		reader, err := gzip.NewReader(body)
		if err != nil {
			logger.Warn("failed to create gzip reader, returning raw body",
				slog.String("error", err.Error()))
			return body
		}
		return &decodedBody{reader: reader, raw: body}
	case EncodingDeflate:
		return &decodedBody{reader: flate.NewReader(body), raw: body}
	case EncodingBrotli:
		return &decodedBody{reader: brotli.NewReader(body), raw: body}
	default:
		logger.Debug("unknown content encoding, returning raw body",
			slog.String("encoding", encoding))
		return body
	}
}

// decodedBody reads through the decoder and closes both it and the
// underlying connection body.
type decodedBody struct {
	reader io.Reader
	raw    io.Closer
}

func (d *decodedBody) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decodedBody) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		closer.Close()
	}
	return d.raw.Close()
}

// capReader fails with ErrResponseTooLarge once more than the limit has
// been read.
type capReader struct {
	reader    io.Reader
	closer    io.Closer
	remaining int64
	tripped   bool
}

func (cr *capReader) Read(p []byte) (int, error) {
	if cr.tripped {
		return 0, ErrResponseTooLarge
	}

	n, err := cr.reader.Read(p)
	cr.remaining -= int64(n)
	if cr.remaining < 0 {
		cr.tripped = true
		return n, ErrResponseTooLarge
	}
	return n, err
}

func (cr *capReader) Close() error {
	return cr.closer.Close()
}

// isRetryableStatus reports whether the status code indicates a
// transient condition worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
