// Package uptimerobot is a client for the UptimeRobot v3 monitors API.
package uptimerobot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
	"github.com/tjfontaine/uptime-bridge/internal/metrics"
	"github.com/tjfontaine/uptime-bridge/internal/pkg/safehttp"
)

const (
	defaultBaseURL   = "https://api.uptimerobot.com/v3"
	defaultTimeout   = 20 * time.Second
	defaultConnLimit = 20
	userAgent        = "uptime-bridge/1.0"

	monitorsPath = "/monitors"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client. The client is used as-is for
// every session; timeout and connection limit options do not apply to it.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTransport sets the base round tripper used for new sessions.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout sets the total time budget of each API call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConnLimit bounds concurrent connections to the API.
func WithConnLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.connLimit = n
		}
	}
}

// WithBlockPrivateNetworks refuses connections to private address ranges.
func WithBlockPrivateNetworks(block bool) ClientOption {
	return func(c *Client) {
		c.blockPrivate = block
	}
}

// WithLogger sets the logger used for upstream warnings.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the monitoring API over one shared, lazily opened session.
// It is safe for concurrent use.
type Client struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	connLimit    int
	blockPrivate bool
	transport    http.RoundTripper
	httpClient   *http.Client
	logger       *slog.Logger

	mu      sync.Mutex
	session *http.Client
}

// NewClient creates a new UptimeRobot API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		timeout:   defaultTimeout,
		connLimit: defaultConnLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root every relative path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getSession returns the shared session, opening a new one if none is open.
func (c *Client) getSession() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		c.session = c.newSession()
	}
	return c.session
}

func (c *Client) newSession() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}

	base := c.transport
	if base == nil {
		base = safehttp.NewTransport(safehttp.Options{
			MaxConnsPerHost:      c.connLimit,
			BlockPrivateNetworks: c.blockPrivate,
		})
	}

	return &http.Client{
		Timeout:   c.timeout,
		Transport: otelhttp.NewTransport(base),
	}
}

// Close releases the session's idle connections. It is safe to call more
// than once; the next request opens a fresh session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	c.session.CloseIdleConnections()
	c.session = nil
	return nil
}

// NormalizeAPIURL resolves a path against the base URL. Absolute URLs are
// kept but always use https, since they carry the bearer token.
func (c *Client) NormalizeAPIURL(pathOrURL string) string {
	if rest, ok := strings.CutPrefix(pathOrURL, "http://"); ok {
		return "https://" + rest
	}
	if strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}
	return c.baseURL + pathOrURL
}

// Do performs one authenticated call and decodes the response. The returned
// response is never nil and always carries the status code; a transport
// failure also returns an error wrapping ErrTransport with code 0.
func (c *Client) Do(ctx context.Context, method, pathOrURL string, body any) (domain.APIResponse, error) {
	url := c.NormalizeAPIURL(pathOrURL)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errorResponse(0, err.Error()), fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errorResponse(0, err.Error()), fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.getSession().Do(httpReq)
	metrics.UpstreamRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(method, "0").Inc()
		return errorResponse(0, err.Error()), &TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResponse(resp.StatusCode, err.Error()), &TransportError{Method: method, URL: url, Err: err}
	}

	return decodeResponse(resp.StatusCode, respBody), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}
