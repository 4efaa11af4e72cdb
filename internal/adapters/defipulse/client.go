package defipulse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
)

const (
	defaultBaseURL = "https://data-api.defipulse.com"
	marketDataPath = "/api/v1/defipulse/api/MarketData"

	// maxBodySize caps the response read into memory
	maxBodySize = 4 << 20
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=defipulse_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches the DeFi Pulse market data document
type Client struct {
	httpClient HTTPClient
	baseURL    string
	apiKey     string
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithTimeout sets the per-request timeout, zero disables it
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "defipulse_client")
	}
}

// NewClient creates a new DeFi Pulse client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", domain.ErrInvalidConfig)
	}

	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		timeout:    10 * time.Second,
		logger:     slog.Default().With("component", "defipulse_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("%w: base url: %v", domain.ErrInvalidConfig, err)
	}

	return c, nil
}

// URL returns the market data request URL
func (c *Client) URL() string {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	return c.baseURL + marketDataPath + "?" + q.Encode()
}

// FetchMarketData performs one GET against the market data endpoint.
// Errors are returned as *domain.FetchError, nothing is retried.
func (c *Client) FetchMarketData(ctx context.Context) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqURL := c.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, domain.NewFetchError(reqURL, 0, nil, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return nil, domain.NewFetchError(reqURL, 0, nil, fmt.Errorf("performing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, domain.NewFetchError(reqURL, resp.StatusCode, body, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("market data fetched",
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("rate limited by market data api")
		return nil, domain.NewFetchError(reqURL, resp.StatusCode, body, errors.New("rate limited"))

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewFetchError(reqURL, resp.StatusCode, body, errors.New("unauthorized"))

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Error("unexpected response", "status", resp.StatusCode, "body", string(body))
		return nil, domain.NewFetchError(reqURL, resp.StatusCode, body, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	return body, nil
}

// Ensure Client implements MarketDataFetcher
var _ ports.MarketDataFetcher = (*Client)(nil)
