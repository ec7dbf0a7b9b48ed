package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL          = "https://query1.finance.yahoo.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond

	chartPath = "/v8/finance/chart"
	quotePath = "/v7/finance/quote"
)

// ErrSymbolNotFound indicates that the requested symbol is not listed.
var ErrSymbolNotFound = errors.New("yahoo: symbol not found")

// Client wraps access to the chart and quote endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default endpoint URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Yahoo finance API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// GetChart fetches daily bars for a batch of symbols over [start, end).
func (c *Client) GetChart(ctx context.Context, symbols []string, start, end time.Time) (*ChartResponse, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("yahoo: no symbols requested")
	}
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("period1", strconv.FormatInt(start.Unix(), 10))
	query.Set("period2", strconv.FormatInt(end.Unix(), 10))
	query.Set("interval", "1d")

	var payload ChartResponse
	if err := c.doRequest(ctx, chartPath, query, &payload); err != nil {
		return nil, err
	}
	if apiErr := payload.Chart.Error; apiErr != nil {
		return nil, fmt.Errorf("yahoo: chart error %s: %s", apiErr.Code, apiErr.Description)
	}
	return &payload, nil
}

// GetQuote fetches a live snapshot for a single symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*QuoteResult, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("yahoo: symbol cannot be empty")
	}
	query := url.Values{}
	query.Set("symbols", symbol)

	var payload QuoteResponse
	if err := c.doRequest(ctx, quotePath, query, &payload); err != nil {
		return nil, err
	}
	if apiErr := payload.QuoteResponse.Error; apiErr != nil {
		return nil, fmt.Errorf("yahoo: quote error %s: %s", apiErr.Code, apiErr.Description)
	}
	for i := range payload.QuoteResponse.Result {
		result := &payload.QuoteResponse.Result[i]
		if strings.EqualFold(result.Symbol, symbol) {
			return result, nil
		}
	}
	return nil, ErrSymbolNotFound
}

// doRequest issues a GET and decodes the response into result.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path + "?" + query.Encode()
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("yahoo: build request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("yahoo: read response: %w", readErr)
			} else if resp.StatusCode == http.StatusNotFound {
				return ErrSymbolNotFound
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("yahoo: http status %d: %s", resp.StatusCode, string(body))
			} else {
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("yahoo: decode response: %w", err)
					}
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			c.logf("yahoo: retrying %s (attempt %d/%d): %v", path, attempt+1, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("yahoo: request failed without error detail")
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
