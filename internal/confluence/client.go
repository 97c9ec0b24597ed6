// Package confluence provides a rate-limited client for the Confluence REST API.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
)

const (
	// restPrefix is the REST API path prefix on the configured base URL.
	restPrefix = "/rest/api"

	// HTTP client configuration.
	httpTimeout = 30 * time.Second

	// Rate limiting configuration (~5 requests/second).
	rateLimitInterval = 200 * time.Millisecond

	// HTTP status codes.
	httpStatusBadRequest = 400 // First status code indicating an error
)

// Client is a Confluence REST API client with rate limiting.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	user        string
	token       string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = l
	}
}

// NewClient creates a new Confluence API client.
func NewClient(baseURL, user, token string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient:  &http.Client{Timeout: httpTimeout},
		baseURL:     baseURL,
		user:        user,
		token:       token,
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitInterval), 1),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs a rate-limited GET request and decodes the JSON response
// into result. Retries with exponential backoff on 429.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// getRaw performs a rate-limited GET request and returns the raw body.
func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "API request", "path", path)
	startTime := time.Now()

	maxRetries := 5
	backoff := time.Second

	for attempt := range maxRetries {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "failed to close response body", "error", closeErr)
		}
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger.WarnContext(ctx, "rate limited, backing off", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				continue
			}
		}

		if resp.StatusCode >= httpStatusBadRequest {
			return nil, apperrors.NewHTTPError(resp.StatusCode, string(respBody))
		}

		c.logger.DebugContext(ctx, "API response",
			"path", path,
			"status", resp.StatusCode,
			"duration", time.Since(startTime))

		return respBody, nil
	}

	return nil, apperrors.ErrMaxRetriesExceeded
}
