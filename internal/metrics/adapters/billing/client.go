// Package billing implements the REST client for the billing provider. The
// provider is a black box: this adapter only lists subscription records and
// checks that a credential is authorized.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/platform/config"
	"github.com/revlens/revlens/internal/platform/metrics"
)

// Client talks to the billing provider's REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithMetrics enables request instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new billing provider client
func NewClient(cfg config.BillingConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSubscriptions lists subscriptions with the given status. Results are
// capped at limit records; there is no pagination, datasets larger than one
// page are truncated.
func (c *Client) ListSubscriptions(ctx context.Context, apiKey string, status model.SubscriptionStatus, limit int) ([]model.Subscription, error) {
	params := url.Values{}
	params.Set("status", string(status))
	params.Set("limit", strconv.Itoa(limit))

	var list subscriptionList
	if err := c.get(ctx, apiKey, "list_subscriptions", "/v1/subscriptions", params, &list); err != nil {
		return nil, err
	}

	subs := make([]model.Subscription, 0, len(list.Data))
	for _, raw := range list.Data {
		subs = append(subs, raw.toModel())
	}
	return subs, nil
}

// ValidateKey checks that the credential is authorized by listing a single
// customer. Nothing from the response body is used beyond success or failure.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	params := url.Values{}
	params.Set("limit", "1")

	var discard json.RawMessage
	return c.get(ctx, apiKey, "validate_key", "/v1/customers", params, &discard)
}

func (c *Client) get(ctx context.Context, apiKey, operation, path string, params url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ProviderRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.observe(operation, "error")
		return fmt.Errorf("billing provider request failed: %w", err)
	}
	defer resp.Body.Close()

	c.observe(operation, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("billing provider error: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("billing provider returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

func (c *Client) observe(operation, status string) {
	if c.metrics != nil {
		c.metrics.ProviderRequests.WithLabelValues(operation, status).Inc()
	}
}
