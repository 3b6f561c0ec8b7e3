package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
)

const (
	DefaultAPIBaseURL = stripe.APIURL

	defaultRequestTimeout = 10 * time.Second
)

// ErrLookupUnavailable is returned when no API key is configured.
var ErrLookupUnavailable = errors.New("customer lookup not configured")

// CustomerClient fetches customer records from the provider API.
type CustomerClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	http    *http.Client

	customers customer.Client
}

type ClientOption func(*CustomerClient)

// WithHTTPClient sets the transport. A nil client is ignored.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cc *CustomerClient) {
		if c != nil {
			cc.http = c
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(cc *CustomerClient) {
		if baseURL != "" {
			cc.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout bounds each request. It applies to a copy of the HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cc *CustomerClient) {
		if timeout > 0 {
			cc.timeout = timeout
		}
	}
}

func NewCustomerClient(apiKey string, opts ...ClientOption) *CustomerClient {
	c := &CustomerClient{
		apiKey:  apiKey,
		baseURL: DefaultAPIBaseURL,
		timeout: defaultRequestTimeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	httpClient := *c.http
	httpClient.Timeout = c.timeout

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(c.baseURL),
		HTTPClient:        &httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	c.customers = customer.Client{B: backend, Key: apiKey}
	return c
}

// LookupEmail returns the email on file for customerID, or "" when the
// customer has none, was deleted or does not exist.
func (c *CustomerClient) LookupEmail(ctx context.Context, customerID string) (string, error) {
	if c.apiKey == "" {
		return "", ErrLookupUnavailable
	}
	if customerID == "" {
		return "", nil
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := c.customers.Get(customerID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch customer: %w", err)
	}
	if cus.Deleted {
		return "", nil
	}
	return strings.TrimSpace(cus.Email), nil
}
