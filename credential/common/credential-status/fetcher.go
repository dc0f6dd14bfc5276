package credentialstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxCredentialSize = 4 << 20

// Fetcher retrieves a status list credential token from its URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// HTTPFetcher downloads status list credentials over HTTP with retries.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher returns a fetcher whose attempts time out after timeout.
func NewHTTPFetcher(timeout time.Duration, logger retryablehttp.LeveledLogger) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = logger
	client.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &HTTPFetcher{client: client}
}

// Fetch returns the credential served at url. The body may be the bare
// token, a JSON string or a {"data": token} envelope.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("statusListCredential URL is empty")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create status list request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch status list credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status list endpoint returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCredentialSize))
	if err != nil {
		return "", fmt.Errorf("failed to read status list credential: %w", err)
	}
	return unwrapToken(body), nil
}

func unwrapToken(body []byte) string {
	var env struct {
		Data string `json:"data"`
	}
	if json.Unmarshal(body, &env) == nil && env.Data != "" {
		return env.Data
	}
	var token string
	if json.Unmarshal(body, &token) == nil {
		return token
	}
	return strings.TrimSpace(string(body))
}
