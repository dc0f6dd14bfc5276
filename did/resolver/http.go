package resolver

import (
	"context"
	"crypto"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxDocumentSize = 1 << 20

// HTTPResolver resolves DIDs through a Universal-Resolver style endpoint,
// GET {baseURL}/{did}, and caches the keys it finds by key id.
type HTTPResolver struct {
	baseURL string
	client  *retryablehttp.Client
	cache   *cache.Cache
}

// ResolverOpt configures an HTTPResolver.
type ResolverOpt func(*HTTPResolver)

// WithCacheTTL sets how long resolved keys are kept. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ResolverOpt {
	return func(r *HTTPResolver) {
		if ttl <= 0 {
			r.cache = nil
			return
		}
		r.cache = cache.New(ttl, 2*ttl)
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) ResolverOpt {
	return func(r *HTTPResolver) {
		r.client.HTTPClient.Timeout = d
	}
}

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) ResolverOpt {
	return func(r *HTTPResolver) {
		r.client.RetryMax = n
	}
}

// WithLogger sets the logger for retry attempts.
func WithLogger(l retryablehttp.LeveledLogger) ResolverOpt {
	return func(r *HTTPResolver) {
		r.client.Logger = l
	}
}

// NewHTTPResolver returns a resolver querying baseURL.
func NewHTTPResolver(baseURL string, opts ...ResolverOpt) *HTTPResolver {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil
	client.HTTPClient = &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	r := &HTTPResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveKey implements jwt.KeyResolver.
func (r *HTTPResolver) ResolveKey(ctx context.Context, didID, keyID string) (crypto.PublicKey, error) {
	cacheKey := didID + "|" + keyID
	if r.cache != nil {
		if v, ok := r.cache.Get(cacheKey); ok {
			return v.(crypto.PublicKey), nil
		}
	}

	doc, err := r.ResolveDocument(ctx, didID)
	if err != nil {
		return nil, err
	}
	vm, err := doc.Method(keyID)
	if err != nil {
		return nil, err
	}
	pub, err := vm.PublicKey()
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.SetDefault(cacheKey, pub)
	}
	return pub, nil
}

// ResolveDocument fetches the DID document of didID.
func (r *HTTPResolver) ResolveDocument(ctx context.Context, didID string) (*Document, error) {
	if _, err := Method(didID); err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+url.PathEscape(didID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver request: %w", err)
	}
	req.Header.Set("Accept", "application/did+ld+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", didID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID resolver returned %s for %s", resp.Status, didID)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read DID document: %w", err)
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	if doc.ID != didID {
		return nil, fmt.Errorf("resolver returned document %s for %s", doc.ID, didID)
	}
	return doc, nil
}
