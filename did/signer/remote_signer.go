package signer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RemoteSigner delegates ES256K signing to a key custody service. The service
// receives the SHA-256 digest of the signing input and answers with a 65 byte
// recoverable signature.
type RemoteSigner struct {
	did      string
	kid      string
	endpoint string
	apiKey   string
	client   *retryablehttp.Client
}

// RemoteSignerOpt configures a RemoteSigner.
type RemoteSignerOpt func(*RemoteSigner)

// WithAPIKey sets the x-api-key header.
func WithAPIKey(key string) RemoteSignerOpt {
	return func(s *RemoteSigner) {
		s.apiKey = key
	}
}

// WithHTTPClient replaces the retrying HTTP client.
func WithHTTPClient(c *retryablehttp.Client) RemoteSignerOpt {
	return func(s *RemoteSigner) {
		s.client = c
	}
}

// NewRemoteSigner creates a new RemoteSigner
func NewRemoteSigner(didID, kid, endpoint string, opts ...RemoteSignerOpt) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	s := &RemoteSigner{
		did:      didID,
		kid:      kid,
		endpoint: endpoint,
		client:   client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RemoteSigner) DID() string       { return s.did }
func (s *RemoteSigner) KeyID() string     { return s.kid }
func (s *RemoteSigner) Algorithm() string { return "ES256K" }

// Sign signs a payload using the remote API
func (s *RemoteSigner) Sign(payload []byte) ([]byte, error) {
	return s.SignContext(context.Background(), payload)
}

// SignContext is Sign bound to ctx.
func (s *RemoteSigner) SignContext(ctx context.Context, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	reqBody, err := json.Marshal(map[string]any{
		"payload_hex": hex.EncodeToString(digest[:]),
	})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, err
	}
	if len(sig) != 65 && len(sig) != 64 {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}

	return sig[:64], nil
}
