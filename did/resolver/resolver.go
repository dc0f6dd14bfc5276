// Package resolver finds the public keys that sign credentials, presentations
// and applications. did:key identifiers are decoded locally; other methods are
// looked up through a DID resolution endpoint.
package resolver

import (
	"context"
	"crypto"
	"fmt"
	"strings"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/did"
)

// KeyResolver resolves did:key identifiers without I/O.
type KeyResolver struct{}

// NewKeyResolver returns a did:key resolver.
func NewKeyResolver() *KeyResolver {
	return &KeyResolver{}
}

// ResolveKey decodes keyID, or didID when keyID is empty. A key id must
// belong to didID.
func (r *KeyResolver) ResolveKey(_ context.Context, didID, keyID string) (crypto.PublicKey, error) {
	if keyID == "" {
		keyID = didID
	}
	if base, _, _ := strings.Cut(keyID, "#"); didID != "" && base != didID {
		return nil, fmt.Errorf("key %s does not belong to %s", keyID, didID)
	}
	k, err := did.ParseDidKey(keyID)
	if err != nil {
		return nil, err
	}
	return k.PublicKey, nil
}

// Multi dispatches to a resolver per DID method.
type Multi struct {
	methods  map[string]jwt.KeyResolver
	fallback jwt.KeyResolver
}

// MultiOpt configures a Multi resolver.
type MultiOpt func(*Multi)

// WithMethod resolves DIDs of method ("key", "web", "ethr", ...) with r.
func WithMethod(method string, r jwt.KeyResolver) MultiOpt {
	return func(m *Multi) {
		m.methods[method] = r
	}
}

// WithFallback resolves DIDs of every unregistered method with r.
func WithFallback(r jwt.KeyResolver) MultiOpt {
	return func(m *Multi) {
		m.fallback = r
	}
}

// NewMulti returns a resolver that handles did:key locally and routes the
// other methods as configured.
func NewMulti(opts ...MultiOpt) *Multi {
	m := &Multi{methods: map[string]jwt.KeyResolver{"key": NewKeyResolver()}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ResolveKey implements jwt.KeyResolver.
func (m *Multi) ResolveKey(ctx context.Context, didID, keyID string) (crypto.PublicKey, error) {
	method, err := Method(didID)
	if err != nil {
		return nil, err
	}
	r, ok := m.methods[method]
	if !ok {
		r = m.fallback
	}
	if r == nil {
		return nil, fmt.Errorf("no resolver for did:%s", method)
	}
	return r.ResolveKey(ctx, didID, keyID)
}

// Method returns the method name of a DID.
func Method(didID string) (string, error) {
	parts := strings.SplitN(didID, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("invalid DID %q", didID)
	}
	return parts[1], nil
}
