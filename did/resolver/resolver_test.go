package resolver

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/did"
)

func TestKeyResolver(t *testing.T) {
	key, err := did.RandomDidKey(nil)
	require.NoError(t, err)
	other, err := did.RandomDidKey(nil)
	require.NoError(t, err)

	r := NewKeyResolver()
	pub, err := r.ResolveKey(context.Background(), key.Subject, key.KeyID())
	require.NoError(t, err)
	assert.Equal(t, ed25519.PublicKey(key.PublicKey), pub)

	pub, err = r.ResolveKey(context.Background(), key.Subject, "")
	require.NoError(t, err)
	assert.Equal(t, ed25519.PublicKey(key.PublicKey), pub)

	_, err = r.ResolveKey(context.Background(), key.Subject, other.KeyID())
	assert.Error(t, err)
}

func TestMethod(t *testing.T) {
	tests := []struct {
		did     string
		method  string
		wantErr bool
	}{
		{"did:key:z6Mk", "key", false},
		{"did:web:example.com", "web", false},
		{"did:ethr:0x01", "ethr", false},
		{"did:key", "", true},
		{"web:example.com", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.did, func(t *testing.T) {
			m, err := Method(tt.did)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.method, m)
		})
	}
}

// documentServer serves DID documents from docs and counts requests.
func documentServer(t *testing.T, docs map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id, err := url.PathUnescape(r.URL.Path[1:])
		body, ok := docs[id]
		if err != nil || !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPResolver(t *testing.T) {
	secp, err := did.RandomSecp256k1DidKey(nil)
	require.NoError(t, err)
	ed, err := did.RandomDidKey(nil)
	require.NoError(t, err)

	docs := map[string]string{
		"did:web:hex.example": fmt.Sprintf(`{"id":"did:web:hex.example","verificationMethod":[
			{"id":"did:web:hex.example#key-1","type":"EcdsaSecp256k1VerificationKey2019","controller":"did:web:hex.example","publicKeyHex":"0x%s"}]}`,
			hex.EncodeToString(secp.PublicKey)),
		"did:web:jwk.example": fmt.Sprintf(`{"didDocument":{"id":"did:web:jwk.example","verificationMethod":[
			{"id":"#other","type":"JsonWebKey2020","publicKeyJwk":{"kty":"OKP","crv":"Ed25519","x":"%s"}},
			{"id":"#signing","type":"JsonWebKey2020","publicKeyJwk":{"kty":"OKP","crv":"Ed25519","x":"%s"}}],
			"assertionMethod":["did:web:jwk.example#signing"]}}`,
			base64.RawURLEncoding.EncodeToString(make([]byte, 32)),
			base64.RawURLEncoding.EncodeToString(ed.PublicKey)),
		"did:web:multibase.example": fmt.Sprintf(`{"id":"did:web:multibase.example","verificationMethod":[
			{"id":"did:web:multibase.example#k","type":"Multikey","publicKeyMultibase":"%s"}]}`,
			ed.Fingerprint()),
		"did:web:empty.example":    `{"id":"did:web:empty.example","verificationMethod":[]}`,
		"did:web:mismatch.example": `{"id":"did:web:elsewhere.example"}`,
	}
	srv, _ := documentServer(t, docs)
	r := NewHTTPResolver(srv.URL, WithRetryMax(0))

	t.Run("publicKeyHex", func(t *testing.T) {
		pub, err := r.ResolveKey(context.Background(), "did:web:hex.example", "did:web:hex.example#key-1")
		require.NoError(t, err)
		ecPub, ok := pub.(*ecdsa.PublicKey)
		require.True(t, ok)
		assert.Equal(t, secp.PublicKey, ethcrypto.CompressPubkey(ecPub))
	})
	t.Run("jwk via assertionMethod", func(t *testing.T) {
		pub, err := r.ResolveKey(context.Background(), "did:web:jwk.example", "did:web:jwk.example")
		require.NoError(t, err)
		assert.Equal(t, ed25519.PublicKey(ed.PublicKey), pub)
	})
	t.Run("relative fragment", func(t *testing.T) {
		pub, err := r.ResolveKey(context.Background(), "did:web:jwk.example", "did:web:jwk.example#signing")
		require.NoError(t, err)
		assert.Equal(t, ed25519.PublicKey(ed.PublicKey), pub)
	})
	t.Run("multibase", func(t *testing.T) {
		pub, err := r.ResolveKey(context.Background(), "did:web:multibase.example", "")
		require.NoError(t, err)
		assert.Equal(t, ed25519.PublicKey(ed.PublicKey), pub)
	})

	failures := []struct {
		name  string
		did   string
		keyID string
	}{
		{"not found", "did:web:missing.example", ""},
		{"no methods", "did:web:empty.example", ""},
		{"unknown key id", "did:web:hex.example", "did:web:hex.example#key-9"},
		{"document for another DID", "did:web:mismatch.example", ""},
		{"invalid DID", "not-a-did", ""},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveKey(context.Background(), tt.did, tt.keyID)
			assert.Error(t, err)
		})
	}
}

func TestHTTPResolverCache(t *testing.T) {
	ed, err := did.RandomDidKey(nil)
	require.NoError(t, err)
	docs := map[string]string{
		"did:web:cached.example": fmt.Sprintf(`{"id":"did:web:cached.example","verificationMethod":[
			{"id":"did:web:cached.example#k","type":"Ed25519VerificationKey2020","publicKeyMultibase":"%s"}]}`, ed.Fingerprint()),
		"did:web:broken.example": fmt.Sprintf(`{"id":"did:web:broken.example","verificationMethod":[
			{"id":"did:web:broken.example#k","type":"Ed25519VerificationKey2018","publicKeyBase58":"%s"}]}`, ed.Fingerprint()[1:]),
	}
	srv, hits := documentServer(t, docs)

	cached := NewHTTPResolver(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := cached.ResolveKey(context.Background(), "did:web:cached.example", "did:web:cached.example#k")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	hits.Store(0)
	for i := 0; i < 2; i++ {
		_, err := cached.ResolveKey(context.Background(), "did:web:broken.example", "did:web:broken.example#k")
		require.Error(t, err, "multicodec bytes are not a raw Ed25519 key")
	}
	assert.Equal(t, int32(2), hits.Load(), "failures are not cached")

	hits.Store(0)
	uncached := NewHTTPResolver(srv.URL, WithCacheTTL(0))
	for i := 0; i < 2; i++ {
		_, err := uncached.ResolveKey(context.Background(), "did:web:cached.example", "did:web:cached.example#k")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestMulti(t *testing.T) {
	key, err := did.RandomDidKey(nil)
	require.NoError(t, err)
	webKey := ed25519.PublicKey(make([]byte, 32))
	web := jwt.KeyResolverFunc(func(context.Context, string, string) (crypto.PublicKey, error) {
		return webKey, nil
	})

	m := NewMulti(WithMethod("web", web))
	pub, err := m.ResolveKey(context.Background(), key.Subject, key.KeyID())
	require.NoError(t, err)
	assert.Equal(t, ed25519.PublicKey(key.PublicKey), pub)

	pub, err = m.ResolveKey(context.Background(), "did:web:example.com", "")
	require.NoError(t, err)
	assert.Equal(t, webKey, pub)

	_, err = m.ResolveKey(context.Background(), "did:ion:abc", "")
	assert.Error(t, err)

	pub, err = NewMulti(WithFallback(web)).ResolveKey(context.Background(), "did:ion:abc", "")
	require.NoError(t, err)
	assert.Equal(t, webKey, pub)
}
